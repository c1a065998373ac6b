// Package secrets resolves the market-data API credential. The environment
// wins; AWS Secrets Manager is the fallback for deployed environments where
// keys are not injected as env vars. A missing credential is fatal before any
// network work starts.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/screener/pkg/secrets"
)

// ErrNoCredential is returned when no API key can be resolved from any source.
var ErrNoCredential = errors.New("no market-data API key configured")

// secretAPIKeyField is the JSON field holding the key inside the secret map.
const secretAPIKeyField = "api_key"

// Resolver resolves the provider API key from env or a secrets provider.
// Secrets Manager results are cached so repeated resolutions (scheduled
// re-runs in one process) do not re-hit AWS until the TTL lapses.
type Resolver struct {
	logger     *zap.Logger
	provider   pkgsecrets.Provider // nil when SM is not configured
	secretName string
	cache      *pkgsecrets.Cache[string]
}

// NewResolver constructs a Resolver. provider may be nil, in which case only
// the environment value is consulted.
func NewResolver(logger *zap.Logger, provider pkgsecrets.Provider, secretName string, ttl time.Duration) *Resolver {
	return &Resolver{
		logger:     logger,
		provider:   provider,
		secretName: secretName,
		cache:      pkgsecrets.NewCache[string](ttl),
	}
}

// APIKey returns the provider API key. envValue is the already-read
// environment value and takes precedence over Secrets Manager.
func (r *Resolver) APIKey(ctx context.Context, envValue string) (string, error) {
	if envValue != "" {
		r.logger.Debug("secrets.api_key_from_env")
		return envValue, nil
	}

	if r.provider == nil || r.secretName == "" {
		return "", ErrNoCredential
	}

	if key, ok := r.cache.Get(r.secretName); ok {
		return key, nil
	}

	values, err := r.provider.GetSecret(ctx, r.secretName)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", r.secretName, err)
	}
	key := values[secretAPIKeyField]
	if key == "" {
		return "", fmt.Errorf("secret %s has no %s field: %w", r.secretName, secretAPIKeyField, ErrNoCredential)
	}

	r.cache.Put(r.secretName, key)
	r.logger.Info("secrets.api_key_from_secrets_manager", zap.String("secret", r.secretName))
	return key, nil
}
