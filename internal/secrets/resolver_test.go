package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	values map[string]string
	err    error
	calls  int
}

func (p *fakeProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.values, nil
}

func TestAPIKey_EnvWins(t *testing.T) {
	p := &fakeProvider{values: map[string]string{"api_key": "from-sm"}}
	r := NewResolver(zap.NewNop(), p, "marketdata/prod", time.Minute)

	key, err := r.APIKey(context.Background(), "from-env")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.Zero(t, p.calls, "secrets manager must not be hit when env is set")
}

func TestAPIKey_SecretsManagerFallback(t *testing.T) {
	p := &fakeProvider{values: map[string]string{"api_key": "from-sm"}}
	r := NewResolver(zap.NewNop(), p, "marketdata/prod", time.Minute)

	key, err := r.APIKey(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "from-sm", key)
}

func TestAPIKey_NoSourcesConfigured(t *testing.T) {
	r := NewResolver(zap.NewNop(), nil, "", time.Minute)

	_, err := r.APIKey(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestAPIKey_SecretMissingField(t *testing.T) {
	p := &fakeProvider{values: map[string]string{"base_url": "https://example.com"}}
	r := NewResolver(zap.NewNop(), p, "marketdata/prod", time.Minute)

	_, err := r.APIKey(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestAPIKey_SecretsManagerResultCached(t *testing.T) {
	p := &fakeProvider{values: map[string]string{"api_key": "from-sm"}}
	r := NewResolver(zap.NewNop(), p, "marketdata/prod", time.Minute)

	for i := 0; i < 3; i++ {
		key, err := r.APIKey(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "from-sm", key)
	}
	assert.Equal(t, 1, p.calls, "repeated resolutions hit the cache, not AWS")
}

func TestAPIKey_SecretsManagerError(t *testing.T) {
	p := &fakeProvider{err: errors.New("access denied")}
	r := NewResolver(zap.NewNop(), p, "marketdata/prod", time.Minute)

	_, err := r.APIKey(context.Background(), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredential)
}
