package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/quality"
	"github.com/Checker-Finance/screener/internal/refdata"
	"github.com/Checker-Finance/screener/pkg/model"
)

// ReportSink persists a finished run. Satisfied by store.HybridStore.
type ReportSink interface {
	SaveReport(ctx context.Context, report *model.Report) error
}

// EventPublisher emits run lifecycle events. Satisfied by publisher.Publisher.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event model.RunCompletedEvent) error
}

// Options carries per-run tunables for the Service.
type Options struct {
	Universe           string
	PrefilterBatchSize int
	EnrichBatchSize    int
}

// Service runs the two-phase screening pipeline: pre-filter the full
// universe, then enrich survivors only. No instrument revisits a phase.
type Service struct {
	logger *zap.Logger
	orch   *Orchestrator
	opts   Options

	sink ReportSink     // optional
	pub  EventPublisher // optional
}

// NewService constructs a pipeline Service. sink and pub may be nil.
func NewService(logger *zap.Logger, orch *Orchestrator, opts Options, sink ReportSink, pub EventPublisher) *Service {
	if opts.PrefilterBatchSize <= 0 {
		opts.PrefilterBatchSize = 8
	}
	if opts.EnrichBatchSize <= 0 {
		opts.EnrichBatchSize = 25
	}
	return &Service{logger: logger, orch: orch, opts: opts, sink: sink, pub: pub}
}

// Run executes one full screening run and returns its Report.
func (s *Service) Run(ctx context.Context, instruments []model.Instrument) (*model.Report, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()

	s.logger.Info("screener.run_started",
		zap.String("run_id", runID),
		zap.String("universe", s.opts.Universe),
		zap.Int("instruments", len(instruments)))

	resolved := make([]model.Instrument, len(instruments))
	for i, inst := range instruments {
		res := refdata.Resolve(inst)
		inst.Venue = res.Venue
		inst.Region = res.Region
		inst.RequestSymbol = res.RequestSymbol
		resolved[i] = inst
	}

	screened, err := s.orch.Prefilter(ctx, resolved, s.opts.PrefilterBatchSize)
	if err != nil {
		return nil, err
	}

	var retained []model.ScreenedInstrument
	var rejected []model.ScreenedInstrument
	for _, si := range screened {
		if si.Result.Rejected() {
			rejected = append(rejected, si)
		} else {
			retained = append(retained, si)
		}
	}

	s.logger.Info("screener.prefilter_done",
		zap.String("run_id", runID),
		zap.Int("retained", len(retained)),
		zap.Int("rejected", len(rejected)))

	enriched, err := s.orch.Enrich(ctx, retained, s.opts.EnrichBatchSize, quality.Score)
	if err != nil {
		return nil, err
	}

	report := s.buildReport(runID, started, resolved, enriched, rejected)

	s.logger.Info("screener.run_completed",
		zap.String("run_id", runID),
		zap.Int("retained", report.RetainedCount),
		zap.Int("rejected", report.RejectedCount),
		zap.Int64("elapsed_ms", report.ElapsedMS))

	if s.sink != nil {
		if err := s.sink.SaveReport(ctx, report); err != nil {
			// Persistence is best-effort: the snapshot files remain the
			// source of record.
			s.logger.Warn("screener.report_persist_failed",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}

	if s.pub != nil {
		event := model.RunCompletedEvent{
			RunID:            report.RunID,
			Universe:         s.opts.Universe,
			TotalInstruments: report.TotalInstruments,
			RetainedCount:    report.RetainedCount,
			RejectedCount:    report.RejectedCount,
			RejectionReasons: report.RejectionReasons,
			ElapsedMS:        report.ElapsedMS,
			Timestamp:        report.FinishedAt,
		}
		if err := s.pub.PublishRunCompleted(ctx, event); err != nil {
			s.logger.Warn("screener.event_publish_failed",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}

	return report, nil
}

func (s *Service) buildReport(
	runID string,
	started time.Time,
	universe []model.Instrument,
	retained []model.ScreenedInstrument,
	rejected []model.ScreenedInstrument,
) *model.Report {
	finished := time.Now().UTC()

	reasons := make(map[string]int)
	summaries := make([]model.RejectedSummary, 0, len(rejected))
	for _, si := range rejected {
		for _, check := range si.Result.FailedChecks {
			reasons[string(check)]++
		}
		reason := "unclassified"
		if len(si.Result.FailedChecks) > 0 {
			reason = string(si.Result.FailedChecks[0])
		}
		summaries = append(summaries, model.RejectedSummary{
			Symbol: si.Instrument.Symbol,
			Venue:  si.Instrument.Venue,
			Reason: reason,
		})
	}

	return &model.Report{
		RunID:            runID,
		Universe:         s.opts.Universe,
		StartedAt:        started,
		FinishedAt:       finished,
		ElapsedMS:        finished.Sub(started).Milliseconds(),
		TotalInstruments: len(universe),
		RetainedCount:    len(retained),
		RejectedCount:    len(rejected),
		RejectionReasons: reasons,
		DataQuality:      dataQuality(retained),
		Retained:         retained,
		Rejected:         summaries,
	}
}

// dataQuality reports per-field completeness percentages over the retained
// set: the primary signal for spotting a provider regressing on a field.
func dataQuality(retained []model.ScreenedInstrument) map[string]float64 {
	total := len(retained)
	if total == 0 {
		return map[string]float64{}
	}

	counts := map[string]int{}
	for _, si := range retained {
		if si.Instrument.Price > 0 {
			counts["price"]++
		}
		if si.Metrics.VolumeSource != model.VolumeSourceNone {
			counts["volume"]++
		}
		if si.Metrics.AUMUSD > 0 {
			counts["aum"]++
		}
		if si.Fundamentals != nil && si.Fundamentals.ReturnOnEquity != nil {
			counts["return_on_equity"]++
		}
		if si.Fundamentals != nil && si.Fundamentals.DebtToEquity != nil {
			counts["debt_to_equity"]++
		}
		if si.Quality != nil && si.Quality.Score != nil {
			counts["quality_score"]++
		}
	}

	fields := []string{"price", "volume", "aum", "return_on_equity", "debt_to_equity", "quality_score"}
	out := make(map[string]float64, len(fields))
	for _, field := range fields {
		out[field] = float64(counts[field]) / float64(total) * 100
	}
	return out
}
