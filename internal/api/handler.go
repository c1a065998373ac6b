package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/store"
	"github.com/Checker-Finance/screener/pkg/model"
)

// Handler serves read-only views of the latest screening results.
type Handler struct {
	Logger *zap.Logger
	Store  store.Store
}

// summaryView is the snapshot without the per-instrument payloads.
type summaryView struct {
	RunID            string             `json:"run_id"`
	Universe         string             `json:"universe"`
	StartedAt        string             `json:"started_at"`
	ElapsedMS        int64              `json:"elapsed_ms"`
	TotalInstruments int                `json:"total_instruments"`
	RetainedCount    int                `json:"retained_count"`
	RejectedCount    int                `json:"rejected_count"`
	RejectionReasons map[string]int     `json:"rejection_reasons"`
	DataQuality      map[string]float64 `json:"data_quality"`
}

// GetSnapshot returns the full latest report for a universe.
func (h *Handler) GetSnapshot(c *fiber.Ctx) error {
	universe := c.Params("universe")
	if universe == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "missing universe"})
	}

	report, err := h.fetch(c, universe)
	if err != nil || report == nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(report)
}

// GetSummary returns run metadata for a universe without the instrument lists.
func (h *Handler) GetSummary(c *fiber.Ctx) error {
	universe := c.Params("universe")
	if universe == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "missing universe"})
	}

	report, err := h.fetch(c, universe)
	if err != nil || report == nil {
		return err
	}

	return c.Status(http.StatusOK).JSON(summaryView{
		RunID:            report.RunID,
		Universe:         report.Universe,
		StartedAt:        report.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		ElapsedMS:        report.ElapsedMS,
		TotalInstruments: report.TotalInstruments,
		RetainedCount:    report.RetainedCount,
		RejectedCount:    report.RejectedCount,
		RejectionReasons: report.RejectionReasons,
		DataQuality:      report.DataQuality,
	})
}

// ListRuns returns the run history, newest first.
func (h *Handler) ListRuns(c *fiber.Ctx) error {
	universe := c.Query("universe")
	limit := c.QueryInt("limit", 20)

	runs, err := h.Store.ListRuns(c.Context(), universe, limit)
	if err != nil {
		h.Logger.Error("api.list_runs_failed", zap.String("universe", universe), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	return c.Status(http.StatusOK).JSON(runs)
}

// fetch loads the latest report, writing the error response itself. A nil
// report with nil error means the response has already been sent.
func (h *Handler) fetch(c *fiber.Ctx, universe string) (*model.Report, error) {
	report, err := h.Store.GetLatestReport(c.Context(), universe)
	if errors.Is(err, store.ErrNotFound) {
		return nil, c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "no report for universe " + universe})
	}
	if err != nil {
		h.Logger.Error("api.get_report_failed", zap.String("universe", universe), zap.Error(err))
		return nil, c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return report, nil
}
