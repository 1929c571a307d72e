package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/axlan/dice-logger/internal/artifact"
	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/internal/metrics"
	"github.com/axlan/dice-logger/internal/model"
	"github.com/axlan/dice-logger/internal/render"
	"github.com/axlan/dice-logger/internal/repository"
	"github.com/axlan/dice-logger/internal/telemetry"
)

// ErrNoRolls is returned when a window holds no settled rolls. It is not a failure.
var ErrNoRolls = errors.New("no rolls found")

// Report outcomes recorded in metrics.
const (
	OutcomeGenerated = "generated"
	OutcomeEmpty     = "empty"
	OutcomeError     = "error"
)

// WindowEnding returns the report window [end-24h, end).
func WindowEnding(end time.Time) (time.Time, time.Time) {
	return end.Add(-model.ReportWindow), end
}

// ArtifactName returns the file name for a report dated date (YYYY-MM-DD).
func ArtifactName(date string) string {
	return "rolls_" + date + ".html"
}

// BuildTable aggregates rolls into chart points. Elapsed time is measured in
// minutes from the earliest roll, whose UTC date names the report.
func BuildTable(rolls []model.RollEvent) *model.ReportTable {
	if len(rolls) == 0 {
		return &model.ReportTable{}
	}
	first := rolls[0].Timestamp
	for _, r := range rolls[1:] {
		if r.Timestamp < first {
			first = r.Timestamp
		}
	}
	date := model.FromUnixSeconds(first).Format("2006-01-02")

	points := make([]model.ReportPoint, 0, len(rolls))
	for _, r := range rolls {
		points = append(points, model.ReportPoint{
			ElapsedMinutes: (r.Timestamp - first) / 60,
			Value:          r.Value,
			Label:          r.Label,
		})
	}
	return &model.ReportTable{
		Title:  "Roll Report: " + date,
		Date:   date,
		Points: points,
	}
}

// ReportGenerator renders settled rolls in a window to an artifact.
// It holds no per-request state and is safe for concurrent use.
type ReportGenerator struct {
	store     repository.RollQuerier
	renderer  render.Renderer
	artifacts artifact.Store
	metrics   metrics.Recorder
	now       func() time.Time
	log       *zerolog.Logger
}

// NewReportGenerator creates a generator. A nil recorder discards metrics.
func NewReportGenerator(store repository.RollQuerier, renderer render.Renderer, artifacts artifact.Store, rec metrics.Recorder) *ReportGenerator {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &ReportGenerator{
		store:     store,
		renderer:  renderer,
		artifacts: artifacts,
		metrics:   rec,
		now:       time.Now,
		log:       logging.Component("report"),
	}
}

// Generate builds the report for [start, end). It returns ErrNoRolls when
// the window has no settled rolls; no artifact is written in that case.
func (g *ReportGenerator) Generate(ctx context.Context, start, end time.Time) (*model.Report, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "report.generate", trace.WithAttributes(
		attribute.Int64("window.start", start.Unix()),
		attribute.Int64("window.end", end.Unix()),
	))
	defer span.End()

	began := g.now()
	report, err := g.generate(ctx, start, end)
	g.metrics.ObserveReportDuration(g.now().Sub(began))

	switch {
	case errors.Is(err, ErrNoRolls):
		g.metrics.IncReports(OutcomeEmpty)
		span.SetAttributes(attribute.Int("rolls", 0))
	case err != nil:
		g.metrics.IncReports(OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.log.Error().Err(err).Time("start", start).Time("end", end).Msg("report generation failed")
	default:
		g.metrics.IncReports(OutcomeGenerated)
		span.SetAttributes(attribute.Int("rolls", report.Rolls), attribute.String("artifact", report.Name))
		g.log.Info().Str("artifact", report.Name).Int("rolls", report.Rolls).Msg("report generated")
	}
	return report, err
}

func (g *ReportGenerator) generate(ctx context.Context, start, end time.Time) (*model.Report, error) {
	rolls, err := g.store.QueryRange(ctx, model.RangeQuery{Start: start, End: end, SettledOnly: true})
	if err != nil {
		return nil, fmt.Errorf("report: query rolls: %w", err)
	}
	if len(rolls) == 0 {
		return nil, ErrNoRolls
	}

	table := BuildTable(rolls)
	var buf bytes.Buffer
	if err := g.renderer.Render(&buf, table); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	name := ArtifactName(table.Date)
	if err := g.artifacts.Put(ctx, name, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("report: write artifact: %w", err)
	}

	return &model.Report{
		Name:        name,
		Path:        "/" + name,
		Rolls:       len(rolls),
		WindowStart: start,
		WindowEnd:   end,
		GeneratedAt: g.now().UTC(),
	}, nil
}
