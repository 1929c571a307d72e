package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/axlan/dice-logger/internal/cache"
	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/internal/middleware"
	"github.com/axlan/dice-logger/internal/model"
	"github.com/axlan/dice-logger/internal/service"
	"github.com/axlan/dice-logger/pkg/response"
)

// Generator produces a report for a window.
type Generator interface {
	Generate(ctx context.Context, start, end time.Time) (*model.Report, error)
}

// Response bodies for the report endpoints.
const (
	NoRollsBody    = "No rolls found"
	BadTimeBody    = "Bad timestamp: expected unix seconds"
	TimeoutBody    = "Report generation timed out"
	GenFailureBody = "Report generation failed"
)

// ReportHandler serves /gen and /gen/{ts}.
type ReportHandler struct {
	gen     Generator
	cache   *cache.ReportCache
	timeout time.Duration
	now     func() time.Time
	log     *zerolog.Logger
}

// NewReportHandler creates a report handler. rc may be nil; a zero timeout means none.
func NewReportHandler(gen Generator, rc *cache.ReportCache, timeout time.Duration) *ReportHandler {
	return &ReportHandler{
		gen:     gen,
		cache:   rc,
		timeout: timeout,
		now:     time.Now,
		log:     logging.Component("http"),
	}
}

// GenerateLatest handles GET /gen: the 24 hours ending now.
func (h *ReportHandler) GenerateLatest(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.now())
}

// GenerateAt handles GET /gen/{ts}: the 24 hours ending at unix second ts.
func (h *ReportHandler) GenerateAt(w http.ResponseWriter, r *http.Request) {
	ts, err := parseUnix(chi.URLParam(r, "ts"))
	if err != nil {
		response.HTML(w, http.StatusBadRequest, BadTimeBody)
		return
	}
	h.serve(w, r, ts)
}

func parseUnix(s string) (time.Time, error) {
	sec, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}

func (h *ReportHandler) serve(w http.ResponseWriter, r *http.Request, end time.Time) {
	start, end := service.WindowEnding(end)
	// rolls can still land in a window that has not ended
	closed := end.Before(h.now())

	if closed {
		if report, ok := h.cache.Lookup(r.Context(), start, end); ok {
			response.HTML(w, http.StatusOK, generatedBody(report))
			return
		}
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.gen.Generate(ctx, start, end)
	switch {
	case errors.Is(err, service.ErrNoRolls):
		response.HTML(w, http.StatusOK, NoRollsBody)
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)):
		h.log.Warn().Str("request_id", middleware.GetRequestID(r.Context())).
			Dur("timeout", h.timeout).Msg("report generation timed out")
		response.HTML(w, http.StatusGatewayTimeout, TimeoutBody)
	case err != nil:
		h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("report generation failed")
		response.HTML(w, http.StatusInternalServerError, GenFailureBody)
	case closed:
		h.cache.Store(r.Context(), start, end, report)
		response.HTML(w, http.StatusOK, generatedBody(report))
	default:
		h.cache.Claim(r.Context(), report.Name, start, end)
		response.HTML(w, http.StatusOK, generatedBody(report))
	}
}

func generatedBody(report *model.Report) string {
	name := html.EscapeString(report.Name)
	return fmt.Sprintf(`Generated <a href="%s">%s</a>`, name, name)
}
