package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"

	"github.com/dragonseats/optimizer/internal/solver"
)

// Optimizer is the planning entry point the handler calls.
type Optimizer interface {
	Optimize(ctx context.Context, seasonYear, weekNumber int, triggeredBy string) (*solver.RunSummary, error)
}

// OptimizeHandler handles optimization HTTP requests.
type OptimizeHandler struct {
	optimizer Optimizer
	validate  *validator.Validate
}

// NewOptimizeHandler creates a new handler wired to the optimizer.
func NewOptimizeHandler(optimizer Optimizer) *OptimizeHandler {
	return &OptimizeHandler{
		optimizer: optimizer,
		validate:  validator.New(),
	}
}

// optimizeRequest is the POST /optimize body. Pointers distinguish a
// missing field from a zero value; week 0 is a valid preseason run.
type optimizeRequest struct {
	SeasonYear  *int   `json:"season_year" validate:"required"`
	WeekNumber  *int   `json:"week_number" validate:"required,gte=0,lte=18"`
	TriggeredBy string `json:"triggered_by"`
}

// Optimize handles POST /optimize
//
// Runs the weekly planning pipeline for the requested season week.
//
// Response codes:
//
//	200 — Run completed (status completed or partial; an empty week
//	      returns a null run_id with score 100)
//	400 — Missing or invalid season_year/week_number
//	500 — Pipeline failure (run row patched to failed)
func (h *OptimizeHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		if req.SeasonYear == nil || req.WeekNumber == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "season_year and week_number are required",
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "week_number must be between 0 and 18",
		})
		return
	}

	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "api"
	}

	summary, err := h.optimizer.Optimize(r.Context(), *req.SeasonYear, *req.WeekNumber, triggeredBy)
	if err != nil {
		log.Printf("[handler] optimize error: %v", err)
		sentry.CaptureException(err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "failed",
			"score":  0,
			"errors": []string{err.Error()},
			"detail": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
