package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/impact"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/hkmcoding/landie-next-sub000/internal/suggestions"
	"github.com/sirupsen/logrus"
)

// UserHeader carries the caller's user id, set by the upstream gateway
const UserHeader = "X-User-ID"

const guardFinishTimeout = 5 * time.Second

// Handler exposes the suggestion and impact services over HTTP
type Handler struct {
	suggestions *suggestions.Service
	impact      *impact.Service
	guard       RecentGuard // optional
}

func NewHandler(suggestionService *suggestions.Service, impactService *impact.Service, guard RecentGuard) *Handler {
	return &Handler{
		suggestions: suggestionService,
		impact:      impactService,
		guard:       guard,
	}
}

// Router builds the route table
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := router.NewRoute().Subrouter()
	api.Use(requireUser)

	api.HandleFunc("/pages/{page}/analyze", h.analyze).Methods("POST")
	api.HandleFunc("/pages/{page}/suggestions", h.listSuggestions).Methods("GET")
	api.HandleFunc("/suggestions/{id}/implement", h.implement).Methods("POST")
	api.HandleFunc("/suggestions/{id}/dismiss", h.dismiss).Methods("POST")

	api.HandleFunc("/impact/measure", h.measurePending).Methods("POST")
	api.HandleFunc("/pages/{page}/impact/measure", h.measurePending).Methods("POST")
	api.HandleFunc("/implementations/{id}/measure", h.measureOne).Methods("POST")
	api.HandleFunc("/pages/{page}/impact/summary", h.summary).Methods("GET")
	api.HandleFunc("/pages/{page}/impact/compare", h.compare).Methods("GET")
	api.HandleFunc("/pages/{page}/trends", h.trends).Methods("GET")

	return router
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserHeader) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + UserHeader + " header"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type analyzeRequest struct {
	AnalysisType string `json:"analysis_type"`
	TriggerEvent string `json:"trigger_event"`
}

type analyzeResponse struct {
	SessionID    string              `json:"session_id"`
	Suggestions  []models.Suggestion `json:"suggestions"`
	Snapshot     models.Snapshot     `json:"snapshot"`
	UsedFallback bool                `json:"used_fallback"`
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	page := mux.Vars(r)["page"]

	var req analyzeRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.AnalysisType != "" && !suggestions.ValidAnalysisType(req.AnalysisType) {
		badRequest(w, fmt.Errorf("unknown analysis_type %q", req.AnalysisType))
		return
	}

	if h.guard != nil {
		ok, err := h.guard.Acquire(r.Context(), user, page)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "analysis performed recently"})
			return
		}
	}

	result, err := h.suggestions.Analyze(r.Context(), suggestions.AnalyzeRequest{
		UserID:        user,
		LandingPageID: page,
		AnalysisType:  req.AnalysisType,
		TriggerEvent:  req.TriggerEvent,
	})

	if h.guard != nil {
		// the client may already be gone; the guard must still be released
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), guardFinishTimeout)
		if ferr := h.guard.Finish(finishCtx, user, page, err == nil); ferr != nil {
			logrus.Warnf("Failed to update analysis guard for page %s: %v", page, ferr)
		}
		cancel()
	}

	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, analyzeResponse{
		SessionID:    result.Session.ID,
		Suggestions:  result.Suggestions,
		Snapshot:     result.Session.Snapshot,
		UsedFallback: result.UsedFallback,
	})
}

func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	status := models.SuggestionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		badRequest(w, fmt.Errorf("unknown status %q", status))
		return
	}

	list, err := h.suggestions.List(r.Context(), userID(r), mux.Vars(r)["page"], status)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": list})
}

type implementRequest struct {
	ImplementedContent    string `json:"implemented_content"`
	PartialImplementation bool   `json:"partial_implementation"`
}

func (h *Handler) implement(w http.ResponseWriter, r *http.Request) {
	var req implementRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	impl, err := h.suggestions.Implement(r.Context(), mux.Vars(r)["id"], userID(r), suggestions.ImplementRequest{
		Content: req.ImplementedContent,
		Partial: req.PartialImplementation,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, impl)
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.suggestions.Dismiss(r.Context(), mux.Vars(r)["id"], userID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) measurePending(w http.ResponseWriter, r *http.Request) {
	result, err := h.impact.MeasurePendingImpacts(r.Context(), userID(r), mux.Vars(r)["page"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) measureOne(w http.ResponseWriter, r *http.Request) {
	m, err := h.impact.MeasureImplementationImpact(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.impact.GetImpactSummary(r.Context(), userID(r), mux.Vars(r)["page"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	c, err := h.impact.CompareImplementations(r.Context(), userID(r), mux.Vars(r)["page"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			badRequest(w, fmt.Errorf("days must be a positive integer"))
			return
		}
		days = parsed
	}

	t, err := h.impact.GetPageTrends(r.Context(), userID(r), mux.Vars(r)["page"], days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// decodeBody decodes an optional JSON body
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// errorStatus maps engine errors to HTTP status codes
func errorStatus(err error) int {
	var (
		cfgErr   *errs.ConfigurationError
		failed   *errs.AnalysisFailed
		modelErr *errs.ExternalModelError
		parseErr *errs.ParseError
	)

	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errs.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errs.IsPersistence(err):
		return http.StatusInternalServerError
	case errors.As(err, &modelErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	case errors.As(err, &failed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logrus.Errorf("Request failed: %v", err)
	}

	body := map[string]any{"error": err.Error()}
	var failed *errs.AnalysisFailed
	if errors.As(err, &failed) {
		body["stage"] = failed.Stage
		body["session_saved"] = failed.SessionSaved
	}
	writeJSON(w, status, body)
}
