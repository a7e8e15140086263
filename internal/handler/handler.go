package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/ytlearner/internal/handler/views"
	"github.com/pavelanni/ytlearner/internal/model"
	"github.com/pavelanni/ytlearner/internal/quiz"
)

const (
	defaultNumMCQ   = 3
	defaultNumShort = 2
	maxBodyBytes    = 1 << 20
	retryAfter      = "5"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc      *quiz.Service
	validate *validator.Validate
}

// New creates a new Handler.
func New(svc *quiz.Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/video/{videoID}/quiz", h.handleQuiz)
		r.Post("/quiz/{quizID}/submit", h.handleSubmit)
		r.Get("/attempts/{attemptID}", h.handleAttempt)
		r.Get("/attempts/{attemptID}/report", h.handleReportPage)
	})
}

type submitRequest struct {
	Answers []model.Answer `json:"answers" validate:"required,max=100,dive"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	numMCQ, err := intParam(r, "num_mcq", defaultNumMCQ)
	if err != nil {
		writeError(w, err)
		return
	}
	numShort, err := intParam(r, "num_short", defaultNumShort)
	if err != nil {
		writeError(w, err)
		return
	}

	pub, err := h.svc.CreateOrFetchQuiz(r.Context(), chi.URLParam(r, "videoID"), numMCQ, numShort)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", quiz.ErrInvalidSubmission, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", quiz.ErrInvalidSubmission, err))
		return
	}

	attempt, err := h.svc.SubmitAttempt(r.Context(), chi.URLParam(r, "quizID"), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.svc.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleReportPage(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.svc.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		if quiz.IsNotFound(err) {
			http.Error(w, "attempt not found", http.StatusNotFound)
			return
		}
		slog.Error("load attempt", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ReportPage(*attempt).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", quiz.ErrInvalidParameter, name)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	msg := err.Error()
	switch {
	case quiz.IsCallerError(err):
		status, code = http.StatusBadRequest, "invalid_request"
	case quiz.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, quiz.ErrGenerationUnavailable):
		status, code = http.StatusUnprocessableEntity, "generation_unavailable"
	case quiz.IsRetryable(err):
		status, code = http.StatusServiceUnavailable, "embedding_unavailable"
		w.Header().Set("Retry-After", retryAfter)
	default:
		slog.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
