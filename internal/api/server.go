package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quayside/vendorq/internal/domain"
	"github.com/quayside/vendorq/internal/intake"
	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/webhook"
)

// Server translates HTTP to the intake service and webhook resolver. All
// business rules live below it.
type Server struct {
	intake   *intake.Service
	resolver *webhook.Resolver
	logger   *logging.Logger
}

func NewServer(in *intake.Service, res *webhook.Resolver, logger *logging.Logger) *Server {
	return &Server{intake: in, resolver: res, logger: logger}
}

// Routes returns the /api/v1 router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/admin/stats", s.handleJobStats)
		r.Get("/jobs/{request_id}", s.handleGetJob)
		r.Post("/vendor-webhook/{vendor}", s.handleVendorWebhook)
	})

	return r
}

type createJobRequest struct {
	Vendor string         `json:"vendor"`
	Data   map[string]any `json:"data"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Validation Error",
			"details": []string{"request body must be valid JSON"},
		})
		return
	}

	job, err := s.intake.Create(r.Context(), req.Vendor, req.Data)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Validation Error",
				"details": []string{verr.Message},
			})
			return
		}
		s.logger.WithContext(r.Context()).WithError(err).Error("creating job failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Internal Server Error",
			"message": "Failed to create job",
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"request_id": job.ID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "request_id")

	job, err := s.intake.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":   "Not Found",
				"message": "Job not found",
			})
			return
		}
		s.logger.WithContext(r.Context()).WithJob(id).WithError(err).Error("fetching job failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Internal Server Error",
			"message": "Failed to fetch job",
		})
		return
	}

	resp := map[string]any{
		"status":     string(job.Status),
		"created_at": job.CreatedAt.UTC().Format(time.RFC3339),
	}
	switch job.Status {
	case domain.StatusComplete:
		resp["result"] = job.Result
		if job.ProcessingCompletedAt != nil {
			resp["completed_at"] = job.ProcessingCompletedAt.UTC().Format(time.RFC3339)
		}
	case domain.StatusFailed:
		msg := "Unknown error occurred"
		if job.ErrorInfo != nil && job.ErrorInfo.Message != "" {
			msg = job.ErrorInfo.Message
		}
		resp["error"] = msg
		if job.ProcessingCompletedAt != nil {
			resp["completed_at"] = job.ProcessingCompletedAt.UTC().Format(time.RFC3339)
		}
	case domain.StatusProcessing:
		if job.ProcessingStartedAt != nil {
			resp["processing_started_at"] = job.ProcessingStartedAt.UTC().Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	stats, ts, err := s.intake.Stats(r.Context())
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("fetching job stats failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Internal Server Error",
			"message": "Failed to fetch statistics",
		})
		return
	}

	formatted := make(map[string]int64, len(stats))
	for status, count := range stats {
		formatted[string(status)] = count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statistics": formatted,
		"timestamp":  ts.Format(time.RFC3339),
	})
}

type webhookRequest struct {
	JobID  string         `json:"job_id"`
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
	Error  string         `json:"error"`
}

func (s *Server) handleVendorWebhook(w http.ResponseWriter, r *http.Request) {
	vendorTag := chi.URLParam(r, "vendor")

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Bad Request",
			"message": "request body must be valid JSON",
		})
		return
	}
	if req.JobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Bad Request",
			"message": "job_id is required",
		})
		return
	}

	_, err := s.resolver.Resolve(r.Context(), webhook.Callback{
		JobID:  req.JobID,
		Vendor: domain.Vendor(vendorTag),
		Status: req.Status,
		Data:   req.Data,
		Error:  req.Error,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":   "Not Found",
				"message": "Job not found",
			})
		case errors.Is(err, domain.ErrVendorMismatch):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Bad Request",
				"message": "Vendor mismatch",
			})
		default:
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":   "Bad Request",
					"message": "Invalid webhook payload",
				})
				return
			}
			s.logger.WithContext(r.Context()).WithJob(req.JobID).WithError(err).Error("processing webhook failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "Internal Server Error",
				"message": "Failed to process webhook",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
