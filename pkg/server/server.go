// Package server exposes the matching pipeline over HTTP so upstream
// booking-creation flows can trigger runs without shelling out to the CLI.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/core/matcher"
	"github.com/sitemedic/sitemedic/pkg/core/services"
	"github.com/sitemedic/sitemedic/pkg/db"
)

// Store combines the ledger operations the HTTP handlers need
type Store interface {
	services.MatchBookingStore
	services.ViewAuditStore
}

// Server holds the HTTP handlers for the matching API
type Server struct {
	store      Store
	compliance matcher.ComplianceChecker
	engine     matcher.ScoreEngine
	logger     *zap.Logger
}

// New constructs a Server over the given collaborators
func New(store Store, compliance matcher.ComplianceChecker, engine matcher.ScoreEngine, logger *zap.Logger) *Server {
	return &Server{
		store:      store,
		compliance: compliance,
		engine:     engine,
		logger:     logger,
	}
}

// Router builds the chi router for the matching API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		// The skip-compliance override is deliberately not exposed here;
		// it exists for test harnesses driving the CLI only.
		r.Post("/bookings/{bookingID}/match", s.handleMatchBooking)
		r.Get("/orgs/{orgID}/audit", s.handleViewAudit)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type candidateResponse struct {
	MedicID    string            `json:"medic_id"`
	Name       string            `json:"name"`
	TotalScore float64           `json:"total_score"`
	Breakdown  breakdownResponse `json:"breakdown"`
}

type breakdownResponse struct {
	Total         float64 `json:"total_score"`
	Distance      float64 `json:"distance_score"`
	Qualification float64 `json:"qualification_score"`
	Availability  float64 `json:"availability_score"`
	Utilization   float64 `json:"utilization_score"`
	Rating        float64 `json:"rating_score"`
	Performance   float64 `json:"performance_score"`
	Fairness      float64 `json:"fairness_score"`
}

type matchResponse struct {
	AssignedMedicID        *string             `json:"assigned_medic_id"`
	ConfidenceScore        float64             `json:"confidence_score"`
	ScoreBreakdown         *breakdownResponse  `json:"score_breakdown"`
	Candidates             []candidateResponse `json:"candidates"`
	RequiresManualApproval bool                `json:"requires_manual_approval"`
	Reason                 *string             `json:"reason"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMatchBooking runs the assignment pipeline for one booking
func (s *Server) handleMatchBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	result, err := services.MatchBooking(r.Context(), s.store, s.compliance, s.engine, s.logger, bookingID, false)
	if errors.Is(err, services.ErrInvalidBookingID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, db.ErrBookingNotFound) {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if err != nil {
		s.logger.Error("Match request failed", zap.String("booking_id", bookingID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "matching failed")
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(result))
}

// handleViewAudit lists recent pipeline runs for an organisation
func (s *Server) handleViewAudit(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := services.ViewAudit(r.Context(), s.store, s.logger, orgID, limit)
	if err != nil {
		s.logger.Error("Audit request failed", zap.String("org_id", orgID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch audit log")
		return
	}

	// Empty array rather than null for client compatibility
	if entries == nil {
		entries = []db.AuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func toMatchResponse(result *services.MatchBookingResult) matchResponse {
	resp := matchResponse{
		ConfidenceScore:        result.ConfidenceScore,
		RequiresManualApproval: result.RequiresManualApproval,
		Candidates:             make([]candidateResponse, 0, len(result.Candidates)),
	}
	if result.AssignedMedicID != "" {
		id := result.AssignedMedicID
		resp.AssignedMedicID = &id
	}
	if result.Reason != "" {
		reason := result.Reason
		resp.Reason = &reason
	}
	if result.ScoreBreakdown != nil {
		b := toBreakdownResponse(*result.ScoreBreakdown)
		resp.ScoreBreakdown = &b
	}
	for _, c := range result.Candidates {
		resp.Candidates = append(resp.Candidates, candidateResponse{
			MedicID:    c.Medic.ID,
			Name:       c.Medic.Name,
			TotalScore: c.Score.Total,
			Breakdown:  toBreakdownResponse(c.Score),
		})
	}
	return resp
}

func toBreakdownResponse(s matcher.ScoreBreakdown) breakdownResponse {
	return breakdownResponse{
		Total:         s.Total,
		Distance:      s.Distance,
		Qualification: s.Qualification,
		Availability:  s.Availability,
		Utilization:   s.Utilization,
		Rating:        s.Rating,
		Performance:   s.Performance,
		Fairness:      s.Fairness,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
