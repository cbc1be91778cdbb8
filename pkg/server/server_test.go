package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/core/matcher"
	"github.com/sitemedic/sitemedic/pkg/db"
)

const testBookingID = "7d444840-9dc0-11d1-b245-5ffdce74fad2"

// stubStore implements Store for testing
type stubStore struct {
	booking *db.Booking
	medics  []db.Medic
	entries []db.AuditLogEntry
}

func (s *stubStore) GetBooking(ctx context.Context, bookingID string) (*db.Booking, error) {
	if s.booking == nil || s.booking.ID != bookingID {
		return nil, db.ErrBookingNotFound
	}
	return s.booking, nil
}

func (s *stubStore) FetchMedics(ctx context.Context, orgID string) ([]db.Medic, error) {
	return s.medics, nil
}

func (s *stubStore) FetchOverlappingBookings(ctx context.Context, orgID, shiftDate string, medicIDs []string, statuses []string) ([]db.BookedWindow, error) {
	return nil, nil
}

func (s *stubStore) FetchUnavailable(ctx context.Context, orgID, shiftDate string) ([]string, error) {
	return nil, nil
}

func (s *stubStore) CommitAssignment(ctx context.Context, booking *db.Booking, medicID string, score float64, breakdown db.AuditCandidate) error {
	return nil
}

func (s *stubStore) FlagManualReview(ctx context.Context, bookingID string, score float64, breakdown *db.AuditCandidate, reason string) error {
	return nil
}

func (s *stubStore) RecordNoMatch(ctx context.Context, bookingID, reason string) error {
	return nil
}

func (s *stubStore) AppendAuditLog(ctx context.Context, entry *db.AuditLogEntry) error {
	return nil
}

func (s *stubStore) AppendConflict(ctx context.Context, conflict *db.BookingConflict) error {
	return nil
}

func (s *stubStore) IncrementFairnessCounters(ctx context.Context, orgID, medicID, month string) error {
	return nil
}

func (s *stubStore) ListAuditLog(ctx context.Context, orgID string, limit int) ([]db.AuditLogEntry, error) {
	return s.entries, nil
}

// stubCompliance passes every medic
type stubCompliance struct{}

func (stubCompliance) Check(ctx context.Context, medicID, shiftDate, startTime, endTime string) (db.ComplianceVerdict, error) {
	return db.ComplianceVerdict{Compliant: true}, nil
}

// stubEngine scores every medic with a fixed total
type stubEngine struct {
	total float64
}

func (e stubEngine) Score(ctx context.Context, bookingID, medicID string) (matcher.ScoreBreakdown, error) {
	return matcher.ScoreBreakdown{Total: e.total}, nil
}

func newTestServer(store Store, engine matcher.ScoreEngine) http.Handler {
	return New(store, stubCompliance{}, engine, zap.NewNop()).Router()
}

func storedBooking() *db.Booking {
	return &db.Booking{
		ID:           testBookingID,
		OrgID:        "org-a",
		ClientID:     "client-1",
		SitePostcode: "IG1 1AA",
		ShiftDate:    "2025-06-10",
		StartTime:    "08:00",
		EndTime:      "18:00",
		Status:       db.BookingStatusPending,
	}
}

func TestHandleMatchBooking_InvalidID(t *testing.T) {
	router := newTestServer(&stubStore{}, stubEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings/not-a-uuid/match", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMatchBooking_NotFound(t *testing.T) {
	router := newTestServer(&stubStore{}, stubEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings/"+testBookingID+"/match", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMatchBooking_Assigned(t *testing.T) {
	store := &stubStore{
		booking: storedBooking(),
		medics: []db.Medic{{
			ID: "m1", OrgID: "org-a", Name: "Asha Patel",
			Postcode: "IG2 6XU", AvailableForWork: true,
		}},
	}
	router := newTestServer(store, stubEngine{total: 82})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings/"+testBookingID+"/match", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AssignedMedicID        *string `json:"assigned_medic_id"`
		ConfidenceScore        float64 `json:"confidence_score"`
		RequiresManualApproval bool    `json:"requires_manual_approval"`
		Reason                 *string `json:"reason"`
		Candidates             []struct {
			MedicID string `json:"medic_id"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.AssignedMedicID)
	assert.Equal(t, "m1", *resp.AssignedMedicID)
	assert.Equal(t, 82.0, resp.ConfidenceScore)
	assert.False(t, resp.RequiresManualApproval)
	assert.Nil(t, resp.Reason)
	require.Len(t, resp.Candidates, 1)
}

func TestHandleMatchBooking_NoCandidates(t *testing.T) {
	store := &stubStore{booking: storedBooking()}
	router := newTestServer(store, stubEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings/"+testBookingID+"/match", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AssignedMedicID        *string `json:"assigned_medic_id"`
		RequiresManualApproval bool    `json:"requires_manual_approval"`
		Reason                 *string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.AssignedMedicID)
	assert.True(t, resp.RequiresManualApproval)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, "No available medics found", *resp.Reason)
}

func TestHandleViewAudit(t *testing.T) {
	store := &stubStore{entries: []db.AuditLogEntry{
		{ID: "a1", OrgID: "org-a", BookingID: testBookingID, Success: true, AssignedMedicID: "m1"},
	}}
	router := newTestServer(store, stubEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orgs/org-a/audit?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var entries []db.AuditLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "m1", entries[0].AssignedMedicID)
}

func TestHandleHealth(t *testing.T) {
	router := newTestServer(&stubStore{}, stubEngine{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
