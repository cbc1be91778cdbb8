package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/core/matcher"
	"github.com/sitemedic/sitemedic/pkg/db"
)

const testBookingID = "7d444840-9dc0-11d1-b245-5ffdce74fad2"

// mockLedger implements MatchBookingStore for testing
type mockLedger struct {
	booking     *db.Booking
	getErr      error
	medics      []db.Medic
	windows     []db.BookedWindow
	unavailable []string

	commitErr  error
	flagErr    error
	noMatchErr error
	auditErr   error

	getCalls     int
	committedTo  string
	flagReason   string
	flagCalls    int
	noMatchCalls int
	auditEntries []*db.AuditLogEntry
	conflicts    []*db.BookingConflict
	fairnessKeys []string
}

func (m *mockLedger) GetBooking(ctx context.Context, bookingID string) (*db.Booking, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.booking, nil
}

func (m *mockLedger) FetchMedics(ctx context.Context, orgID string) ([]db.Medic, error) {
	return m.medics, nil
}

func (m *mockLedger) FetchOverlappingBookings(ctx context.Context, orgID, shiftDate string, medicIDs []string, statuses []string) ([]db.BookedWindow, error) {
	return m.windows, nil
}

func (m *mockLedger) FetchUnavailable(ctx context.Context, orgID, shiftDate string) ([]string, error) {
	return m.unavailable, nil
}

func (m *mockLedger) CommitAssignment(ctx context.Context, booking *db.Booking, medicID string, score float64, breakdown db.AuditCandidate) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committedTo = medicID
	return nil
}

func (m *mockLedger) FlagManualReview(ctx context.Context, bookingID string, score float64, breakdown *db.AuditCandidate, reason string) error {
	if m.flagErr != nil {
		return m.flagErr
	}
	m.flagCalls++
	m.flagReason = reason
	return nil
}

func (m *mockLedger) RecordNoMatch(ctx context.Context, bookingID, reason string) error {
	if m.noMatchErr != nil {
		return m.noMatchErr
	}
	m.noMatchCalls++
	m.flagReason = reason
	return nil
}

func (m *mockLedger) AppendAuditLog(ctx context.Context, entry *db.AuditLogEntry) error {
	if m.auditErr != nil {
		return m.auditErr
	}
	m.auditEntries = append(m.auditEntries, entry)
	return nil
}

func (m *mockLedger) AppendConflict(ctx context.Context, conflict *db.BookingConflict) error {
	m.conflicts = append(m.conflicts, conflict)
	return nil
}

func (m *mockLedger) IncrementFairnessCounters(ctx context.Context, orgID, medicID, month string) error {
	m.fairnessKeys = append(m.fairnessKeys, fmt.Sprintf("%s/%s/%s", orgID, medicID, month))
	return nil
}

// mockCompliance implements matcher.ComplianceChecker for testing
type mockCompliance struct {
	verdicts map[string]db.ComplianceVerdict
}

func (m *mockCompliance) Check(ctx context.Context, medicID, shiftDate, startTime, endTime string) (db.ComplianceVerdict, error) {
	if v, ok := m.verdicts[medicID]; ok {
		return v, nil
	}
	return db.ComplianceVerdict{Compliant: true}, nil
}

// mockEngine implements matcher.ScoreEngine for testing
type mockEngine struct {
	scores map[string]float64
}

func (m *mockEngine) Score(ctx context.Context, bookingID, medicID string) (matcher.ScoreBreakdown, error) {
	return matcher.ScoreBreakdown{Total: m.scores[medicID], Qualification: m.scores[medicID] / 2}, nil
}

func matchBooking() *db.Booking {
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

func availableMedic(id string) db.Medic {
	return db.Medic{
		ID:               id,
		OrgID:            "org-a",
		Name:             "Medic " + id,
		Postcode:         "IG2 6XU",
		AvailableForWork: true,
	}
}

func TestMatchBooking_AssignsTopCandidate(t *testing.T) {
	store := &mockLedger{
		booking: matchBooking(),
		medics:  []db.Medic{availableMedic("m1"), availableMedic("m2")},
	}
	engine := &mockEngine{scores: map[string]float64{"m1": 71, "m2": 72}}

	result, err := MatchBooking(context.Background(), store, &mockCompliance{}, engine, zap.NewNop(), testBookingID, false)

	require.NoError(t, err)
	assert.Equal(t, matcher.OutcomeAssigned, result.Outcome)
	assert.Equal(t, "m2", result.AssignedMedicID)
	assert.Equal(t, 72.0, result.ConfidenceScore)
	assert.False(t, result.RequiresManualApproval)
	assert.Equal(t, "m2", store.committedTo)

	// Audit entry carries the full ranked list, not just the winner
	require.Len(t, store.auditEntries, 1)
	entry := store.auditEntries[0]
	assert.True(t, entry.Success)
	assert.Equal(t, "m2", entry.AssignedMedicID)
	require.Len(t, entry.Candidates, 2)
	assert.Equal(t, "m2", entry.Candidates[0].MedicID)
	assert.Equal(t, "m1", entry.Candidates[1].MedicID)

	// Fairness counters tick for the winner only, keyed by shift month
	assert.Equal(t, []string{"org-a/m2/2025-06"}, store.fairnessKeys)
}

func TestMatchBooking_LowConfidenceEscalates(t *testing.T) {
	store := &mockLedger{
		booking: matchBooking(),
		medics:  []db.Medic{availableMedic("m1")},
	}
	engine := &mockEngine{scores: map[string]float64{"m1": 49.99}}

	result, err := MatchBooking(context.Background(), store, &mockCompliance{}, engine, zap.NewNop(), testBookingID, false)

	require.NoError(t, err)
	assert.Equal(t, matcher.OutcomeLowConfidence, result.Outcome)
	assert.Empty(t, result.AssignedMedicID)
	assert.True(t, result.RequiresManualApproval)
	assert.Contains(t, result.Reason, "49.99")
	assert.Equal(t, 1, store.flagCalls)
	assert.Empty(t, store.committedTo)

	require.Len(t, store.auditEntries, 1)
	assert.False(t, store.auditEntries[0].Success)
	assert.Empty(t, store.auditEntries[0].AssignedMedicID)

	// No fairness updates without a committed assignment
	assert.Empty(t, store.fairnessKeys)
}

func TestMatchBooking_NoCandidates(t *testing.T) {
	store := &mockLedger{
		booking: matchBooking(),
		medics:  nil,
	}

	result, err := MatchBooking(context.Background(), store, &mockCompliance{}, &mockEngine{}, zap.NewNop(), testBookingID, false)

	require.NoError(t, err)
	assert.Equal(t, matcher.OutcomeNoCandidates, result.Outcome)
	assert.Empty(t, result.AssignedMedicID)
	assert.True(t, result.RequiresManualApproval)
	assert.Equal(t, "No available medics found", result.Reason)
	assert.Equal(t, 1, store.noMatchCalls)

	// Still exactly one audit entry, and no conflicts since nobody reached
	// the compliance stage
	require.Len(t, store.auditEntries, 1)
	assert.False(t, store.auditEntries[0].Success)
	assert.Empty(t, store.auditEntries[0].Candidates)
	assert.Empty(t, store.conflicts)
	assert.Empty(t, store.fairnessKeys)
}

func TestMatchBooking_ExpiredCertExcludedFromAudit(t *testing.T) {
	booking := matchBooking()
	booking.RequiresConfinedSpace = true

	expired := availableMedic("m1")
	expired.ConfinedSpaceCert = true
	expired.ConfinedSpaceExpiry = "2025-06-09" // one day before the shift

	valid := availableMedic("m2")
	valid.ConfinedSpaceCert = true

	store := &mockLedger{booking: booking, medics: []db.Medic{expired, valid}}
	engine := &mockEngine{scores: map[string]float64{"m1": 90, "m2": 60}}

	result, err := MatchBooking(context.Background(), store, &mockCompliance{}, engine, zap.NewNop(), testBookingID, false)

	require.NoError(t, err)
	assert.Equal(t, "m2", result.AssignedMedicID)

	require.Len(t, store.auditEntries, 1)
	for _, c := range store.auditEntries[0].Candidates {
		assert.NotEqual(t, "m1", c.MedicID, "expired medic must not appear in the audit candidate list")
	}
}

func TestMatchBooking_ComplianceConflictRecorded(t *testing.T) {
	store := &mockLedger{
		booking: matchBooking(),
		medics:  []db.Medic{availableMedic("m1"), availableMedic("m2")},
	}
	compliance := &mockCompliance{verdicts: map[string]db.ComplianceVerdict{
		"m1": {Compliant: false, ViolationType: "weekly_hours_exceeded", ViolationDetails: "52h in rolling week"},
	}}
	engine := &mockEngine{scores: map[string]float64{"m2": 80}}

	result, err := MatchBooking(context.Background(), store, compliance, engine, zap.NewNop(), testBookingID, false)

	require.NoError(t, err)
	assert.Equal(t, "m2", result.AssignedMedicID)

	require.Len(t, store.conflicts, 1)
	conflict := store.conflicts[0]
	assert.Equal(t, "m1", conflict.MedicID)
	assert.Equal(t, testBookingID, conflict.BookingID)
	assert.Equal(t, "weekly_hours_exceeded", conflict.ConflictType)
	assert.Equal(t, "critical", conflict.Severity)
	assert.False(t, conflict.Resolved)
}

func TestMatchBooking_LostRaceEscalates(t *testing.T) {
	store := &mockLedger{
		booking:   matchBooking(),
		medics:    []db.Medic{availableMedic("m1")},
		commitErr: db.ErrAssignmentConflict,
	}
	engine := &mockEngine{scores: map[string]float64{"m1": 88}}

	result, err := MatchBooking(context.Background(), store, &mockCompliance{}, engine, zap.NewNop(), testBookingID, false)

	require.NoError(t, err, "losing the commit race is a recoverable outcome")
	assert.Empty(t, result.AssignedMedicID)
	assert.True(t, result.RequiresManualApproval)
	assert.Equal(t, 1, store.flagCalls)
	assert.Empty(t, store.fairnessKeys)

	require.Len(t, store.auditEntries, 1)
	assert.False(t, store.auditEntries[0].Success)
}

func TestMatchBooking_AuditFailureIsNonFatal(t *testing.T) {
	store := &mockLedger{
		booking:  matchBooking(),
		medics:   []db.Medic{availableMedic("m1")},
		auditErr: errors.New("audit table unavailable"),
	}
	engine := &mockEngine{scores: map[string]float64{"m1": 75}}

	result, err := MatchBooking(context.Background(), store, &mockCompliance{}, engine, zap.NewNop(), testBookingID, false)

	require.NoError(t, err, "audit is best-effort and never fails the run")
	assert.Equal(t, "m1", result.AssignedMedicID)
	assert.Equal(t, []string{"org-a/m1/2025-06"}, store.fairnessKeys)
}

func TestMatchBooking_PrimaryCommitFailureIsFatal(t *testing.T) {
	store := &mockLedger{
		booking:   matchBooking(),
		medics:    []db.Medic{availableMedic("m1")},
		commitErr: errors.New("disk full"),
	}
	engine := &mockEngine{scores: map[string]float64{"m1": 75}}

	_, err := MatchBooking(context.Background(), store, &mockCompliance{}, engine, zap.NewNop(), testBookingID, false)

	require.Error(t, err)
	assert.Empty(t, store.auditEntries, "run aborts before audit when the booking state is undefined")
}

func TestMatchBooking_InvalidIDFailsFast(t *testing.T) {
	store := &mockLedger{}

	_, err := MatchBooking(context.Background(), store, &mockCompliance{}, &mockEngine{}, zap.NewNop(), "not-a-uuid", false)

	require.ErrorIs(t, err, ErrInvalidBookingID)
	assert.Zero(t, store.getCalls, "no ledger access for invalid input")
}

func TestMatchBooking_NotFoundFailsFast(t *testing.T) {
	store := &mockLedger{getErr: db.ErrBookingNotFound}

	_, err := MatchBooking(context.Background(), store, &mockCompliance{}, &mockEngine{}, zap.NewNop(), testBookingID, false)

	require.ErrorIs(t, err, db.ErrBookingNotFound)
	assert.Empty(t, store.auditEntries, "nothing to audit for a missing booking")
}

func TestMatchBooking_ResultCapsCandidatesAtFive(t *testing.T) {
	medics := make([]db.Medic, 7)
	scores := make(map[string]float64, 7)
	for i := range medics {
		id := fmt.Sprintf("m%d", i+1)
		medics[i] = availableMedic(id)
		scores[id] = 60 + float64(i)
	}

	store := &mockLedger{booking: matchBooking(), medics: medics}
	engine := &mockEngine{scores: scores}

	result, err := MatchBooking(context.Background(), store, &mockCompliance{}, engine, zap.NewNop(), testBookingID, false)

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 5)

	// The audit entry still records everyone
	require.Len(t, store.auditEntries, 1)
	assert.Len(t, store.auditEntries[0].Candidates, 7)
}
