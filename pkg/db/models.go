package db

// Booking statuses as stored in the ledger
const (
	BookingStatusPending    = "pending"
	BookingStatusConfirmed  = "confirmed"
	BookingStatusInProgress = "in_progress"
)

// Booking represents a request for medic coverage at a site
type Booking struct {
	ID           string
	OrgID        string
	ClientID     string
	SitePostcode string

	// ShiftDate is the local shift date in 2006-01-02 form
	ShiftDate string

	// StartTime and EndTime are local wall-clock times in 15:04 form.
	// The shift window is the half-open interval [StartTime, EndTime).
	StartTime string
	EndTime   string

	RequiredHours float64

	// Specialised certification requirements
	RequiresConfinedSpace bool
	RequiresTrauma        bool

	Status                 string
	MedicID                string
	AutoMatched            bool
	RequiresManualApproval bool

	// CoverRef links bookings generated from a standing cover rule
	// (rule key + date); empty for one-off bookings
	CoverRef string
}

// Medic represents a staffable worker
type Medic struct {
	ID       string
	OrgID    string
	Name     string
	Postcode string

	// Certification flags with optional expiry dates (2006-01-02, empty =
	// no expiry). Expiry is checked independently of the flag: an expired
	// certification disqualifies even when the flag is still true.
	ConfinedSpaceCert   bool
	ConfinedSpaceExpiry string
	TraumaCert          bool
	TraumaExpiry        string

	// Rating is the star rating, 0-5
	Rating float64

	// IncidentReportingRate is the historical compliance metric
	IncidentReportingRate float64

	AvailableForWork bool

	// UnavailableUntil blocks the medic through this date (2006-01-02, empty = none)
	UnavailableUntil string
}

// BookedWindow is one committed shift window for a medic, returned by the
// batched calendar-conflict query
type BookedWindow struct {
	MedicID   string
	StartTime string
	EndTime   string
}

// ComplianceVerdict is the result of a working-time compliance check
type ComplianceVerdict struct {
	Compliant        bool
	ViolationType    string
	ViolationDetails string
}

// AuditCandidate is one ranked candidate as persisted in an audit entry
type AuditCandidate struct {
	MedicID    string  `json:"medic_id"`
	Name       string  `json:"name"`
	TotalScore float64 `json:"total_score"`

	DistanceScore      float64 `json:"distance_score"`
	QualificationScore float64 `json:"qualification_score"`
	AvailabilityScore  float64 `json:"availability_score"`
	UtilizationScore   float64 `json:"utilization_score"`
	RatingScore        float64 `json:"rating_score"`
	PerformanceScore   float64 `json:"performance_score"`
	FairnessScore      float64 `json:"fairness_score"`
}

// AuditLogEntry is one row per pipeline run, success or not
type AuditLogEntry struct {
	ID              string           `json:"id"`
	OrgID           string           `json:"org_id"`
	BookingID       string           `json:"booking_id"`
	AssignedMedicID string           `json:"assigned_medic_id,omitempty"`
	ConfidenceScore float64          `json:"confidence_score"`
	Candidates      []AuditCandidate `json:"candidates"`
	Success         bool             `json:"success"`
	FailureReason   string           `json:"failure_reason,omitempty"`
}

// BookingConflict is one row per candidate excluded by a compliance violation
type BookingConflict struct {
	ID           string
	BookingID    string
	MedicID      string
	ConflictType string
	Severity     string
	Description  string
	Resolved     bool
}

// FairnessCounter tracks per-medic monthly shift tallies
type FairnessCounter struct {
	OrgID         string
	MedicID       string
	Month         string // 2006-01
	ShiftsOffered int
	ShiftsWorked  int
}
