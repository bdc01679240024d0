package gateway

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors shared by all gateway implementations.
var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("appointment slot conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("persistence unavailable")
)

type Specialization string

const (
	SpecTax       Specialization = "tax"
	SpecPayroll   Specialization = "payroll"
	SpecCorporate Specialization = "corporate"
	SpecGeneral   Specialization = "general"
)

type AccountantStatus string

const (
	AccountantActive   AccountantStatus = "active"
	AccountantInactive AccountantStatus = "inactive"
	AccountantVacation AccountantStatus = "vacation"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type CallLogStatus string

const (
	CallLogPending   CallLogStatus = "pending"
	CallLogCompleted CallLogStatus = "completed"
	CallLogCancelled CallLogStatus = "cancelled"
)

type LeadCategory string

const (
	LeadNewBusiness      LeadCategory = "new_business"
	LeadNewFreelance     LeadCategory = "new_freelance"
	LeadTaxIssue         LeadCategory = "tax_issue"
	LeadCompetitorSwitch LeadCategory = "competitor_switch"
	LeadInformation      LeadCategory = "information"
)

// ValidDurations are the accepted appointment lengths in minutes.
var ValidDurations = map[int]bool{30: true, 60: true, 90: true, 120: true}

// WorkingHours describes when an accountant accepts appointments.
// Hours are local whole hours, half-open [StartHour, EndHour).
type WorkingHours struct {
	StartHour int            `json:"start_hour"`
	EndHour   int            `json:"end_hour"`
	Weekdays  []time.Weekday `json:"weekdays"`
}

// DefaultWorkingHours is Mon-Fri 09:00-18:00, the office standard.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{
		StartHour: 9,
		EndHour:   18,
		Weekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

func (w WorkingHours) worksOn(day time.Weekday) bool {
	for _, d := range w.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

type Accountant struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Specializations []Specialization `json:"specializations"`
	Status          AccountantStatus `json:"status"`
	Hours           WorkingHours     `json:"hours"`
	Holidays        []string         `json:"holidays,omitempty"` // YYYY-MM-DD
}

// Live reports whether the accountant can take a transfer right now.
func (a Accountant) Live() bool {
	return a.Status == AccountantActive
}

func (a Accountant) onHoliday(day time.Time) bool {
	key := day.Format("2006-01-02")
	for _, h := range a.Holidays {
		if h == key {
			return true
		}
	}
	return false
}

func (a Accountant) hasSpecialization(s Specialization) bool {
	for _, have := range a.Specializations {
		if have == s {
			return true
		}
	}
	return false
}

type Client struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TaxCode      string `json:"tax_code"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	AccountantID string `json:"accountant_id,omitempty"`
}

type Appointment struct {
	ID           string            `json:"id"`
	ClientID     string            `json:"client_id"`
	AccountantID string            `json:"accountant_id"`
	StartAt      time.Time         `json:"start_at"`
	DurationMin  int               `json:"duration_min"`
	Status       AppointmentStatus `json:"status"`
	Subject      string            `json:"subject,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// End is the exclusive end of the appointment interval.
func (a Appointment) End() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMin) * time.Minute)
}

// Overlaps reports whether the half-open intervals of the two appointments
// intersect.
func (a Appointment) Overlaps(start time.Time, durationMin int) bool {
	end := start.Add(time.Duration(durationMin) * time.Minute)
	return a.StartAt.Before(end) && start.Before(a.End())
}

type CallLog struct {
	ID                string        `json:"id"`
	ClientID          string        `json:"client_id,omitempty"`
	AccountantID      string        `json:"accountant_id"`
	CallerPhone       string        `json:"caller_phone,omitempty"`
	Reason            string        `json:"reason"`
	CallbackRequested bool          `json:"callback_requested"`
	Status            CallLogStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
}

type Lead struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	Email     string       `json:"email,omitempty"`
	Company   string       `json:"company,omitempty"`
	Category  LeadCategory `json:"category"`
	Notes     string       `json:"notes,omitempty"`
	Source    string       `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
}

// TimeSlot is one bookable interval returned by availability queries.
type TimeSlot struct {
	Start       time.Time `json:"start"`
	DurationMin int       `json:"duration_min"`
}

// Window is a half-open [From, To) query interval.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type CreateAppointmentParams struct {
	ClientID     string
	AccountantID string
	StartAt      time.Time
	DurationMin  int
	Subject      string
}

type LeadParams struct {
	Name     string
	Phone    string
	Email    string
	Company  string
	Category LeadCategory
	Notes    string
	Source   string
}

type CallLogParams struct {
	ClientID          string
	AccountantID      string
	CallerPhone       string
	Reason            string
	CallbackRequested bool
}

// ServiceGateway is the persistence and lookup boundary consumed by the
// core. Two implementations exist: MemoryGateway and PostgresGateway,
// selected once at process configuration time. Call sites never branch on
// mode.
//
// CreateAppointment and ModifyAppointment re-validate the no-overlap
// invariant at commit time and commit atomically; on overlap they return
// ErrConflict and leave stored state untouched.
type ServiceGateway interface {
	FindClient(ctx context.Context, query string) (*Client, error)
	FindAccountant(ctx context.Context, nameOrSpecialization string) (*Accountant, error)
	ListAccountants(ctx context.Context) ([]Accountant, error)

	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	CheckAvailability(ctx context.Context, accountantID string, window Window, durationMin int) ([]TimeSlot, error)
	CreateAppointment(ctx context.Context, p CreateAppointmentParams) (*Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
	ModifyAppointment(ctx context.Context, id string, startAt time.Time, durationMin int) (*Appointment, error)

	GetOfficeInfo(ctx context.Context, key string) (string, error)
	CreateLead(ctx context.Context, p LeadParams) (*Lead, error)
	LogCall(ctx context.Context, p CallLogParams) (*CallLog, error)
	SetCallLogContact(ctx context.Context, id string, phone string) error
}

var (
	partitaIVAPattern    = regexp.MustCompile(`^\d{11}$`)
	codiceFiscalePattern = regexp.MustCompile(`^[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]$`)
)

// ValidTaxCode accepts an 11-digit Partita IVA or a 16-character Codice
// Fiscale.
func ValidTaxCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	return partitaIVAPattern.MatchString(code) || codiceFiscalePattern.MatchString(code)
}

func (p CreateAppointmentParams) validate() error {
	if strings.TrimSpace(p.AccountantID) == "" {
		return errors.New("accountant id is required")
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return errors.New("client id is required")
	}
	if p.StartAt.IsZero() {
		return errors.New("start time is required")
	}
	if !ValidDurations[p.DurationMin] {
		return errors.New("duration must be 30, 60, 90 or 120 minutes")
	}
	return nil
}
