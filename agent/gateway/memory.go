package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGateway is the in-memory ServiceGateway used in demo mode and in
// tests. One mutex guards all maps, so the availability check and the
// insert inside CreateAppointment run as a single atomic step.
type MemoryGateway struct {
	mu           sync.Mutex
	accountants  map[string]*Accountant
	clients      map[string]*Client
	appointments map[string]*Appointment
	callLogs     map[string]*CallLog
	leads        map[string]*Lead
	officeInfo   map[string]string
	now          func() time.Time
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		accountants:  make(map[string]*Accountant),
		clients:      make(map[string]*Client),
		appointments: make(map[string]*Appointment),
		callLogs:     make(map[string]*CallLog),
		leads:        make(map[string]*Lead),
		officeInfo:   make(map[string]string),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// NewDemoGateway returns a MemoryGateway pre-seeded with the demo office:
// three accountants, one known client and the office info sheet.
func NewDemoGateway() *MemoryGateway {
	g := NewMemoryGateway()
	g.SeedDemo()
	return g
}

// SeedDemo loads the demo dataset. Safe to call once on an empty gateway.
func (g *MemoryGateway) SeedDemo() {
	g.mu.Lock()
	defer g.mu.Unlock()

	seed := []*Accountant{
		{
			ID:              uuid.NewString(),
			Name:            "Dott. Marco Rossi",
			Specializations: []Specialization{SpecTax, SpecGeneral},
			Status:          AccountantActive,
			Hours:           DefaultWorkingHours(),
		},
		{
			ID:              uuid.NewString(),
			Name:            "Dott.ssa Laura Bianchi",
			Specializations: []Specialization{SpecPayroll},
			Status:          AccountantActive,
			Hours:           DefaultWorkingHours(),
		},
		{
			ID:              uuid.NewString(),
			Name:            "Dott. Giuseppe Verdi",
			Specializations: []Specialization{SpecCorporate},
			Status:          AccountantVacation,
			Hours:           DefaultWorkingHours(),
		},
	}
	for _, acc := range seed {
		g.accountants[acc.ID] = acc
	}

	client := &Client{
		ID:           uuid.NewString(),
		Name:         "Mario Ferrari",
		TaxCode:      "12345678901",
		Phone:        "+39 333 1234567",
		Email:        "mario.ferrari@example.it",
		AccountantID: seed[0].ID,
	}
	g.clients[client.ID] = client

	g.officeInfo = map[string]string{
		"office_address":         "Via Roma 42, 20121 Milano",
		"office_phone":           "+39 02 1234567",
		"office_email":           "info@studiorossi.it",
		"office_hours_monday":    "9:00-18:00",
		"office_hours_tuesday":   "9:00-18:00",
		"office_hours_wednesday": "9:00-18:00",
		"office_hours_thursday":  "9:00-18:00",
		"office_hours_friday":    "9:00-18:00",
		"office_hours_saturday":  "chiuso",
		"office_hours_sunday":    "chiuso",
	}
}

func (g *MemoryGateway) FindClient(ctx context.Context, query string) (*Client, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty client query", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if ValidTaxCode(query) {
		want := strings.ToUpper(query)
		for _, c := range g.clients {
			if strings.ToUpper(c.TaxCode) == want {
				cp := *c
				return &cp, nil
			}
		}
		return nil, ErrNotFound
	}

	needle := strings.ToLower(query)
	for _, c := range g.clients {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (g *MemoryGateway) FindAccountant(ctx context.Context, nameOrSpecialization string) (*Accountant, error) {
	query := strings.TrimSpace(nameOrSpecialization)
	if query == "" {
		return nil, fmt.Errorf("%w: empty accountant query", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if spec := Specialization(strings.ToLower(query)); spec == SpecTax || spec == SpecPayroll || spec == SpecCorporate || spec == SpecGeneral {
		for _, acc := range g.sortedAccountants() {
			if acc.hasSpecialization(spec) {
				cp := *acc
				return &cp, nil
			}
		}
		return nil, ErrNotFound
	}

	needle := strings.ToLower(query)
	for _, acc := range g.sortedAccountants() {
		if strings.Contains(strings.ToLower(acc.Name), needle) {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (g *MemoryGateway) ListAccountants(ctx context.Context) ([]Accountant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Accountant, 0, len(g.accountants))
	for _, acc := range g.sortedAccountants() {
		out = append(out, *acc)
	}
	return out, nil
}

// sortedAccountants returns accountants in stable name order so lookups are
// deterministic across calls. Caller must hold g.mu.
func (g *MemoryGateway) sortedAccountants() []*Accountant {
	out := make([]*Accountant, 0, len(g.accountants))
	for _, acc := range g.accountants {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (g *MemoryGateway) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	appt, ok := g.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (g *MemoryGateway) CheckAvailability(ctx context.Context, accountantID string, window Window, durationMin int) ([]TimeSlot, error) {
	if !ValidDurations[durationMin] {
		return nil, fmt.Errorf("%w: unsupported duration %d", ErrInvalidInput, durationMin)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	acc, ok := g.accountants[accountantID]
	if !ok {
		return nil, ErrNotFound
	}
	return FreeSlots(acc, g.appointmentsFor(accountantID), window, durationMin), nil
}

// appointmentsFor returns copies of all appointments of one accountant.
// Caller must hold g.mu.
func (g *MemoryGateway) appointmentsFor(accountantID string) []Appointment {
	var out []Appointment
	for _, appt := range g.appointments {
		if appt.AccountantID == accountantID {
			out = append(out, *appt)
		}
	}
	return out
}

func (g *MemoryGateway) CreateAppointment(ctx context.Context, p CreateAppointmentParams) (*Appointment, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.accountants[p.AccountantID]; !ok {
		return nil, ErrNotFound
	}
	for _, appt := range g.appointments {
		if appt.AccountantID == p.AccountantID && appt.Status != AppointmentCancelled && appt.Overlaps(p.StartAt, p.DurationMin) {
			return nil, ErrConflict
		}
	}

	now := g.now()
	appt := &Appointment{
		ID:           uuid.NewString(),
		ClientID:     p.ClientID,
		AccountantID: p.AccountantID,
		StartAt:      p.StartAt,
		DurationMin:  p.DurationMin,
		Status:       AppointmentConfirmed,
		Subject:      p.Subject,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	g.appointments[appt.ID] = appt
	cp := *appt
	return &cp, nil
}

func (g *MemoryGateway) CancelAppointment(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	appt, ok := g.appointments[id]
	if !ok || appt.Status == AppointmentCancelled {
		return ErrNotFound
	}
	appt.Status = AppointmentCancelled
	appt.UpdatedAt = g.now()
	return nil
}

func (g *MemoryGateway) ModifyAppointment(ctx context.Context, id string, startAt time.Time, durationMin int) (*Appointment, error) {
	if !ValidDurations[durationMin] {
		return nil, fmt.Errorf("%w: unsupported duration %d", ErrInvalidInput, durationMin)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	appt, ok := g.appointments[id]
	if !ok || appt.Status == AppointmentCancelled {
		return nil, ErrNotFound
	}
	for _, other := range g.appointments {
		if other.ID == id {
			continue
		}
		if other.AccountantID == appt.AccountantID && other.Status != AppointmentCancelled && other.Overlaps(startAt, durationMin) {
			return nil, ErrConflict
		}
	}

	appt.StartAt = startAt
	appt.DurationMin = durationMin
	appt.UpdatedAt = g.now()
	cp := *appt
	return &cp, nil
}

func (g *MemoryGateway) GetOfficeInfo(ctx context.Context, key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", fmt.Errorf("%w: empty office info key", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	value, ok := g.officeInfo[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (g *MemoryGateway) CreateLead(ctx context.Context, p LeadParams) (*Lead, error) {
	if p.Category == "" {
		return nil, fmt.Errorf("%w: lead category is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Phone) == "" && strings.TrimSpace(p.Email) == "" {
		return nil, fmt.Errorf("%w: lead needs a phone or an email", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	lead := &Lead{
		ID:        uuid.NewString(),
		Name:      p.Name,
		Phone:     p.Phone,
		Email:     p.Email,
		Company:   p.Company,
		Category:  p.Category,
		Notes:     p.Notes,
		Source:    p.Source,
		CreatedAt: g.now(),
	}
	g.leads[lead.ID] = lead
	cp := *lead
	return &cp, nil
}

func (g *MemoryGateway) LogCall(ctx context.Context, p CallLogParams) (*CallLog, error) {
	if strings.TrimSpace(p.Reason) == "" {
		return nil, fmt.Errorf("%w: call log reason is required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	entry := &CallLog{
		ID:                uuid.NewString(),
		ClientID:          p.ClientID,
		AccountantID:      p.AccountantID,
		CallerPhone:       p.CallerPhone,
		Reason:            p.Reason,
		CallbackRequested: p.CallbackRequested,
		Status:            CallLogPending,
		CreatedAt:         g.now(),
	}
	g.callLogs[entry.ID] = entry
	cp := *entry
	return &cp, nil
}

func (g *MemoryGateway) SetCallLogContact(ctx context.Context, id string, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: empty callback phone", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.callLogs[id]
	if !ok {
		return ErrNotFound
	}
	entry.CallerPhone = phone
	return nil
}

// AddAccountant registers an accountant, assigning an ID when absent.
// Exposed for tests and custom seeding.
func (g *MemoryGateway) AddAccountant(acc Accountant) Accountant {
	g.mu.Lock()
	defer g.mu.Unlock()

	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	cp := acc
	g.accountants[acc.ID] = &cp
	return acc
}

// AddClient registers a client, assigning an ID when absent.
func (g *MemoryGateway) AddClient(c Client) Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := c
	g.clients[c.ID] = &cp
	return c
}

// SetOfficeInfo sets one office info entry.
func (g *MemoryGateway) SetOfficeInfo(key, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.officeInfo[strings.ToLower(strings.TrimSpace(key))] = value
}
