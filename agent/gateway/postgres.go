package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresConfig configures the durable gateway.
type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
	ConnLifetime time.Duration `envconfig:"CONN_LIFETIME" split_words:"true" default:"30m"`
}

// PostgresGateway is the durable ServiceGateway. Appointment writes run in
// a serializable transaction that re-checks the overlap invariant under
// FOR UPDATE before committing.
type PostgresGateway struct {
	db  *bun.DB
	now func() time.Time
}

type accountantRow struct {
	bun.BaseModel `bun:"table:accountants,alias:acc"`

	ID              string   `bun:"id,pk"`
	Name            string   `bun:"name,notnull"`
	Specializations []string `bun:"specializations,array"`
	Status          string   `bun:"status,notnull"`
	StartHour       int      `bun:"start_hour,notnull"`
	EndHour         int      `bun:"end_hour,notnull"`
	Weekdays        []int    `bun:"weekdays,array"`
	Holidays        []string `bun:"holidays,array"`
}

type clientRow struct {
	bun.BaseModel `bun:"table:clients,alias:cl"`

	ID           string `bun:"id,pk"`
	Name         string `bun:"name,notnull"`
	TaxCode      string `bun:"tax_code,notnull"`
	Phone        string `bun:"phone"`
	Email        string `bun:"email"`
	AccountantID string `bun:"accountant_id"`
}

type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments,alias:ap"`

	ID           string    `bun:"id,pk"`
	ClientID     string    `bun:"client_id,notnull"`
	AccountantID string    `bun:"accountant_id,notnull"`
	StartAt      time.Time `bun:"start_at,notnull"`
	DurationMin  int       `bun:"duration_min,notnull"`
	Status       string    `bun:"status,notnull"`
	Subject      string    `bun:"subject"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

type callLogRow struct {
	bun.BaseModel `bun:"table:call_logs,alias:clg"`

	ID                string    `bun:"id,pk"`
	ClientID          string    `bun:"client_id"`
	AccountantID      string    `bun:"accountant_id"`
	CallerPhone       string    `bun:"caller_phone"`
	Reason            string    `bun:"reason,notnull"`
	CallbackRequested bool      `bun:"callback_requested,notnull"`
	Status            string    `bun:"status,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
}

type leadRow struct {
	bun.BaseModel `bun:"table:leads,alias:ld"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name"`
	Phone     string    `bun:"phone"`
	Email     string    `bun:"email"`
	Company   string    `bun:"company"`
	Category  string    `bun:"category,notnull"`
	Notes     string    `bun:"notes"`
	Source    string    `bun:"source"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type officeInfoRow struct {
	bun.BaseModel `bun:"table:office_info,alias:oi"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

func NewPostgresGateway(cfg PostgresConfig) (*PostgresGateway, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnLifetime)
	}

	return &PostgresGateway{
		db:  bun.NewDB(sqldb, pgdialect.New()),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Migrate creates the schema when absent. Demo deployments call this at
// startup; production schemas are managed externally.
func (g *PostgresGateway) Migrate(ctx context.Context) error {
	models := []any{
		(*accountantRow)(nil),
		(*clientRow)(nil),
		(*appointmentRow)(nil),
		(*callLogRow)(nil),
		(*leadRow)(nil),
		(*officeInfoRow)(nil),
	}
	for _, model := range models {
		if _, err := g.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", wrapPgErr(err))
		}
	}
	return nil
}

func (g *PostgresGateway) FindClient(ctx context.Context, query string) (*Client, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty client query", ErrInvalidInput)
	}

	row := new(clientRow)
	q := g.db.NewSelect().Model(row)
	if ValidTaxCode(query) {
		q = q.Where("upper(tax_code) = ?", strings.ToUpper(query))
	} else {
		q = q.Where("lower(name) LIKE ?", "%"+strings.ToLower(query)+"%").OrderExpr("name ASC")
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		return nil, wrapPgErr(err)
	}
	return clientFromRow(row), nil
}

func (g *PostgresGateway) FindAccountant(ctx context.Context, nameOrSpecialization string) (*Accountant, error) {
	query := strings.TrimSpace(nameOrSpecialization)
	if query == "" {
		return nil, fmt.Errorf("%w: empty accountant query", ErrInvalidInput)
	}

	row := new(accountantRow)
	q := g.db.NewSelect().Model(row).OrderExpr("name ASC")
	if spec := strings.ToLower(query); spec == string(SpecTax) || spec == string(SpecPayroll) || spec == string(SpecCorporate) || spec == string(SpecGeneral) {
		q = q.Where("? = ANY(specializations)", spec)
	} else {
		q = q.Where("lower(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		return nil, wrapPgErr(err)
	}
	return accountantFromRow(row), nil
}

func (g *PostgresGateway) ListAccountants(ctx context.Context) ([]Accountant, error) {
	var rows []accountantRow
	if err := g.db.NewSelect().Model(&rows).OrderExpr("name ASC").Scan(ctx); err != nil {
		return nil, wrapPgErr(err)
	}
	out := make([]Accountant, 0, len(rows))
	for i := range rows {
		out = append(out, *accountantFromRow(&rows[i]))
	}
	return out, nil
}

func (g *PostgresGateway) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	row := new(appointmentRow)
	if err := g.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, wrapPgErr(err)
	}
	return appointmentFromRow(row), nil
}

func (g *PostgresGateway) CheckAvailability(ctx context.Context, accountantID string, window Window, durationMin int) ([]TimeSlot, error) {
	if !ValidDurations[durationMin] {
		return nil, fmt.Errorf("%w: unsupported duration %d", ErrInvalidInput, durationMin)
	}

	accRow := new(accountantRow)
	if err := g.db.NewSelect().Model(accRow).Where("id = ?", accountantID).Scan(ctx); err != nil {
		return nil, wrapPgErr(err)
	}

	var rows []appointmentRow
	err := g.db.NewSelect().Model(&rows).
		Where("accountant_id = ?", accountantID).
		Where("status != ?", string(AppointmentCancelled)).
		Where("start_at < ?", window.To).
		Scan(ctx)
	if err != nil {
		return nil, wrapPgErr(err)
	}

	existing := make([]Appointment, 0, len(rows))
	for i := range rows {
		existing = append(existing, *appointmentFromRow(&rows[i]))
	}
	return FreeSlots(accountantFromRow(accRow), existing, window, durationMin), nil
}

func (g *PostgresGateway) CreateAppointment(ctx context.Context, p CreateAppointmentParams) (*Appointment, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := g.now()
	row := &appointmentRow{
		ID:           uuid.NewString(),
		ClientID:     p.ClientID,
		AccountantID: p.AccountantID,
		StartAt:      p.StartAt,
		DurationMin:  p.DurationMin,
		Status:       string(AppointmentConfirmed),
		Subject:      p.Subject,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := g.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := overlapExists(ctx, tx, p.AccountantID, "", p.StartAt, p.DurationMin)
		if err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		_, err = tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, wrapPgErr(err)
	}
	return appointmentFromRow(row), nil
}

func (g *PostgresGateway) CancelAppointment(ctx context.Context, id string) error {
	res, err := g.db.NewUpdate().Model((*appointmentRow)(nil)).
		Set("status = ?", string(AppointmentCancelled)).
		Set("updated_at = ?", g.now()).
		Where("id = ?", id).
		Where("status != ?", string(AppointmentCancelled)).
		Exec(ctx)
	if err != nil {
		return wrapPgErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapPgErr(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *PostgresGateway) ModifyAppointment(ctx context.Context, id string, startAt time.Time, durationMin int) (*Appointment, error) {
	if !ValidDurations[durationMin] {
		return nil, fmt.Errorf("%w: unsupported duration %d", ErrInvalidInput, durationMin)
	}

	row := new(appointmentRow)
	err := g.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(row).
			Where("id = ?", id).
			Where("status != ?", string(AppointmentCancelled)).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return err
		}

		exists, err := overlapExists(ctx, tx, row.AccountantID, id, startAt, durationMin)
		if err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}

		row.StartAt = startAt
		row.DurationMin = durationMin
		row.UpdatedAt = g.now()
		_, err = tx.NewUpdate().Model(row).
			Column("start_at", "duration_min", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, wrapPgErr(err)
	}
	return appointmentFromRow(row), nil
}

// overlapExists checks for a non-cancelled appointment of the accountant
// intersecting the half-open candidate interval, locking the matching rows
// so a concurrent writer cannot sneak in between check and insert.
func overlapExists(ctx context.Context, tx bun.Tx, accountantID, excludeID string, startAt time.Time, durationMin int) (bool, error) {
	end := startAt.Add(time.Duration(durationMin) * time.Minute)
	q := tx.NewSelect().Model((*appointmentRow)(nil)).
		Where("accountant_id = ?", accountantID).
		Where("status != ?", string(AppointmentCancelled)).
		Where("start_at < ?", end).
		Where("start_at + duration_min * interval '1 minute' > ?", startAt).
		For("UPDATE")
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func (g *PostgresGateway) GetOfficeInfo(ctx context.Context, key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", fmt.Errorf("%w: empty office info key", ErrInvalidInput)
	}
	row := new(officeInfoRow)
	if err := g.db.NewSelect().Model(row).Where("key = ?", key).Scan(ctx); err != nil {
		return "", wrapPgErr(err)
	}
	return row.Value, nil
}

func (g *PostgresGateway) CreateLead(ctx context.Context, p LeadParams) (*Lead, error) {
	if p.Category == "" {
		return nil, fmt.Errorf("%w: lead category is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Phone) == "" && strings.TrimSpace(p.Email) == "" {
		return nil, fmt.Errorf("%w: lead needs a phone or an email", ErrInvalidInput)
	}

	row := &leadRow{
		ID:        uuid.NewString(),
		Name:      p.Name,
		Phone:     p.Phone,
		Email:     p.Email,
		Company:   p.Company,
		Category:  string(p.Category),
		Notes:     p.Notes,
		Source:    p.Source,
		CreatedAt: g.now(),
	}
	if _, err := g.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, wrapPgErr(err)
	}
	return &Lead{
		ID: row.ID, Name: row.Name, Phone: row.Phone, Email: row.Email,
		Company: row.Company, Category: LeadCategory(row.Category),
		Notes: row.Notes, Source: row.Source, CreatedAt: row.CreatedAt,
	}, nil
}

func (g *PostgresGateway) LogCall(ctx context.Context, p CallLogParams) (*CallLog, error) {
	if strings.TrimSpace(p.Reason) == "" {
		return nil, fmt.Errorf("%w: call log reason is required", ErrInvalidInput)
	}

	row := &callLogRow{
		ID:                uuid.NewString(),
		ClientID:          p.ClientID,
		AccountantID:      p.AccountantID,
		CallerPhone:       p.CallerPhone,
		Reason:            p.Reason,
		CallbackRequested: p.CallbackRequested,
		Status:            string(CallLogPending),
		CreatedAt:         g.now(),
	}
	if _, err := g.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, wrapPgErr(err)
	}
	return &CallLog{
		ID: row.ID, ClientID: row.ClientID, AccountantID: row.AccountantID,
		CallerPhone: row.CallerPhone, Reason: row.Reason,
		CallbackRequested: row.CallbackRequested,
		Status:            CallLogStatus(row.Status), CreatedAt: row.CreatedAt,
	}, nil
}

func (g *PostgresGateway) SetCallLogContact(ctx context.Context, id string, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: empty callback phone", ErrInvalidInput)
	}
	res, err := g.db.NewUpdate().Model((*callLogRow)(nil)).
		Set("caller_phone = ?", phone).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrapPgErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapPgErr(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// wrapPgErr maps driver errors onto the gateway sentinel set. Serialization
// failures map to ErrUnavailable so the scheduling engine retries them.
func wrapPgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if code := pgErr.Field('C'); code == "40001" || code == "40P01" {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func accountantFromRow(row *accountantRow) *Accountant {
	specs := make([]Specialization, 0, len(row.Specializations))
	for _, s := range row.Specializations {
		specs = append(specs, Specialization(s))
	}
	days := make([]time.Weekday, 0, len(row.Weekdays))
	for _, d := range row.Weekdays {
		days = append(days, time.Weekday(d))
	}
	return &Accountant{
		ID:              row.ID,
		Name:            row.Name,
		Specializations: specs,
		Status:          AccountantStatus(row.Status),
		Hours:           WorkingHours{StartHour: row.StartHour, EndHour: row.EndHour, Weekdays: days},
		Holidays:        row.Holidays,
	}
}

func clientFromRow(row *clientRow) *Client {
	return &Client{
		ID:           row.ID,
		Name:         row.Name,
		TaxCode:      row.TaxCode,
		Phone:        row.Phone,
		Email:        row.Email,
		AccountantID: row.AccountantID,
	}
}

func appointmentFromRow(row *appointmentRow) *Appointment {
	return &Appointment{
		ID:           row.ID,
		ClientID:     row.ClientID,
		AccountantID: row.AccountantID,
		StartAt:      row.StartAt,
		DurationMin:  row.DurationMin,
		Status:       AppointmentStatus(row.Status),
		Subject:      row.Subject,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
