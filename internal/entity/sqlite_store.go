package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Column lists per table.
const (
	sensorColumns = `id, created, label, pin`
	deviceColumns = `id, created, label, pin, value`
	ruleColumns   = `id, created, label, enabled, conditions`
)

// tableFor maps a kind to its table name.
var tableFor = map[Kind]string{
	KindSensor: "sensors",
	KindDevice: "devices",
	KindRule:   "rules",
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// GetByID retrieves one entity.
func (s *SQLiteStore) GetByID(ctx context.Context, kind Kind, id int64) (Entity, error) {
	var (
		e   Entity
		err error
	)

	switch kind {
	case KindSensor:
		e, err = scanSensorRow(s.db.QueryRowContext(ctx,
			`SELECT `+sensorColumns+` FROM sensors WHERE id = ?`, id))
	case KindDevice:
		e, err = scanDeviceRow(s.db.QueryRowContext(ctx,
			`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
	case KindRule:
		e, err = scanRuleRow(s.db.QueryRowContext(ctx,
			`SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id))
	default:
		return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, kind)
	}

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordMissing
		}
		return nil, fmt.Errorf("querying %s by id: %w", kind, err)
	}
	return e, nil
}

// List retrieves all entities of a kind ordered by id.
func (s *SQLiteStore) List(ctx context.Context, kind Kind) ([]Entity, error) {
	var query string
	switch kind {
	case KindSensor:
		query = `SELECT ` + sensorColumns + ` FROM sensors ORDER BY id`
	case KindDevice:
		query = `SELECT ` + deviceColumns + ` FROM devices ORDER BY id`
	case KindRule:
		query = `SELECT ` + ruleColumns + ` FROM rules ORDER BY id`
	default:
		return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, kind)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", kind, err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var (
			e       Entity
			scanErr error
		)
		switch kind {
		case KindSensor:
			e, scanErr = scanSensorRow(rows)
		case KindDevice:
			e, scanErr = scanDeviceRow(rows)
		case KindRule:
			e, scanErr = scanRuleRow(rows)
		}
		if scanErr != nil {
			return nil, fmt.Errorf("scanning %s: %w", kind, scanErr)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", kind, err)
	}
	return entities, nil
}

// ListEnabledRules retrieves rules with enabled set, ordered by id.
func (s *SQLiteStore) ListEnabledRules(ctx context.Context) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying enabled rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		r, scanErr := scanRuleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning rule: %w", scanErr)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// Create inserts e and assigns its id and creation time.
func (s *SQLiteStore) Create(ctx context.Context, e Entity) error {
	created := e.CreatedAt()
	if created.IsZero() {
		created = s.now()
	}
	createdText := created.UTC().Format(time.RFC3339Nano)

	var (
		result sql.Result
		err    error
	)

	switch v := e.(type) {
	case *Sensor:
		result, err = s.db.ExecContext(ctx,
			`INSERT INTO sensors (created, label, pin) VALUES (?, ?, ?)`,
			createdText, v.Label, v.Pin)
	case *Device:
		result, err = s.db.ExecContext(ctx,
			`INSERT INTO devices (created, label, pin, value) VALUES (?, ?, ?, ?)`,
			createdText, v.Label, v.Pin, boolToInt(v.Value))
	case *Rule:
		conditions, encErr := EncodeConditions(v.Conditions)
		if encErr != nil {
			return encErr
		}
		result, err = s.db.ExecContext(ctx,
			`INSERT INTO rules (created, label, enabled, conditions) VALUES (?, ?, ?, ?)`,
			createdText, v.Label, boolToInt(v.Enabled), conditions)
	default:
		return fmt.Errorf("%w: %q", ErrEntityNotFound, e.Kind())
	}
	if err != nil {
		return fmt.Errorf("inserting %s: %w", e.Kind(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading %s id: %w", e.Kind(), err)
	}

	if ident, ok := e.(identified); ok {
		ident.setIdentity(id, created.UTC())
	}
	return nil
}

// Update replaces the persisted attributes of e. Id and creation time
// are never changed.
func (s *SQLiteStore) Update(ctx context.Context, e Entity) error {
	var (
		result sql.Result
		err    error
	)

	switch v := e.(type) {
	case *Sensor:
		result, err = s.db.ExecContext(ctx,
			`UPDATE sensors SET label = ?, pin = ? WHERE id = ?`,
			v.Label, v.Pin, v.ID)
	case *Device:
		result, err = s.db.ExecContext(ctx,
			`UPDATE devices SET label = ?, pin = ?, value = ? WHERE id = ?`,
			v.Label, v.Pin, boolToInt(v.Value), v.ID)
	case *Rule:
		conditions, encErr := EncodeConditions(v.Conditions)
		if encErr != nil {
			return encErr
		}
		result, err = s.db.ExecContext(ctx,
			`UPDATE rules SET label = ?, enabled = ?, conditions = ? WHERE id = ?`,
			v.Label, boolToInt(v.Enabled), conditions, v.ID)
	default:
		return fmt.Errorf("%w: %q", ErrEntityNotFound, e.Kind())
	}
	if err != nil {
		return fmt.Errorf("updating %s: %w", e.Kind(), err)
	}
	return requireOneRow(result)
}

// Delete removes an entity.
func (s *SQLiteStore) Delete(ctx context.Context, kind Kind, id int64) error {
	table, ok := tableFor[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, kind)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", kind, err)
	}
	return requireOneRow(result)
}

// SetDeviceValue updates only the persisted value of a device.
func (s *SQLiteStore) SetDeviceValue(ctx context.Context, id int64, value bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE devices SET value = ? WHERE id = ?`, boolToInt(value), id)
	if err != nil {
		return fmt.Errorf("updating device value: %w", err)
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRecordMissing
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSensorRow(scanner rowScanner) (*Sensor, error) {
	var s Sensor
	var created string
	if err := scanner.Scan(&s.ID, &created, &s.Label, &s.Pin); err != nil {
		return nil, err
	}
	s.Created = parseCreated(created)
	return &s, nil
}

func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var created string
	var value int
	if err := scanner.Scan(&d.ID, &created, &d.Label, &d.Pin, &value); err != nil {
		return nil, err
	}
	d.Created = parseCreated(created)
	d.Value = value != 0
	return &d, nil
}

func scanRuleRow(scanner rowScanner) (*Rule, error) {
	var r Rule
	var created, conditions string
	var enabled int
	if err := scanner.Scan(&r.ID, &created, &r.Label, &enabled, &conditions); err != nil {
		return nil, err
	}
	r.Created = parseCreated(created)
	r.Enabled = enabled != 0

	decoded, err := DecodeConditions(conditions)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", r.ID, err)
	}
	r.Conditions = decoded
	return &r, nil
}

func parseCreated(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
