// Package store provides SQLite-backed persistence for Tempora.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fentz26/tempora/internal/models"
)

// Store provides access to the Tempora SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (owner_id, name)
	);

	CREATE TABLE IF NOT EXISTS commitments (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT,
		start_utc DATETIME,
		start_offset INTEGER NOT NULL DEFAULT 0,
		end_utc DATETIME,
		end_offset INTEGER NOT NULL DEFAULT 0,
		template_id TEXT,
		category_id TEXT,
		description TEXT,
		provisional INTEGER NOT NULL DEFAULT 1,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT,
		start_clock TEXT,
		end_clock TEXT,
		start_date TEXT,
		end_date TEXT,
		description TEXT,
		category_id TEXT,
		rule TEXT,
		provisional INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS template_skip_days (
		template_id TEXT NOT NULL,
		day TEXT NOT NULL,
		PRIMARY KEY (template_id, day)
	);

	CREATE TABLE IF NOT EXISTS time_buckets (
		owner_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		day TEXT NOT NULL,
		minutes INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, category_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_commitments_owner_start ON commitments(owner_id, start_utc);
	CREATE INDEX IF NOT EXISTS idx_commitments_template ON commitments(template_id);
	CREATE INDEX IF NOT EXISTS idx_templates_owner ON templates(owner_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// splitInstant separates an absolute instant into its UTC value and the
// authored zone offset (seconds) for storage.
func splitInstant(t *time.Time) (sql.NullTime, int) {
	if t == nil {
		return sql.NullTime{}, 0
	}
	_, offset := t.Zone()
	return sql.NullTime{Time: t.UTC(), Valid: true}, offset
}

// joinInstant rebuilds an instant from its stored UTC value and offset so
// that it round-trips in the zone it was authored under.
func joinInstant(nt sql.NullTime, offset int) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.In(time.FixedZone("", offset))
	return &t
}

// --- Commitment Operations ---

const commitmentCols = `id, owner_id, name, start_utc, start_offset, end_utc, end_offset,
	template_id, category_id, description, provisional, completed, created_at, updated_at`

// CreateCommitment inserts a new commitment, assigning its id and
// bookkeeping timestamps.
func (s *Store) CreateCommitment(c *models.Commitment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	startUTC, startOff := splitInstant(c.StartAt)
	endUTC, endOff := splitInstant(c.EndAt)

	_, err := s.db.Exec(
		`INSERT INTO commitments (`+commitmentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, startUTC, startOff, endUTC, endOff,
		c.TemplateID, c.CategoryID, c.Description, c.Provisional, c.Completed, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}
	return nil
}

// GetCommitment retrieves a commitment by id, or nil when absent.
func (s *Store) GetCommitment(id string) (*models.Commitment, error) {
	row := s.db.QueryRow(`SELECT `+commitmentCols+` FROM commitments WHERE id = ?`, id)
	c, err := scanCommitment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query commitment: %w", err)
	}
	return c, nil
}

// UpdateCommitment rewrites all mutable fields of a commitment.
func (s *Store) UpdateCommitment(c *models.Commitment) error {
	c.UpdatedAt = time.Now().UTC()
	startUTC, startOff := splitInstant(c.StartAt)
	endUTC, endOff := splitInstant(c.EndAt)

	res, err := s.db.Exec(
		`UPDATE commitments SET name = ?, start_utc = ?, start_offset = ?, end_utc = ?, end_offset = ?,
		 category_id = ?, description = ?, provisional = ?, completed = ?, updated_at = ? WHERE id = ?`,
		c.Name, startUTC, startOff, endUTC, endOff,
		c.CategoryID, c.Description, c.Provisional, c.Completed, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update commitment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("commitment %s not found", c.ID)
	}
	return nil
}

// DeleteCommitment removes a commitment unconditionally.
func (s *Store) DeleteCommitment(id string) error {
	_, err := s.db.Exec(`DELETE FROM commitments WHERE id = ?`, id)
	return err
}

// ListCommitments returns every commitment of the owner whose range
// overlaps [from, to), in ascending start order. Open-ended commitments
// count as overlapping once they start before to. Drafts without a start
// cannot be placed in a window and are omitted.
func (s *Store) ListCommitments(ownerID string, from, to time.Time) ([]models.Commitment, error) {
	rows, err := s.db.Query(
		`SELECT `+commitmentCols+` FROM commitments
		 WHERE owner_id = ? AND start_utc IS NOT NULL
		   AND ((end_utc IS NOT NULL AND start_utc < ? AND end_utc > ?)
		        OR (end_utc IS NULL AND start_utc < ?))
		 ORDER BY start_utc`,
		ownerID, to.UTC(), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	return collectCommitments(rows)
}

// ConfirmedOverlapping returns the owner's confirmed commitments relevant
// to a conflict check against [from, to). A nil to designates an
// open-ended candidate: every confirmed commitment that is itself
// open-ended or ends after from is returned.
func (s *Store) ConfirmedOverlapping(ownerID string, from time.Time, to *time.Time) ([]models.Commitment, error) {
	var rows *sql.Rows
	var err error
	if to != nil {
		rows, err = s.db.Query(
			`SELECT `+commitmentCols+` FROM commitments
			 WHERE owner_id = ? AND provisional = 0 AND start_utc IS NOT NULL
			   AND ((end_utc IS NOT NULL AND start_utc < ? AND end_utc > ?)
			        OR (end_utc IS NULL AND start_utc < ?))
			 ORDER BY start_utc`,
			ownerID, to.UTC(), from.UTC(), to.UTC(),
		)
	} else {
		rows, err = s.db.Query(
			`SELECT `+commitmentCols+` FROM commitments
			 WHERE owner_id = ? AND provisional = 0 AND start_utc IS NOT NULL
			   AND (end_utc IS NULL OR end_utc > ?)
			 ORDER BY start_utc`,
			ownerID, from.UTC(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query confirmed commitments: %w", err)
	}
	return collectCommitments(rows)
}

// FutureTemplateInstances returns the not-yet-completed commitments
// descended from a template that start after the given instant, used when
// template changes propagate forward.
func (s *Store) FutureTemplateInstances(templateID string, after time.Time) ([]models.Commitment, error) {
	rows, err := s.db.Query(
		`SELECT `+commitmentCols+` FROM commitments
		 WHERE template_id = ? AND completed = 0 AND start_utc IS NOT NULL AND start_utc > ?
		 ORDER BY start_utc`,
		templateID, after.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query template instances: %w", err)
	}
	return collectCommitments(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommitment(r rowScanner) (*models.Commitment, error) {
	var c models.Commitment
	var name, templateID, categoryID, description sql.NullString
	var startUTC, endUTC sql.NullTime
	var startOff, endOff int

	err := r.Scan(&c.ID, &c.OwnerID, &name, &startUTC, &startOff, &endUTC, &endOff,
		&templateID, &categoryID, &description, &c.Provisional, &c.Completed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if name.Valid {
		c.Name = &name.String
	}
	if templateID.Valid {
		c.TemplateID = &templateID.String
	}
	if categoryID.Valid {
		c.CategoryID = &categoryID.String
	}
	if description.Valid {
		c.Description = description.String
	}
	c.StartAt = joinInstant(startUTC, startOff)
	c.EndAt = joinInstant(endUTC, endOff)
	return &c, nil
}

func collectCommitments(rows *sql.Rows) ([]models.Commitment, error) {
	defer rows.Close()
	var out []models.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// --- Template Operations ---

const templateCols = `id, owner_id, name, start_clock, end_clock, start_date, end_date,
	description, category_id, rule, provisional, created_at, updated_at`

// CreateTemplate inserts a new recurring template with its skip days.
func (s *Store) CreateTemplate(tpl *models.RecurringTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO templates (`+templateCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.ID, tpl.OwnerID, tpl.Name, clockText(tpl.StartClock), clockText(tpl.EndClock),
		dateText(tpl.StartDate), dateText(tpl.EndDate),
		tpl.Description, tpl.CategoryID, nullIfEmpty(tpl.Rule), tpl.Provisional, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	if err := replaceSkipDays(tx, tpl.ID, tpl.SkipDays); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template and its skip days, or nil when absent.
func (s *Store) GetTemplate(id string) (*models.RecurringTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM templates WHERE id = ?`, id)
	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}
	if err := s.loadSkipDays(tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// UpdateTemplate rewrites a template and replaces its skip-day set in a
// single transaction.
func (s *Store) UpdateTemplate(tpl *models.RecurringTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE templates SET name = ?, start_clock = ?, end_clock = ?, start_date = ?, end_date = ?,
		 description = ?, category_id = ?, rule = ?, provisional = ?, updated_at = ? WHERE id = ?`,
		tpl.Name, clockText(tpl.StartClock), clockText(tpl.EndClock),
		dateText(tpl.StartDate), dateText(tpl.EndDate),
		tpl.Description, tpl.CategoryID, nullIfEmpty(tpl.Rule), tpl.Provisional, tpl.UpdatedAt, tpl.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("template %s not found", tpl.ID)
	}

	if _, err := tx.Exec(`DELETE FROM template_skip_days WHERE template_id = ?`, tpl.ID); err != nil {
		return fmt.Errorf("clear skip days: %w", err)
	}
	if err := replaceSkipDays(tx, tpl.ID, tpl.SkipDays); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template and its skip days. Already-solidified
// commitments keep their originating-template reference untouched.
func (s *Store) DeleteTemplate(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM template_skip_days WHERE template_id = ?`, id); err != nil {
		return fmt.Errorf("delete skip days: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM templates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return tx.Commit()
}

// ListTemplates returns all of the owner's templates, drafts included,
// newest first.
func (s *Store) ListTemplates(ownerID string) ([]models.RecurringTemplate, error) {
	rows, err := s.db.Query(
		`SELECT `+templateCols+` FROM templates WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []models.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadSkipDays(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ActiveTemplates returns the owner's confirmed templates whose date range
// intersects [fromDay, toDay] (inclusive calendar dates in DayKey form).
func (s *Store) ActiveTemplates(ownerID, fromDay, toDay string) ([]models.RecurringTemplate, error) {
	rows, err := s.db.Query(
		`SELECT `+templateCols+` FROM templates
		 WHERE owner_id = ? AND provisional = 0 AND start_date IS NOT NULL
		   AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY start_date`,
		ownerID, toDay, fromDay,
	)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []models.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadSkipDays(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OwnersWithTemplates lists the distinct owners that have at least one
// confirmed template, for the daemon's rolling solidification pass.
func (s *Store) OwnersWithTemplates() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT owner_id FROM templates WHERE provisional = 0`)
	if err != nil {
		return nil, fmt.Errorf("query template owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func scanTemplate(r rowScanner) (*models.RecurringTemplate, error) {
	var tpl models.RecurringTemplate
	var name, startClock, endClock, startDate, endDate, description, categoryID, rule sql.NullString

	err := r.Scan(&tpl.ID, &tpl.OwnerID, &name, &startClock, &endClock, &startDate, &endDate,
		&description, &categoryID, &rule, &tpl.Provisional, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if name.Valid {
		tpl.Name = &name.String
	}
	if description.Valid {
		tpl.Description = description.String
	}
	if categoryID.Valid {
		tpl.CategoryID = &categoryID.String
	}
	if rule.Valid {
		tpl.Rule = rule.String
	}
	if startClock.Valid {
		tod, err := models.ParseTimeOfDay(startClock.String)
		if err != nil {
			return nil, err
		}
		tpl.StartClock = &tod
	}
	if endClock.Valid {
		tod, err := models.ParseTimeOfDay(endClock.String)
		if err != nil {
			return nil, err
		}
		tpl.EndClock = &tod
	}
	if startDate.Valid {
		d, err := time.Parse("2006-01-02", startDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse start date: %w", err)
		}
		tpl.StartDate = &d
	}
	if endDate.Valid {
		d, err := time.Parse("2006-01-02", endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse end date: %w", err)
		}
		tpl.EndDate = &d
	}
	return &tpl, nil
}

func (s *Store) loadSkipDays(tpl *models.RecurringTemplate) error {
	rows, err := s.db.Query(`SELECT day FROM template_skip_days WHERE template_id = ? ORDER BY day`, tpl.ID)
	if err != nil {
		return fmt.Errorf("query skip days: %w", err)
	}
	defer rows.Close()

	tpl.SkipDays = nil
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return fmt.Errorf("scan skip day: %w", err)
		}
		tpl.SkipDays = append(tpl.SkipDays, day)
	}
	return rows.Err()
}

func replaceSkipDays(tx *sql.Tx, templateID string, days []string) error {
	for _, day := range days {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO template_skip_days (template_id, day) VALUES (?, ?)`,
			templateID, day,
		); err != nil {
			return fmt.Errorf("insert skip day: %w", err)
		}
	}
	return nil
}

func clockText(t *models.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

func dateText(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format("2006-01-02"), Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// --- Category Operations ---

// CreateCategory inserts a new category for an owner.
func (s *Store) CreateCategory(ownerID, name string) (*models.Category, error) {
	cat := &models.Category{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO categories (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		cat.ID, cat.OwnerID, cat.Name, cat.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return cat, nil
}

// GetCategory retrieves a category by id, or nil when absent.
func (s *Store) GetCategory(id string) (*models.Category, error) {
	cat := &models.Category{}
	err := s.db.QueryRow(
		`SELECT id, owner_id, name, created_at FROM categories WHERE id = ?`, id,
	).Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return cat, nil
}

// ListCategories returns the owner's categories by name.
func (s *Store) ListCategories(ownerID string) ([]models.Category, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_id, name, created_at FROM categories WHERE owner_id = ? ORDER BY name`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

// EnsureDefaultCategory returns the owner's fallback category, creating it
// on first use.
func (s *Store) EnsureDefaultCategory(ownerID string) (*models.Category, error) {
	cat := &models.Category{}
	err := s.db.QueryRow(
		`SELECT id, owner_id, name, created_at FROM categories WHERE owner_id = ? AND name = ?`,
		ownerID, models.DefaultCategoryName,
	).Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.CreatedAt)
	if err == nil {
		return cat, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("query default category: %w", err)
	}
	return s.CreateCategory(ownerID, models.DefaultCategoryName)
}

// --- Time Bucket Operations ---

// AddToBucket adjusts the tracked minutes of an owner/category/day bucket
// by delta, creating the bucket on first write.
func (s *Store) AddToBucket(ownerID, categoryID, day string, delta int) error {
	_, err := s.db.Exec(
		`INSERT INTO time_buckets (owner_id, category_id, day, minutes) VALUES (?, ?, ?, ?)
		 ON CONFLICT (owner_id, category_id, day) DO UPDATE SET minutes = minutes + excluded.minutes`,
		ownerID, categoryID, day, delta,
	)
	if err != nil {
		return fmt.Errorf("upsert time bucket: %w", err)
	}
	return nil
}

// BucketsInRange returns the owner's buckets for days in [fromDay, toDay],
// ordered by day then category.
func (s *Store) BucketsInRange(ownerID, fromDay, toDay string) ([]models.TimeBucket, error) {
	rows, err := s.db.Query(
		`SELECT owner_id, category_id, day, minutes FROM time_buckets
		 WHERE owner_id = ? AND day >= ? AND day <= ? ORDER BY day, category_id`,
		ownerID, fromDay, toDay,
	)
	if err != nil {
		return nil, fmt.Errorf("query time buckets: %w", err)
	}
	defer rows.Close()

	var out []models.TimeBucket
	for rows.Next() {
		var b models.TimeBucket
		if err := rows.Scan(&b.OwnerID, &b.CategoryID, &b.Day, &b.Minutes); err != nil {
			return nil, fmt.Errorf("scan time bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
