package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gaurav-prasanna/policypipe/core"
)

// ErrInvalidTransition rejects a status change that is not one forward step.
var ErrInvalidTransition = errors.New("invalid status transition")

const schema = `
CREATE TABLE IF NOT EXISTS policies (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	section            TEXT NOT NULL DEFAULT '',
	number             TEXT NOT NULL DEFAULT '',
	subject            TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'Draft',
	current_version_id TEXT,
	version_seq        INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_versions (
	id              TEXT PRIMARY KEY,
	policy_id       TEXT NOT NULL REFERENCES policies(id),
	version_number  INTEGER NOT NULL,
	rendition_ref   TEXT NOT NULL,
	file_name       TEXT NOT NULL,
	file_size_bytes INTEGER NOT NULL,
	change_summary  TEXT NOT NULL DEFAULT '',
	published_at    INTEGER,
	created_at      INTEGER NOT NULL,
	UNIQUE (policy_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_policy_versions_policy ON policy_versions(policy_id);
`

// OpenDB opens a SQLite database with the standard pragmas and applies the
// schema. ":memory:" is pinned to one connection so every query sees the
// same database.
func OpenDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=10000",
	}
	if dbPath != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// PolicyStore reads and writes policy and version rows.
type PolicyStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPolicyStore wraps an open database.
func NewPolicyStore(db *sql.DB) *PolicyStore {
	return &PolicyStore{db: db, now: time.Now}
}

// Close closes the database.
func (s *PolicyStore) Close() error {
	return s.db.Close()
}

// CreatePolicy inserts p as a Draft. An empty ID is assigned.
func (s *PolicyStore) CreatePolicy(ctx context.Context, p *core.PolicyDocument) error {
	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV7()).String()
	}
	p.Status = core.StatusDraft
	p.CurrentVersionID = ""
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policies (id, title, section, number, subject, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Section, p.Number, p.Subject, string(p.Status), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("creating policy: %w", err)
	}
	return nil
}

// GetPolicy loads one policy.
func (s *PolicyStore) GetPolicy(ctx context.Context, id string) (*core.PolicyDocument, error) {
	var p core.PolicyDocument
	var status string
	var current sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, section, number, subject, status, current_version_id
		 FROM policies WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Section, &p.Number, &p.Subject, &status, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	p.Status = core.Status(status)
	p.CurrentVersionID = current.String
	return &p, nil
}

// NextVersionNumber is one past the highest number ever assigned for the
// policy. Numbers are never reused, even if a row disappears.
func (s *PolicyStore) NextVersionNumber(ctx context.Context, policyID string) (int, error) {
	var seq int
	var maxRow sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT version_seq FROM policies WHERE id = ?`, policyID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("reading version sequence: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(version_number) FROM policy_versions WHERE policy_id = ?`, policyID).Scan(&maxRow)
	if err != nil {
		return 0, fmt.Errorf("reading versions: %w", err)
	}
	if int(maxRow.Int64) > seq {
		seq = int(maxRow.Int64)
	}
	return seq + 1, nil
}

// InsertVersion adds a version row. A zero VersionNumber takes the next
// number; an empty ID is assigned.
func (s *PolicyStore) InsertVersion(ctx context.Context, v *core.PolicyVersion) error {
	if v.VersionNumber == 0 {
		n, err := s.NextVersionNumber(ctx, v.PolicyID)
		if err != nil {
			return err
		}
		v.VersionNumber = n
	}
	if v.ID == "" {
		v.ID = uuid.Must(uuid.NewV7()).String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	var published sql.NullInt64
	if v.PublishedAt != nil {
		published = sql.NullInt64{Int64: v.PublishedAt.UnixNano(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policy_versions
		 (id, policy_id, version_number, rendition_ref, file_name, file_size_bytes, change_summary, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.PolicyID, v.VersionNumber, v.RenditionRef, v.FileName, v.FileSizeBytes,
		v.ChangeSummary, published, v.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE policies SET version_seq = MAX(version_seq, ?) WHERE id = ?`, v.VersionNumber, v.PolicyID)
	if err != nil {
		return fmt.Errorf("advancing version sequence: %w", err)
	}
	return nil
}

// SetCurrentVersion points the policy at one of its versions.
func (s *PolicyStore) SetCurrentVersion(ctx context.Context, policyID, versionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE policies SET current_version_id = ?
		 WHERE id = ? AND EXISTS (SELECT 1 FROM policy_versions WHERE id = ? AND policy_id = ?)`,
		versionID, policyID, versionID, policyID)
	if err != nil {
		return fmt.Errorf("setting current version: %w", err)
	}
	return affectedOne(res, "policy %s version %s", policyID, versionID)
}

// SetStatus moves the policy one step forward in its lifecycle.
func (s *PolicyStore) SetStatus(ctx context.Context, policyID string, next core.Status) error {
	p, err := s.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if !p.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, next)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE policies SET status = ? WHERE id = ? AND status = ?`, string(next), policyID, string(p.Status))
	if err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	return affectedOne(res, "policy %s in status %s", policyID, p.Status)
}

const versionColumns = `id, policy_id, version_number, rendition_ref, file_name, file_size_bytes,
	change_summary, published_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*core.PolicyVersion, error) {
	var v core.PolicyVersion
	var published sql.NullInt64
	var created int64
	err := row.Scan(&v.ID, &v.PolicyID, &v.VersionNumber, &v.RenditionRef, &v.FileName,
		&v.FileSizeBytes, &v.ChangeSummary, &published, &created)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(0, created).UTC()
	if published.Valid {
		t := time.Unix(0, published.Int64).UTC()
		v.PublishedAt = &t
	}
	return &v, nil
}

// GetVersion loads one version.
func (s *PolicyStore) GetVersion(ctx context.Context, id string) (*core.PolicyVersion, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM policy_versions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading version: %w", err)
	}
	return v, nil
}

// ListVersions returns a policy's versions, oldest first.
func (s *PolicyStore) ListVersions(ctx context.Context, policyID string) ([]core.PolicyVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM policy_versions WHERE policy_id = ? ORDER BY version_number`, policyID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var out []core.PolicyVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func affectedOne(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return nil
}
