package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/vendor-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vendors (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	website      TEXT NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS vendor_research (
	id                     TEXT PRIMARY KEY,
	vendor_id              TEXT NOT NULL REFERENCES vendors(id),
	status                 TEXT NOT NULL DEFAULT 'pending',
	website_url            TEXT,
	website_snapshot       TEXT,
	extracted_profile      TEXT,
	discovered_logo_url    TEXT,
	deep_research_insights TEXT,
	raw_research_artifacts TEXT,
	error_message          TEXT,
	llm_model              TEXT,
	requested_at           DATETIME NOT NULL,
	started_at             DATETIME,
	completed_at           DATETIME,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vendor_research_vendor_id ON vendor_research(vendor_id);
CREATE INDEX IF NOT EXISTS idx_vendor_research_status ON vendor_research(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateVendor(ctx context.Context, vendor *model.Vendor) (*model.Vendor, error) {
	v := *vendor
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendors (id, company_name, website, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.CompanyName, v.Website, v.IsActive, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert vendor")
	}
	return &v, nil
}

// ImportVendors upserts a batch in one transaction. Vendors without an ID
// get a deterministic one derived from the company name.
func (s *SQLiteStore) ImportVendors(ctx context.Context, vendors []model.Vendor) (int64, error) {
	if len(vendors) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import vendors begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var written int64
	for _, v := range vendors {
		id := v.ID
		if id == "" {
			id = model.DeterministicVendorID(v.CompanyName)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO vendors (id, company_name, website, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				company_name = excluded.company_name,
				website = excluded.website,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			id, v.CompanyName, v.Website, v.IsActive, now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import vendor %s", v.CompanyName)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import vendors commit")
	}
	return written, nil
}

func (s *SQLiteStore) GetVendor(ctx context.Context, vendorID string) (*model.Vendor, error) {
	var v model.Vendor
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_name, website, is_active, created_at, updated_at FROM vendors WHERE id = ?`,
		vendorID,
	).Scan(&v.ID, &v.CompanyName, &v.Website, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: vendor %s", vendorID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get vendor %s", vendorID)
	}
	return &v, nil
}

func (s *SQLiteStore) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_name, website, is_active, created_at, updated_at FROM vendors ORDER BY company_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vendors")
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		var v model.Vendor
		if err := rows.Scan(&v.ID, &v.CompanyName, &v.Website, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor")
		}
		vendors = append(vendors, v)
	}
	return vendors, eris.Wrap(rows.Err(), "sqlite: list vendors iterate")
}

func (s *SQLiteStore) CreateResearch(ctx context.Context, job *model.ResearchJob) (*model.ResearchJob, error) {
	j := *job
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = model.ResearchStatusPending
	}

	snapJSON, profJSON, insJSON, artJSON, err := marshalResearchBlobs(&j)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vendor_research (`+researchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.VendorID, string(j.Status), nullStr(j.WebsiteURL), blobStr(snapJSON), blobStr(profJSON),
		nullStr(j.DiscoveredLogoURL), blobStr(insJSON), blobStr(artJSON),
		nullStr(j.ErrorMessage), nullStr(j.Model), j.RequestedAt, j.StartedAt, j.CompletedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert research")
	}
	return &j, nil
}

func (s *SQLiteStore) GetResearch(ctx context.Context, researchID string) (*model.ResearchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+researchColumns+` FROM vendor_research WHERE id = ?`,
		researchID,
	)
	job, err := scanResearchSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: research %s", researchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get research %s", researchID)
	}
	return job, nil
}

func (s *SQLiteStore) ListResearchByVendor(ctx context.Context, vendorID string) ([]model.ResearchJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+researchColumns+` FROM vendor_research WHERE vendor_id = ? ORDER BY created_at DESC, requested_at DESC`,
		vendorID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list research")
	}
	defer rows.Close()

	var jobs []model.ResearchJob
	for rows.Next() {
		job, err := scanResearchSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan research")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list research iterate")
}

func (s *SQLiteStore) UpdateResearch(ctx context.Context, job *model.ResearchJob) error {
	snapJSON, profJSON, insJSON, artJSON, err := marshalResearchBlobs(job)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE vendor_research SET
			status = ?, website_snapshot = ?, extracted_profile = ?,
			discovered_logo_url = ?, deep_research_insights = ?, raw_research_artifacts = ?,
			error_message = ?, llm_model = ?, started_at = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(job.Status), blobStr(snapJSON), blobStr(profJSON),
		nullStr(job.DiscoveredLogoURL), blobStr(insJSON), blobStr(artJSON),
		nullStr(job.ErrorMessage), nullStr(job.Model), job.StartedAt, job.CompletedAt, time.Now().UTC(),
		job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update research %s", job.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: research %s", job.ID)
	}
	return nil
}

// helpers

func scanResearchSQLite(row scannable) (*model.ResearchJob, error) {
	var (
		j                                    model.ResearchJob
		status                               string
		websiteURL, logoURL, errMsg, llm     sql.NullString
		snapJSON, profJSON, insJSON, artJSON sql.NullString
		startedAt, completedAt               sql.NullTime
	)

	err := row.Scan(&j.ID, &j.VendorID, &status, &websiteURL, &snapJSON, &profJSON,
		&logoURL, &insJSON, &artJSON, &errMsg, &llm,
		&j.RequestedAt, &startedAt, &completedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	j.Status = model.ResearchStatus(status)
	j.WebsiteURL = websiteURL.String
	j.DiscoveredLogoURL = logoURL.String
	j.ErrorMessage = errMsg.String
	j.Model = llm.String
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}

	if snapJSON.Valid {
		j.WebsiteSnapshot = &model.Snapshot{}
		if err := json.Unmarshal([]byte(snapJSON.String), j.WebsiteSnapshot); err != nil {
			return nil, eris.Wrap(err, "unmarshal website snapshot")
		}
	}
	if profJSON.Valid {
		j.ExtractedProfile = &model.ProfileCandidates{}
		if err := json.Unmarshal([]byte(profJSON.String), j.ExtractedProfile); err != nil {
			return nil, eris.Wrap(err, "unmarshal extracted profile")
		}
	}
	if insJSON.Valid {
		if err := json.Unmarshal([]byte(insJSON.String), &j.DeepResearchInsights); err != nil {
			return nil, eris.Wrap(err, "unmarshal insights")
		}
	}
	if artJSON.Valid {
		if err := json.Unmarshal([]byte(artJSON.String), &j.RawResearchArtifacts); err != nil {
			return nil, eris.Wrap(err, "unmarshal artifacts")
		}
	}
	return &j, nil
}

// blobStr converts marshaled JSON to a nullable TEXT value.
func blobStr(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}
