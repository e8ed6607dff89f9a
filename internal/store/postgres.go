package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-research/internal/db"
	"github.com/sells-group/vendor-research/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const researchColumns = `id, vendor_id, status, website_url, website_snapshot, extracted_profile,
	discovered_logo_url, deep_research_insights, raw_research_artifacts,
	error_message, llm_model, requested_at, started_at, completed_at, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_vendor":      `SELECT id, company_name, website, is_active, created_at, updated_at FROM vendors WHERE id = $1`,
	"get_research":    `SELECT ` + researchColumns + ` FROM vendor_research WHERE id = $1`,
	"update_research": updateResearchSQL,
}

const updateResearchSQL = `UPDATE vendor_research SET
	status = $1, website_snapshot = $2, extracted_profile = $3,
	discovered_logo_url = $4, deep_research_insights = $5, raw_research_artifacts = $6,
	error_message = $7, llm_model = $8, started_at = $9, completed_at = $10, updated_at = $11
WHERE id = $12`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vendors (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	website      TEXT NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT true,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vendor_research (
	id                     TEXT PRIMARY KEY,
	vendor_id              TEXT NOT NULL REFERENCES vendors(id),
	status                 TEXT NOT NULL DEFAULT 'pending',
	website_url            TEXT,
	website_snapshot       JSONB,
	extracted_profile      JSONB,
	discovered_logo_url    TEXT,
	deep_research_insights JSONB,
	raw_research_artifacts JSONB,
	error_message          TEXT,
	llm_model              TEXT,
	requested_at           TIMESTAMPTZ NOT NULL,
	started_at             TIMESTAMPTZ,
	completed_at           TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vendor_research_vendor_id ON vendor_research(vendor_id);
CREATE INDEX IF NOT EXISTS idx_vendor_research_status ON vendor_research(status);
CREATE INDEX IF NOT EXISTS idx_vendor_research_vendor_created ON vendor_research(vendor_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateVendor(ctx context.Context, vendor *model.Vendor) (*model.Vendor, error) {
	v := *vendor
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO vendors (id, company_name, website, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.CompanyName, v.Website, v.IsActive, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert vendor")
	}
	return &v, nil
}

// ImportVendors bulk-loads a batch via COPY plus ON CONFLICT merge. Vendors
// without an ID get a deterministic one derived from the company name.
func (s *PostgresStore) ImportVendors(ctx context.Context, vendors []model.Vendor) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(vendors))
	for _, v := range vendors {
		id := v.ID
		if id == "" {
			id = model.DeterministicVendorID(v.CompanyName)
		}
		rows = append(rows, []any{id, v.CompanyName, v.Website, v.IsActive, now, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "vendors",
		Columns:      []string{"id", "company_name", "website", "is_active", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"company_name", "website", "is_active", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import vendors")
	}
	return n, nil
}

func (s *PostgresStore) GetVendor(ctx context.Context, vendorID string) (*model.Vendor, error) {
	var v model.Vendor
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_name, website, is_active, created_at, updated_at FROM vendors WHERE id = $1`,
		vendorID,
	).Scan(&v.ID, &v.CompanyName, &v.Website, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: vendor %s", vendorID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get vendor %s", vendorID)
	}
	return &v, nil
}

func (s *PostgresStore) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_name, website, is_active, created_at, updated_at FROM vendors ORDER BY company_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vendors")
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		var v model.Vendor
		if err := rows.Scan(&v.ID, &v.CompanyName, &v.Website, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor")
		}
		vendors = append(vendors, v)
	}
	return vendors, eris.Wrap(rows.Err(), "postgres: list vendors iterate")
}

func (s *PostgresStore) CreateResearch(ctx context.Context, job *model.ResearchJob) (*model.ResearchJob, error) {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO vendor_research (`+researchColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		j.ID, j.VendorID, string(j.Status), nullStr(j.WebsiteURL), snapJSON, profJSON,
		nullStr(j.DiscoveredLogoURL), insJSON, artJSON,
		nullStr(j.ErrorMessage), nullStr(j.Model), j.RequestedAt, j.StartedAt, j.CompletedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert research")
	}
	return &j, nil
}

func (s *PostgresStore) GetResearch(ctx context.Context, researchID string) (*model.ResearchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+researchColumns+` FROM vendor_research WHERE id = $1`,
		researchID,
	)
	job, err := scanResearch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: research %s", researchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get research %s", researchID)
	}
	return job, nil
}

func (s *PostgresStore) ListResearchByVendor(ctx context.Context, vendorID string) ([]model.ResearchJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+researchColumns+` FROM vendor_research WHERE vendor_id = $1 ORDER BY created_at DESC`,
		vendorID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list research")
	}
	defer rows.Close()

	var jobs []model.ResearchJob
	for rows.Next() {
		job, err := scanResearch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan research")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list research iterate")
}

func (s *PostgresStore) UpdateResearch(ctx context.Context, job *model.ResearchJob) error {
	snapJSON, profJSON, insJSON, artJSON, err := marshalResearchBlobs(job)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, updateResearchSQL,
		string(job.Status), snapJSON, profJSON,
		nullStr(job.DiscoveredLogoURL), insJSON, artJSON,
		nullStr(job.ErrorMessage), nullStr(job.Model), job.StartedAt, job.CompletedAt, time.Now().UTC(),
		job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update research %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: research %s", job.ID)
	}
	return nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanResearch(row scannable) (*model.ResearchJob, error) {
	var (
		j                                 model.ResearchJob
		status                            string
		websiteURL, logoURL, errMsg, llm  *string
		snapJSON, profJSON, insJSON, artJSON []byte
	)

	err := row.Scan(&j.ID, &j.VendorID, &status, &websiteURL, &snapJSON, &profJSON,
		&logoURL, &insJSON, &artJSON, &errMsg, &llm,
		&j.RequestedAt, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	j.Status = model.ResearchStatus(status)
	j.WebsiteURL = deref(websiteURL)
	j.DiscoveredLogoURL = deref(logoURL)
	j.ErrorMessage = deref(errMsg)
	j.Model = deref(llm)

	if snapJSON != nil {
		j.WebsiteSnapshot = &model.Snapshot{}
		if err := json.Unmarshal(snapJSON, j.WebsiteSnapshot); err != nil {
			return nil, eris.Wrap(err, "unmarshal website snapshot")
		}
	}
	if profJSON != nil {
		j.ExtractedProfile = &model.ProfileCandidates{}
		if err := json.Unmarshal(profJSON, j.ExtractedProfile); err != nil {
			return nil, eris.Wrap(err, "unmarshal extracted profile")
		}
	}
	if insJSON != nil {
		if err := json.Unmarshal(insJSON, &j.DeepResearchInsights); err != nil {
			return nil, eris.Wrap(err, "unmarshal insights")
		}
	}
	if artJSON != nil {
		if err := json.Unmarshal(artJSON, &j.RawResearchArtifacts); err != nil {
			return nil, eris.Wrap(err, "unmarshal artifacts")
		}
	}
	return &j, nil
}

func marshalResearchBlobs(job *model.ResearchJob) (snap, prof, ins, art []byte, err error) {
	if job.WebsiteSnapshot != nil {
		if snap, err = json.Marshal(job.WebsiteSnapshot); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "marshal website snapshot")
		}
	}
	if job.ExtractedProfile != nil {
		if prof, err = json.Marshal(job.ExtractedProfile); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "marshal extracted profile")
		}
	}
	if job.DeepResearchInsights != nil {
		if ins, err = json.Marshal(job.DeepResearchInsights); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "marshal insights")
		}
	}
	if job.RawResearchArtifacts != nil {
		if art, err = json.Marshal(job.RawResearchArtifacts); err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "marshal artifacts")
		}
	}
	return snap, prof, ins, art, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
