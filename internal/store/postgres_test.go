package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetVendor_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, company_name, website, is_active, created_at, updated_at FROM vendors WHERE id = \$1`).
		WithArgs("missing-vendor").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetVendor(context.Background(), "missing-vendor")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVendor(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, company_name, website, is_active, created_at, updated_at FROM vendors`).
		WithArgs("v1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "company_name", "website", "is_active", "created_at", "updated_at"}).
			AddRow("v1", "Acme Bank", "https://acme.example", true, now, now))

	v, err := s.GetVendor(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Bank", v.CompanyName)
	assert.Equal(t, "https://acme.example", v.Website)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateVendor(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO vendors`).
		WithArgs(pgxmock.AnyArg(), "Acme Bank", "https://acme.example", true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	v, err := s.CreateVendor(context.Background(), &model.Vendor{
		CompanyName: "Acme Bank",
		Website:     "https://acme.example",
		IsActive:    true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.False(t, v.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResearch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, vendor_id, status`).
		WithArgs("missing-research").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetResearch(context.Background(), "missing-research")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResearch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	url := "https://acme.example"

	cols := []string{
		"id", "vendor_id", "status", "website_url", "website_snapshot", "extracted_profile",
		"discovered_logo_url", "deep_research_insights", "raw_research_artifacts",
		"error_message", "llm_model", "requested_at", "started_at", "completed_at", "created_at", "updated_at",
	}
	mock.ExpectQuery(`SELECT id, vendor_id, status`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"r1", "v1", "completed", &url, []byte(`{"title":"Acme"}`), nil,
			nil, []byte(`{"summary":"x"}`), nil,
			nil, nil, now, &now, &now, now, now,
		))

	job, err := s.GetResearch(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.ResearchStatusCompleted, job.Status)
	assert.Equal(t, "https://acme.example", job.WebsiteURL)
	require.NotNil(t, job.WebsiteSnapshot)
	assert.Equal(t, "Acme", job.WebsiteSnapshot.Title)
	assert.Nil(t, job.ExtractedProfile)
	assert.Equal(t, "x", job.DeepResearchInsights["summary"])
	require.NotNil(t, job.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateResearch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO vendor_research`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job, err := s.CreateResearch(context.Background(), &model.ResearchJob{
		VendorID:    "v1",
		WebsiteURL:  "https://acme.example",
		RequestedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.ResearchStatusPending, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateResearch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE vendor_research SET`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateResearch(context.Background(), &model.ResearchJob{
		ID:     "gone",
		Status: model.ResearchStatusCompleted,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vendors`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
