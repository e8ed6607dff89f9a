package store

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedVendor(t *testing.T, s *SQLiteStore) *model.Vendor {
	t.Helper()
	v, err := s.CreateVendor(context.Background(), &model.Vendor{
		CompanyName: "Acme Bank",
		Website:     "https://acme.example",
		IsActive:    true,
	})
	require.NoError(t, err)
	return v
}

func TestSQLiteStore_VendorRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	v := seedVendor(t, s)

	got, err := s.GetVendor(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Bank", got.CompanyName)
	assert.Equal(t, "https://acme.example", got.Website)
	assert.True(t, got.IsActive)
}

func TestSQLiteStore_GetVendor_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetVendor(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteStore_ListVendors(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.CreateVendor(ctx, &model.Vendor{CompanyName: "Zenith", Website: "https://zenith.example"})
	require.NoError(t, err)
	_, err = s.CreateVendor(ctx, &model.Vendor{CompanyName: "Acme", Website: "https://acme.example"})
	require.NoError(t, err)

	vendors, err := s.ListVendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "Acme", vendors[0].CompanyName)
	assert.Equal(t, "Zenith", vendors[1].CompanyName)
}

func TestSQLiteStore_ResearchRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	v := seedVendor(t, s)

	job, err := s.CreateResearch(ctx, &model.ResearchJob{
		VendorID:    v.ID,
		WebsiteURL:  v.Website,
		RequestedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ResearchStatusPending, job.Status)

	got, err := s.GetResearch(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.VendorID)
	assert.Equal(t, v.Website, got.WebsiteURL)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.WebsiteSnapshot)
}

func TestSQLiteStore_UpdateResearch(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	v := seedVendor(t, s)

	job, err := s.CreateResearch(ctx, &model.ResearchJob{
		VendorID:    v.ID,
		WebsiteURL:  v.Website,
		RequestedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	job.Status = model.ResearchStatusCompleted
	job.StartedAt = &now
	job.CompletedAt = &now
	job.WebsiteSnapshot = &model.Snapshot{Title: "Acme Bank", RawBodySample: "<html>"}
	job.ExtractedProfile = &model.ProfileCandidates{Keywords: []string{"payments"}}
	job.DiscoveredLogoURL = "https://acme.example/logo.png"
	job.DeepResearchInsights = map[string]any{"summary": "x"}
	job.Model = "claude-haiku-4-5-20251001"
	require.NoError(t, s.UpdateResearch(ctx, job))

	got, err := s.GetResearch(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResearchStatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.WebsiteSnapshot)
	assert.Equal(t, "Acme Bank", got.WebsiteSnapshot.Title)
	require.NotNil(t, got.ExtractedProfile)
	assert.Equal(t, []string{"payments"}, got.ExtractedProfile.Keywords)
	assert.Equal(t, "https://acme.example/logo.png", got.DiscoveredLogoURL)
	assert.Equal(t, "x", got.DeepResearchInsights["summary"])
	assert.Equal(t, "claude-haiku-4-5-20251001", got.Model)
}

func TestSQLiteStore_UpdateResearch_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.UpdateResearch(context.Background(), &model.ResearchJob{
		ID:     "gone",
		Status: model.ResearchStatusFailed,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteStore_ListResearchByVendor_MostRecentFirst(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	v := seedVendor(t, s)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := s.CreateResearch(ctx, &model.ResearchJob{
			ID:          string(rune('a' + i)),
			VendorID:    v.ID,
			WebsiteURL:  v.Website,
			RequestedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	jobs, err := s.ListResearchByVendor(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
	assert.Equal(t, "a", jobs[2].ID)
}

func TestSQLiteStore_ListResearchByVendor_Empty(t *testing.T) {
	s := newTestSQLiteStore(t)
	v := seedVendor(t, s)

	jobs, err := s.ListResearchByVendor(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestSQLiteStore_GetResearch_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetResearch(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteStore_ImportVendors(t *testing.T) {
	s := newTestSQLiteStore(t)

	batch := []model.Vendor{
		{CompanyName: "Acme", Website: "https://acme.example", IsActive: true},
		{CompanyName: "Globex", Website: "https://globex.example", IsActive: true},
	}
	n, err := s.ImportVendors(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	vendors, err := s.ListVendors(context.Background())
	require.NoError(t, err)
	require.Len(t, vendors, 2)

	// Re-importing with a changed website updates in place.
	batch[0].Website = "https://acme-new.example"
	n, err = s.ImportVendors(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	vendors, err = s.ListVendors(context.Background())
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	byName := map[string]string{}
	for _, v := range vendors {
		byName[v.CompanyName] = v.Website
	}
	assert.Equal(t, "https://acme-new.example", byName["Acme"])
}

func TestSQLiteStore_ImportVendors_Empty(t *testing.T) {
	s := newTestSQLiteStore(t)

	n, err := s.ImportVendors(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
