package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vendor-research/internal/model"
)

// ErrNotFound is returned when a vendor or research job does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the research pipeline.
type Store interface {
	// Vendors. The pipeline only reads vendors; create/list exist so the CLI
	// and API can seed and inspect the directory the pipeline works against.
	CreateVendor(ctx context.Context, vendor *model.Vendor) (*model.Vendor, error)
	GetVendor(ctx context.Context, vendorID string) (*model.Vendor, error)
	ListVendors(ctx context.Context) ([]model.Vendor, error)
	// ImportVendors upserts a batch keyed by vendor ID and reports the
	// number of rows written.
	ImportVendors(ctx context.Context, vendors []model.Vendor) (int64, error)

	// Research jobs
	CreateResearch(ctx context.Context, job *model.ResearchJob) (*model.ResearchJob, error)
	GetResearch(ctx context.Context, researchID string) (*model.ResearchJob, error)
	ListResearchByVendor(ctx context.Context, vendorID string) ([]model.ResearchJob, error)
	UpdateResearch(ctx context.Context, job *model.ResearchJob) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
