// Package research coordinates vendor research jobs: creation, the
// per-vendor queue, and the scrape-then-enrich state machine that drives a
// job from pending to a terminal status.
package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/internal/store"
	"github.com/sells-group/vendor-research/internal/website"
)

// ErrVendorMismatch is returned when a research job exists but belongs to a
// different vendor than the one named in the request.
var ErrVendorMismatch = eris.New("research: job does not belong to vendor")

// Extractor captures website signals for a vendor. Implementations never
// fail; missing data comes back as zero values.
type Extractor interface {
	Capture(ctx context.Context, vendorID, websiteURL string) website.Extraction
}

// Enricher produces model-generated insights from scraped context.
// Implementations never fail; on any model or parse problem they return
// (nil, "").
type Enricher interface {
	Enrich(ctx context.Context, vendor *model.Vendor, snapshot *model.Snapshot, candidates *model.ProfileCandidates) (map[string]any, string)
}

// Orchestrator owns the research job lifecycle.
type Orchestrator struct {
	store     store.Store
	extractor Extractor
	enricher  Enricher
}

func NewOrchestrator(st store.Store, extractor Extractor, enricher Enricher) *Orchestrator {
	return &Orchestrator{store: st, extractor: extractor, enricher: enricher}
}

// CreateResearchRequest records a new pending job for the vendor. The vendor
// must exist; nothing is persisted otherwise.
func (o *Orchestrator) CreateResearchRequest(ctx context.Context, vendorID string) (*model.ResearchJob, error) {
	vendor, err := o.store.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, eris.Wrapf(err, "research: look up vendor %s", vendorID)
	}

	now := time.Now().UTC()
	job := &model.ResearchJob{
		ID:          uuid.NewString(),
		VendorID:    vendor.ID,
		Status:      model.ResearchStatusPending,
		WebsiteURL:  vendor.Website,
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := o.store.CreateResearch(ctx, job)
	if err != nil {
		return nil, eris.Wrapf(err, "research: create job for vendor %s", vendorID)
	}
	return created, nil
}

// ListResearchForVendor returns the vendor's jobs, most recent first. The
// vendor must exist.
func (o *Orchestrator) ListResearchForVendor(ctx context.Context, vendorID string) ([]model.ResearchJob, error) {
	if _, err := o.store.GetVendor(ctx, vendorID); err != nil {
		return nil, eris.Wrapf(err, "research: look up vendor %s", vendorID)
	}
	jobs, err := o.store.ListResearchByVendor(ctx, vendorID)
	if err != nil {
		return nil, eris.Wrapf(err, "research: list jobs for vendor %s", vendorID)
	}
	return jobs, nil
}

// GetResearchByID fetches a single job and verifies it belongs to the named
// vendor. A job owned by another vendor yields ErrVendorMismatch, which is
// distinct from store.ErrNotFound.
func (o *Orchestrator) GetResearchByID(ctx context.Context, vendorID, researchID string) (*model.ResearchJob, error) {
	job, err := o.store.GetResearch(ctx, researchID)
	if err != nil {
		return nil, eris.Wrapf(err, "research: look up job %s", researchID)
	}
	if job.VendorID != vendorID {
		return nil, eris.Wrapf(ErrVendorMismatch, "job %s belongs to vendor %s, not %s", researchID, job.VendorID, vendorID)
	}
	return job, nil
}

// ProcessResearch runs one job to a terminal state. Scrape and enrichment
// problems degrade the result but still complete the job; only persistence
// failures mark it failed, with the error recorded on the job itself.
// Re-processing a terminal job re-runs the pipeline and overwrites the
// previous result.
//
// The returned error covers loading the job and its vendor only.
func (o *Orchestrator) ProcessResearch(ctx context.Context, researchID string) error {
	log := zap.L().With(zap.String("research_id", researchID))

	job, err := o.store.GetResearch(ctx, researchID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			log.Warn("research: job not found, skipping")
			return nil
		}
		return eris.Wrapf(err, "research: load job %s", researchID)
	}

	vendor, err := o.store.GetVendor(ctx, job.VendorID)
	if err != nil {
		return eris.Wrapf(err, "research: load vendor %s for job %s", job.VendorID, researchID)
	}

	if job.Status.Terminal() {
		log.Info("research: re-running terminal job", zap.String("previous_status", string(job.Status)))
	}

	now := time.Now().UTC()
	job.Status = model.ResearchStatusInProgress
	job.StartedAt = &now
	job.CompletedAt = nil
	job.ErrorMessage = ""
	job.UpdatedAt = now
	if err := o.store.UpdateResearch(ctx, job); err != nil {
		log.Error("research: claim job failed", zap.Error(err))
		o.fail(ctx, job, err)
		return nil
	}

	ext := o.extractor.Capture(ctx, vendor.ID, job.WebsiteURL)
	job.WebsiteSnapshot = ext.Snapshot
	job.ExtractedProfile = ext.Profile
	job.DiscoveredLogoURL = ext.LogoURL
	job.UpdatedAt = time.Now().UTC()
	if err := o.store.UpdateResearch(ctx, job); err != nil {
		log.Error("research: persist scrape results failed", zap.Error(err))
		o.fail(ctx, job, err)
		return nil
	}

	insights, usedModel := o.enricher.Enrich(ctx, vendor, ext.Snapshot, ext.Profile)
	job.DeepResearchInsights = insights
	job.Model = usedModel

	done := time.Now().UTC()
	job.Status = model.ResearchStatusCompleted
	job.CompletedAt = &done
	job.UpdatedAt = done
	if err := o.store.UpdateResearch(ctx, job); err != nil {
		log.Error("research: persist completion failed", zap.Error(err))
		o.fail(ctx, job, err)
		return nil
	}

	log.Info("research: job completed",
		zap.String("vendor_id", vendor.ID),
		zap.Bool("has_insights", insights != nil))
	return nil
}

// fail flips the job to failed with the persistence error recorded. If even
// that write fails the job stays in progress in storage; log it loudly so an
// operator can intervene.
func (o *Orchestrator) fail(ctx context.Context, job *model.ResearchJob, cause error) {
	now := time.Now().UTC()
	job.Status = model.ResearchStatusFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := o.store.UpdateResearch(ctx, job); err != nil {
		zap.L().Error("research: job stuck in progress, failure could not be recorded",
			zap.String("research_id", job.ID),
			zap.Error(err))
	}
}
