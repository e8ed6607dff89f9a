package model

import "time"

// ResearchStatus represents the lifecycle state of a research job.
type ResearchStatus string

const (
	ResearchStatusPending    ResearchStatus = "pending"
	ResearchStatusInProgress ResearchStatus = "in_progress"
	ResearchStatusCompleted  ResearchStatus = "completed"
	ResearchStatusFailed     ResearchStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s ResearchStatus) Terminal() bool {
	return s == ResearchStatusCompleted || s == ResearchStatusFailed
}

// Snapshot holds raw signals captured from a vendor's website. Absent fields
// mean "not found", not failure.
type Snapshot struct {
	Title           string `json:"title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`
	RawBodySample   string `json:"raw_body_sample,omitempty"`
}

// ProfileCandidates holds heuristically extracted structured signals used as
// model input.
type ProfileCandidates struct {
	StructuredData map[string]any `json:"structured_data,omitempty"`
	Keywords       []string       `json:"keywords,omitempty"`
}

// ResearchJob is one tracked attempt to enrich a vendor's profile via
// scraping and model inference. The vendor reference is set at creation and
// never reassigned; all other mutation happens in the orchestrator.
type ResearchJob struct {
	ID                   string             `json:"id"`
	VendorID             string             `json:"vendor_id"`
	Status               ResearchStatus     `json:"status"`
	WebsiteURL           string             `json:"website_url,omitempty"`
	WebsiteSnapshot      *Snapshot          `json:"website_snapshot,omitempty"`
	ExtractedProfile     *ProfileCandidates `json:"extracted_profile,omitempty"`
	DiscoveredLogoURL    string             `json:"discovered_logo_url,omitempty"`
	DeepResearchInsights map[string]any     `json:"deep_research_insights,omitempty"`
	RawResearchArtifacts map[string]any     `json:"raw_research_artifacts,omitempty"` // reserved for future provider payloads
	ErrorMessage         string             `json:"error_message,omitempty"`
	Model                string             `json:"model,omitempty"`
	RequestedAt          time.Time          `json:"requested_at"`
	StartedAt            *time.Time         `json:"started_at,omitempty"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}
