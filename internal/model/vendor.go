package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Vendor is a directory entry whose public profile the research pipeline
// enriches. The pipeline reads vendor fields but never mutates them;
// vendor CRUD lives in the directory backend.
type Vendor struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	Website     string    `json:"website"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeterministicVendorID derives a stable UUID from the company name so that
// re-importing the same directory updates rows instead of duplicating them.
func DeterministicVendorID(companyName string) string {
	normalized := strings.ToLower(strings.TrimSpace(companyName))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(normalized)).String()
}
