// Package website fetches a vendor's public site and heuristically extracts
// profile signals for the enrichment prompt. Extraction is best effort: every
// internal failure degrades to an empty result, never an error.
package website

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/vendor-research/internal/config"
	"github.com/sells-group/vendor-research/internal/model"
)

const (
	maxBodyBytes  = 512 * 1024
	bodySampleLen = 5000
)

// Extraction holds everything captured from a vendor website. All fields are
// optional; absence signals "not found", not failure.
type Extraction struct {
	Snapshot *model.Snapshot
	Profile  *model.ProfileCandidates
	LogoURL  string
}

// Extractor fetches vendor websites over plain HTTP with a shared outbound
// rate limit.
type Extractor struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewExtractor creates an Extractor from scrape configuration.
func NewExtractor(cfg config.ScrapeConfig) *Extractor {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; VendorResearchBot/1.0)"
	}

	return &Extractor{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		userAgent: ua,
	}
}

// Capture fetches websiteURL and extracts snapshot, profile candidates, and a
// logo candidate. It never returns an error: scrape failures are logged and
// collapse to a zero Extraction. An empty URL skips the network entirely.
func (e *Extractor) Capture(ctx context.Context, vendorID, websiteURL string) Extraction {
	if websiteURL == "" {
		return Extraction{}
	}

	log := zap.L().With(zap.String("vendor_id", vendorID), zap.String("url", websiteURL))

	if err := e.limiter.Wait(ctx); err != nil {
		log.Warn("website: rate limiter wait aborted", zap.Error(err))
		return Extraction{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, websiteURL, nil)
	if err != nil {
		log.Warn("website: build request failed", zap.Error(err))
		return Extraction{}
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		log.Warn("website: fetch failed", zap.Error(err))
		return Extraction{}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("website: non-success status", zap.Int("status", resp.StatusCode))
		return Extraction{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warn("website: read body failed", zap.Error(err))
		return Extraction{}
	}

	html := string(body)
	structured := extractStructuredData(html, log)

	snapshot := &model.Snapshot{
		Title:           extractTitle(html),
		MetaDescription: extractMetaDescription(html),
		RawBodySample:   sample(html),
	}

	return Extraction{
		Snapshot: snapshot,
		Profile:  deriveProfileCandidates(structured, html),
		LogoURL:  extractLogoURL(html, websiteURL, log),
	}
}

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescRe = regexp.MustCompile(`(?i)<meta[^>]+name="description"[^>]+content="([^"]*)"`)
	metaKeysRe = regexp.MustCompile(`(?i)<meta[^>]+name="keywords"[^>]+content="([^"]*)"`)
	ldJSONRe   = regexp.MustCompile(`(?is)<script[^>]*type="application/ld\+json"[^>]*>(.*?)</script>`)
	iconRe     = regexp.MustCompile(`(?i)<link[^>]+rel="(?:apple-touch-icon|icon|shortcut icon)"[^>]+href="([^"]+)"`)
	ogImageRe  = regexp.MustCompile(`(?i)<meta[^>]+property="og:image"[^>]+content="([^"]+)"`)
)

func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractMetaDescription(html string) string {
	m := metaDescRe.FindStringSubmatch(html)
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractMetaKeywords splits the meta keywords list into trimmed terms.
func extractMetaKeywords(html string) []string {
	m := metaKeysRe.FindStringSubmatch(html)
	if len(m) < 2 || m[1] == "" {
		return nil
	}
	var keywords []string
	for _, k := range strings.Split(m[1], ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// extractStructuredData pulls out JSON-LD blocks, which often carry company
// metadata. Each block is parsed independently; a malformed block is skipped.
func extractStructuredData(html string, log *zap.Logger) []map[string]any {
	var blocks []map[string]any
	for _, m := range ldJSONRe.FindAllStringSubmatch(html, -1) {
		var parsed any
		if err := json.Unmarshal([]byte(m[1]), &parsed); err != nil {
			log.Debug("website: skip malformed ld+json block", zap.Error(err))
			continue
		}
		switch v := parsed.(type) {
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					blocks = append(blocks, obj)
				}
			}
		case map[string]any:
			blocks = append(blocks, v)
		}
	}
	return blocks
}

// deriveProfileCandidates picks the organization block (or the first block as
// a fallback) plus meta keywords.
func deriveProfileCandidates(structured []map[string]any, html string) *model.ProfileCandidates {
	keywords := extractMetaKeywords(html)

	var org map[string]any
	for _, block := range structured {
		if blockType(block) == "Organization" {
			org = block
			break
		}
	}
	if org == nil && len(structured) > 0 {
		org = structured[0]
	}

	if org == nil && keywords == nil {
		return nil
	}
	return &model.ProfileCandidates{
		StructuredData: org,
		Keywords:       keywords,
	}
}

func blockType(block map[string]any) string {
	for _, key := range []string{"@type", "type"} {
		if t, ok := block[key].(string); ok {
			return t
		}
	}
	return ""
}

// extractLogoURL prefers an icon link, then the Open Graph image. Relative
// references are resolved against the page URL.
func extractLogoURL(html, pageURL string, log *zap.Logger) string {
	if m := iconRe.FindStringSubmatch(html); len(m) > 1 {
		return resolveURL(m[1], pageURL, log)
	}
	if m := ogImageRe.FindStringSubmatch(html); len(m) > 1 {
		return resolveURL(m[1], pageURL, log)
	}
	return ""
}

func resolveURL(ref, pageURL string, log *zap.Logger) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		log.Debug("website: unparseable page url", zap.Error(err))
		return ref
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		log.Debug("website: unparseable logo ref", zap.String("ref", ref), zap.Error(err))
		return ref
	}
	return resolved.String()
}

func sample(html string) string {
	if len(html) > bodySampleLen {
		return html[:bodySampleLen]
	}
	return html
}
