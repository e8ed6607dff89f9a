// Package enrich builds the deep-research prompt from scraped signals and
// normalizes the model's reply. Like the website extractor, it is best
// effort: any model or parse failure degrades to "no insights".
package enrich

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/model"
	"github.com/sells-group/vendor-research/pkg/anthropic"
)

const systemPrompt = `You are an analyst enriching a vendor directory for banks and other financial institutions.
Your main goal is to provide the most accurate and comprehensive information about the vendor.
Do not assume any information. Only use the details provided. If data is not available, return null and do not fabricate it.`

// Enricher invokes the configured Claude model to enrich a vendor profile.
type Enricher struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates an Enricher bound to a model identifier.
func New(client anthropic.Client, modelID string, maxTokens int64) *Enricher {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Enricher{client: client, model: modelID, maxTokens: maxTokens}
}

// Enrich sends the scraped context to the model and returns normalized
// insights plus the model identifier used. On any failure it returns
// (nil, "") after logging a warning; the caller records "no insights" and
// the job is not failed.
func (e *Enricher) Enrich(ctx context.Context, vendor *model.Vendor, snapshot *model.Snapshot, candidates *model.ProfileCandidates) (map[string]any, string) {
	log := zap.L().With(zap.String("vendor_id", vendor.ID))

	prompt, err := BuildPrompt(vendor, snapshot, candidates)
	if err != nil {
		log.Warn("enrich: build prompt failed", zap.Error(err))
		return nil, ""
	}

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		log.Warn("enrich: model call failed", zap.Error(err))
		return nil, ""
	}
	resp.Usage.LogCost(e.model, "deep_research")

	insights := normalizeReply(resp.Text(), log)
	if insights == nil {
		return nil, ""
	}
	return insights, e.model
}

// BuildPrompt generates the deterministic instruction string sent to the
// model. Snapshot and candidate data are embedded as serialized JSON so the
// same inputs always produce the same prompt.
func BuildPrompt(vendor *model.Vendor, snapshot *model.Snapshot, candidates *model.ProfileCandidates) (string, error) {
	snapJSON, err := marshalOrEmpty(snapshot)
	if err != nil {
		return "", err
	}
	candJSON, err := marshalOrEmpty(candidates)
	if err != nil {
		return "", err
	}

	website := vendor.Website
	if website == "" {
		website = "unknown"
	}

	lines := []string{
		"The vendor is " + vendor.CompanyName + " with website " + website + ".",
		"",
		"Website snapshot data:",
		snapJSON,
		"",
		"Candidate structured data:",
		candJSON,
		"",
		"Return a minified JSON object with the following shape:",
		"{",
		`  "summary": string,`,
		`  "detailedDescription": string,`,
		`  "category": string,`,
		`  "subcategories": string[],`,
		`  "location": string,`,
		`  "size": string,`,
		`  "founded": string,`,
		`  "employees": string,`,
		`  "phone": string,`,
		`  "email": string,`,
		`  "targetCustomers": string[],`,
		`  "notableCustomers": string[],`,
		`  "features": string[],`,
		`  "integrations": string[],`,
		`  "pricingModel": string,`,
		`  "pricingNotes": string,`,
		`  "sources": [{"label": string, "url": string}]`,
		"}",
		"If information cannot be found set the field to null instead of guessing.",
	}
	return strings.Join(lines, "\n"), nil
}

func marshalOrEmpty(v any) (string, error) {
	switch t := v.(type) {
	case *model.Snapshot:
		if t == nil {
			return "{}", nil
		}
	case *model.ProfileCandidates:
		if t == nil {
			return "{}", nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// replyKind classifies the model reply before parsing. The reply may be a
// JSON document, a JSON string containing a document, or an envelope object
// carrying the document in a "content" field.
type replyKind int

const (
	replyInvalid replyKind = iota
	replyRawText
	replyWrapped
	replyStructured
)

// classifyReply decodes the reply text and determines its shape in a single
// step, so parsing below never probes fields ad hoc.
func classifyReply(text string) (replyKind, any) {
	var decoded any
	if err := json.Unmarshal([]byte(cleanFences(text)), &decoded); err != nil {
		return replyInvalid, nil
	}

	switch v := decoded.(type) {
	case string:
		return replyRawText, v
	case map[string]any:
		if content, ok := v["content"].(string); ok {
			return replyWrapped, content
		}
		// A "next" key marks a streaming continuation, not a payload.
		if _, ok := v["next"]; ok {
			return replyInvalid, nil
		}
		return replyStructured, v
	default:
		return replyInvalid, nil
	}
}

// normalizeReply converts the model reply into an insights object, or nil if
// the reply cannot be understood.
func normalizeReply(text string, log *zap.Logger) map[string]any {
	kind, payload := classifyReply(text)

	switch kind {
	case replyStructured:
		return payload.(map[string]any)
	case replyRawText, replyWrapped:
		var insights map[string]any
		if err := json.Unmarshal([]byte(payload.(string)), &insights); err != nil {
			log.Warn("enrich: reply payload is not a JSON object", zap.Error(err))
			return nil
		}
		return insights
	default:
		log.Warn("enrich: unrecognized reply shape")
		return nil
	}
}

// cleanFences strips markdown code fences the model sometimes wraps JSON in.
func cleanFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
