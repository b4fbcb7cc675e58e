package newsroom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NewsletterTemplate is an entry in the compiled-in template catalog. The
// display name doubles as the newsletter category.
type NewsletterTemplate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultCategory is used when no template is selected.
const DefaultCategory = "Staff Updates"

// Templates is the fixed template catalog offered by the admin panel.
var Templates = []NewsletterTemplate{
	{ID: "staff-updates", Name: "Staff Updates"},
	{ID: "wellness-tips", Name: "Wellness Tips"},
	{ID: "practice-news", Name: "Practice News"},
	{ID: "seasonal-guide", Name: "Seasonal Guide"},
	{ID: "client-resources", Name: "Client Resources"},
}

// Tones and Audiences are the fixed option sets for generation requests.
var (
	Tones     = []string{"warm", "professional", "encouraging", "informative"}
	Audiences = []string{"clients", "prospective clients", "staff", "community"}
)

// TemplateName resolves a template id to its display name, falling back to
// DefaultCategory for unknown ids.
func TemplateName(id string) string {
	for _, t := range Templates {
		if t.ID == id {
			return t.Name
		}
	}
	return DefaultCategory
}

func inOptions(v string, opts []string) bool {
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}

// GenerateRequest is the input to the remote content generator.
type GenerateRequest struct {
	Topic          string `json:"topic"`
	Tone           string `json:"tone"`
	TargetAudience string `json:"targetAudience"`
	Template       string `json:"template"` // display name, not id
}

// Validate checks the request before any network call is made.
func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	if r.Tone != "" && !inOptions(r.Tone, Tones) {
		return fmt.Errorf("unknown tone %q", r.Tone)
	}
	if r.TargetAudience != "" && !inOptions(r.TargetAudience, Audiences) {
		return fmt.Errorf("unknown audience %q", r.TargetAudience)
	}
	return nil
}

// GeneratedContent is the triple returned by the generator. It is held in
// memory as the draft until the admin publishes or discards it.
type GeneratedContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

// ContentGenerator produces newsletter drafts. The remote function is
// non-deterministic, so repeated calls with the same inputs may differ.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (GeneratedContent, error)
}

// RemoteGenerator calls a hosted generation function over HTTP JSON.
type RemoteGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewRemoteGenerator creates a generator client with a request timeout.
func NewRemoteGenerator(endpoint, apiKey string, timeout time.Duration) *RemoteGenerator {
	return &RemoteGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// generatorResponse mirrors the remote function's payload. A non-empty Error
// field means the function failed even when the HTTP status is 200.
type generatorResponse struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
	Error   string `json:"error"`
}

// Generate invokes the remote function. Failures are surfaced as-is; nothing
// is retried and nothing is persisted.
func (g *RemoteGenerator) Generate(ctx context.Context, req GenerateRequest) (GeneratedContent, error) {
	if g.endpoint == "" {
		return GeneratedContent{}, fmt.Errorf("content generator is not configured")
	}
	if err := req.Validate(); err != nil {
		return GeneratedContent{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return GeneratedContent{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return GeneratedContent{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return GeneratedContent{}, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GeneratedContent{}, fmt.Errorf("read generator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return GeneratedContent{}, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var out generatorResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return GeneratedContent{}, fmt.Errorf("decode generator response: %w", err)
	}
	if out.Error != "" {
		return GeneratedContent{}, fmt.Errorf("generator: %s", out.Error)
	}
	if out.Title == "" || out.Content == "" {
		return GeneratedContent{}, fmt.Errorf("generator returned an empty result")
	}
	return GeneratedContent{Title: out.Title, Content: out.Content, Excerpt: out.Excerpt}, nil
}
