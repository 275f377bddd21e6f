package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/execguard/execguard/internal/sandbox"
)

const webfetchDescription = `Fetches content from a URL and returns it in the requested format.

Usage notes:
- The URL must be a fully-formed valid URL starting with http:// or https://
- This tool is read-only and does not modify any files
- Results may be truncated if the content is very large (>5MB limit)
- Use format "markdown" for readable content, "text" for plain text, "html" for raw HTML`

const (
	maxResponseSize    = 5 * 1024 * 1024 // 5MB
	webfetchTimeout    = 30 * time.Second
	maxWebfetchTimeout = 120 * time.Second
	maxFetchElapsed    = 15 * time.Second
)

// WebFetchTool implements web content fetching.
type WebFetchTool struct {
	client *http.Client
}

// WebFetchInput represents the input for the webfetch tool.
type WebFetchInput struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

// NewWebFetchTool creates a new webfetch tool.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{Timeout: webfetchTimeout},
	}
}

func (t *WebFetchTool) Name() string        { return "webfetch" }
func (t *WebFetchTool) Description() string { return webfetchDescription }

func (t *WebFetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The URL to fetch content from"
			},
			"format": {
				"type": "string",
				"enum": ["text", "markdown", "html"],
				"description": "The format to return the content in"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in seconds (max 120)"
			}
		},
		"required": ["url", "format"]
	}`)
}

func (t *WebFetchTool) SandboxPreference() sandbox.Preference { return sandbox.PreferenceForbid }
func (t *WebFetchTool) SupportsParallel() bool                { return true }
func (t *WebFetchTool) EscalateOnFailure() bool               { return false }

// ApprovalRequirement: network fetches always ask.
func (t *WebFetchTool) ApprovalRequirement(input json.RawMessage) Requirement {
	var params WebFetchInput
	if err := json.Unmarshal(input, &params); err != nil || params.URL == "" {
		return Forbidden("missing or malformed url")
	}
	return NeedsApproval("fetch " + params.URL)
}

func (t *WebFetchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WebFetchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, invalidInput(t.Name(), err)
	}

	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return nil, invalidInputf(t.Name(), "url must start with http:// or https://")
	}
	if params.Format != "text" && params.Format != "markdown" && params.Format != "html" {
		return nil, invalidInputf(t.Name(), "format must be 'text', 'markdown', or 'html'")
	}

	timeout := webfetchTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > maxWebfetchTimeout {
			timeout = maxWebfetchTimeout
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, contentType, err := t.fetch(reqCtx, params.URL)
	if err != nil {
		return nil, err
	}

	var output string
	switch params.Format {
	case "markdown":
		if strings.Contains(contentType, "text/html") {
			output, err = convertHTMLToMarkdown(content)
			if err != nil {
				return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
			}
		} else {
			output = content
		}
	case "text":
		if strings.Contains(contentType, "text/html") {
			output, err = extractTextFromHTML(content)
			if err != nil {
				return nil, fmt.Errorf("failed to extract text from HTML: %w", err)
			}
		} else {
			output = content
		}
	default:
		output = content
	}

	return &Result{
		Title:  fmt.Sprintf("%s (%s)", params.URL, contentType),
		Output: output,
	}, nil
}

// fetch performs the HTTP request with exponential backoff on transient
// failures (network errors and 5xx responses).
func (t *WebFetchTool) fetch(ctx context.Context, url string) (string, string, error) {
	var content, contentType string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", "execguard/1.0")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("request failed with status code: %d", resp.StatusCode))
		}
		if resp.ContentLength > maxResponseSize {
			return backoff.Permanent(fmt.Errorf("response too large (exceeds 5MB limit)"))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if len(body) > maxResponseSize {
			return backoff.Permanent(fmt.Errorf("response too large (exceeds 5MB limit)"))
		}

		content = string(body)
		contentType = resp.Header.Get("Content-Type")
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxFetchElapsed),
	), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", "", err
	}
	return content, contentType, nil
}

// extractTextFromHTML extracts plain text from HTML, dropping scripts,
// styles, and other non-content elements.
func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, object, embed").Remove()

	return strings.TrimSpace(doc.Text()), nil
}

// convertHTMLToMarkdown converts HTML content to Markdown format.
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")

	return converter.ConvertString(html)
}
