// Package gemini calls the Gemini generateContent endpoint to convert a
// document into Markdown text.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dvoron/pdfscribe/internal/httputil"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// Conversions of large PDFs routinely exceed a minute; the caller's
	// context handles cancellation.
	defaultHTTPTimeout = 3 * time.Minute
	defaultMIMEType    = "application/pdf"
)

// conversionInstruction is sent alongside every document: the model must
// return Markdown equivalent to the document and nothing else.
const conversionInstruction = "Analyze this PDF and convert it to Markdown format. " +
	"Be as precise as possible. Do not include any introductory or concluding text, " +
	"just the Markdown content."

// Config describes how to build a client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
}

// Client is the MarkdownGenerator implementation backed by the Gemini API.
type Client struct {
	base       string
	client     *http.Client
	maxRetries int
}

// New returns a client ready for Generate calls.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		base:       strings.TrimRight(base, "/"),
		client:     pickHTTPClient(cfg.HTTPClient),
		maxRetries: cfg.MaxRetries,
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	InlineData *inlineData `json:"inline_data,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Generate sends the document inline and returns the generated Markdown.
func (c *Client) Generate(ctx context.Context, apiKey, modelID string, document []byte, mimeType string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("api key is required")
	}
	if len(document) == 0 {
		return "", fmt.Errorf("document is empty; nothing to convert")
	}
	if mimeType == "" {
		mimeType = defaultMIMEType
	}

	payload := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(document),
				}},
				{Text: conversionInstruction},
			},
		}},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.base, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("gemini API error: %s", apiErrorMessage(resp.Status, body))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("gemini API returned no candidates")
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return strings.TrimSpace(text.String()), nil
}

func apiErrorMessage(status string, body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("%s (%s)", status, strings.TrimSpace(string(body)))
}
