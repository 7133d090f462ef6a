package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bloodgroupdb/leadctl/internal/httpx"
)

// Request timeouts. Updates use a shorter budget than reads because a slow
// PATCH should fail fast rather than stall the whole batch.
const (
	readTimeout  = 30 * time.Second
	patchTimeout = 10 * time.Second
)

// Client talks to the Lead database API. All calls share the cookie-based
// session established by Login; the session is never mutated after login,
// so sequential and read-only concurrent use are both safe.
type Client struct {
	baseURL string
	http    *httpx.Client
	logger  *zap.Logger
}

// NewClient creates a client for the Lead API at baseURL.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	hc := &http.Client{
		Timeout: readTimeout,
		Jar:     jar,
	}

	return &Client{
		baseURL: baseURL,
		http:    httpx.New(hc),
		logger:  zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for request diagnostics.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
	c.http.SetLogger(l)
}

// SetRetries overrides the retry policy of the underlying HTTP client.
func (c *Client) SetRetries(max uint64, initial time.Duration) {
	c.http.SetRetries(max, initial)
}

// Login authenticates against POST /auth/login and stores the session
// cookie for all subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(text))
	}

	c.logger.Info("successfully logged in")
	return nil
}

// ListVariants fetches all variant records.
func (c *Client) ListVariants(ctx context.Context) ([]Variant, error) {
	var variants []Variant
	if err := c.getJSON(ctx, "/variant", &variants); err != nil {
		return nil, fmt.Errorf("fetch variants: %w", err)
	}
	c.logger.Info("fetched variants", zap.Int("count", len(variants)))
	return variants, nil
}

// GetVariant fetches a single variant record by id.
func (c *Client) GetVariant(ctx context.Context, id int) (*Variant, error) {
	var v Variant
	if err := c.getJSON(ctx, "/variant/"+strconv.Itoa(id), &v); err != nil {
		return nil, fmt.Errorf("fetch variant %d: %w", id, err)
	}
	return &v, nil
}

// PatchVariant applies a partial update to a variant. A nil value in fields
// clears the corresponding column.
func (c *Client) PatchVariant(ctx context.Context, id int, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode update for variant %d: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(ctx, patchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+"/variant/"+strconv.Itoa(id), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("update variant %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("update variant %d failed with status %d: %s",
			id, resp.StatusCode, string(text))
	}
	return nil
}

// ListSystems fetches all blood group systems.
func (c *Client) ListSystems(ctx context.Context) ([]System, error) {
	var systems []System
	if err := c.getJSON(ctx, "/system", &systems); err != nil {
		return nil, fmt.Errorf("fetch systems: %w", err)
	}
	return systems, nil
}

// SearchAlleles lists the alleles belonging to a blood group system.
func (c *Client) SearchAlleles(ctx context.Context, systemSymbol string) ([]AlleleSummary, error) {
	path := "/allele/search?system_symbol=" + url.QueryEscape(systemSymbol)
	var alleles []AlleleSummary
	if err := c.getJSON(ctx, path, &alleles); err != nil {
		return nil, fmt.Errorf("search alleles for system %s: %w", systemSymbol, err)
	}
	return alleles, nil
}

// GetAllele fetches a full allele record by id.
func (c *Client) GetAllele(ctx context.Context, id int) (*Allele, error) {
	var a Allele
	if err := c.getJSON(ctx, "/allele/"+strconv.Itoa(id), &a); err != nil {
		return nil, fmt.Errorf("fetch allele %d: %w", id, err)
	}
	return &a, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(text))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
