package bscscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

// Client implements ports.ContractVerifier against the BscScan
// getsourcecode endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a BscScan client. apiKey may be empty; the free tier
// allows unauthenticated calls at a reduced rate.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type sourceCodeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		SourceCode   string `json:"SourceCode"`
		ContractName string `json:"ContractName"`
	} `json:"result"`
}

// IsVerified reports whether the contract's source is published on
// BscScan. An unverified contract comes back with an empty SourceCode
// field and status "1", so only transport and API errors are errors
// here.
func (c *Client) IsVerified(ctx context.Context, token domain.Address) (*domain.VerificationResult, error) {
	op := "IsVerified"

	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", string(token))
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrTransientNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: status %d", op, ports.ErrDataUnavailable, resp.StatusCode)
	}

	var parsed sourceCodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%s: %w: malformed response: %w", op, ports.ErrDataUnavailable, err)
	}
	if parsed.Status != "1" || len(parsed.Result) == 0 {
		return nil, fmt.Errorf("%s: %w: api status %q (%s)", op, ports.ErrDataUnavailable, parsed.Status, parsed.Message)
	}

	entry := parsed.Result[0]
	return &domain.VerificationResult{
		Verified:     strings.TrimSpace(entry.SourceCode) != "",
		ContractName: entry.ContractName,
	}, nil
}

var _ ports.ContractVerifier = (*Client)(nil)
