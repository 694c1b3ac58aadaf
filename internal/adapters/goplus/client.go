package goplus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

// Client implements ports.RiskDataProvider against the GoPlus token
// security API.
type Client struct {
	baseURL string
	apiKey  string
	chainID string
	http    *http.Client
	logger  ports.Logger
}

// NewClient builds a GoPlus client. chainID is the GoPlus chain
// identifier ("56" for BSC). An empty apiKey is allowed; the public
// tier just rate-limits harder.
func NewClient(baseURL, apiKey, chainID string, timeout time.Duration, logger ports.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		chainID: chainID,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// tokenSecurityResponse mirrors the relevant slice of the GoPlus
// response. Boolean flags arrive as "0"/"1" strings and any key may be
// absent, so everything is a string here and decoded defensively.
type tokenSecurityResponse struct {
	Code    int                          `json:"code"`
	Message string                       `json:"message"`
	Result  map[string]tokenSecurityItem `json:"result"`
}

type tokenSecurityItem struct {
	IsHoneypot       string        `json:"is_honeypot"`
	IsBlacklisted    string        `json:"is_blacklisted"`
	IsOpenSource     string        `json:"is_open_source"`
	IsWhitelisted    string        `json:"is_whitelisted"`
	IsMintable       string        `json:"is_mintable"`
	CanTakeBackOwner string        `json:"can_take_back_ownership"`
	HiddenOwner      string        `json:"hidden_owner"`
	IsProxy          string        `json:"is_proxy"`
	SelfDestruct     string        `json:"selfdestruct"`
	ExternalCall     string        `json:"external_call"`
	BuyTax           string        `json:"buy_tax"`
	SellTax          string        `json:"sell_tax"`
	HolderCount      string        `json:"holder_count"`
	OwnerAddress     string        `json:"owner_address"`
	CreatorAddress   string        `json:"creator_address"`
	CreatorPercent   string        `json:"creator_percent"`
	Holders          []holderEntry `json:"holders"`
}

type holderEntry struct {
	Address    string `json:"address"`
	Percent    string `json:"percent"`
	IsContract int    `json:"is_contract"`
	IsLocked   int    `json:"is_locked"`
	Tag        string `json:"tag"`
}

// TokenSecurity fetches the GoPlus security report for a token. Any
// transport failure, non-200 status, or response the decoder cannot
// make sense of comes back as an error; the evaluator decides what
// that means per check.
func (c *Client) TokenSecurity(ctx context.Context, token domain.Address) (*domain.TokenSecurityData, error) {
	op := "TokenSecurity"

	url := fmt.Sprintf("%s/api/v1/token_security/%s?contract_addresses=%s", c.baseURL, c.chainID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrTransientNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: status %d", op, ports.ErrDataUnavailable, resp.StatusCode)
	}

	var parsed tokenSecurityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%s: %w: malformed response: %w", op, ports.ErrDataUnavailable, err)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("%s: %w: empty result (code %d: %s)", op, ports.ErrDataUnavailable, parsed.Code, parsed.Message)
	}

	// GoPlus keys results by lower-case address.
	item, ok := parsed.Result[strings.ToLower(string(token))]
	if !ok {
		return nil, fmt.Errorf("%s: %w: token not in result set", op, ports.ErrDataUnavailable)
	}

	return item.toDomain(), nil
}

func (it tokenSecurityItem) toDomain() *domain.TokenSecurityData {
	data := &domain.TokenSecurityData{
		IsHoneypot:           flag(it.IsHoneypot),
		IsBlacklisted:        flag(it.IsBlacklisted),
		IsOpenSource:         flag(it.IsOpenSource),
		IsWhitelisted:        flag(it.IsWhitelisted),
		IsMintable:           flag(it.IsMintable),
		CanTakeBackOwnership: flag(it.CanTakeBackOwner),
		HiddenOwner:          flag(it.HiddenOwner),
		IsProxy:              flag(it.IsProxy),
		SelfDestruct:         flag(it.SelfDestruct),
		ExternalCall:         flag(it.ExternalCall),
		BuyTaxPct:            taxPct(it.BuyTax),
		SellTaxPct:           taxPct(it.SellTax),
		HolderCount:          intField(it.HolderCount),
		OwnerAddress:         domain.Address(strings.ToLower(it.OwnerAddress)),
		CreatorOwns:          fraction(it.CreatorPercent),
	}
	for _, h := range it.Holders {
		data.TopHolders = append(data.TopHolders, domain.HolderShare{
			Address:    domain.Address(strings.ToLower(h.Address)),
			Fraction:   fraction(h.Percent),
			IsContract: h.IsContract == 1,
			IsLocked:   h.IsLocked == 1,
		})
	}
	return data
}

// flag decodes GoPlus's "0"/"1" string booleans; anything unparseable
// counts as unset.
func flag(s string) bool {
	return strings.TrimSpace(s) == "1"
}

// taxPct converts GoPlus's fractional tax ("0.05") to percent (5.0).
func taxPct(s string) float64 {
	return fraction(s) * 100
}

func fraction(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func intField(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

var _ ports.RiskDataProvider = (*Client)(nil)
