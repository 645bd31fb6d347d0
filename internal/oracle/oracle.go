// Package oracle is a client for an optimistic assertion oracle: a claim is
// asserted, a liveness window passes, and the assertion settles true or false.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrUnavailable = errors.New("oracle unavailable")

// Assertion is the state of a previously asserted claim.
type Assertion struct {
	ID      string `json:"assertion_id"`
	Settled bool   `json:"settled"`
	Result  bool   `json:"result"`
}

// Client asserts claims and polls their settlement.
type Client interface {
	Assert(ctx context.Context, claim string) (string, error)
	Assertion(ctx context.Context, id string) (Assertion, error)
}

type HTTPClient struct {
	BaseURL      string
	Requester    string
	BondCurrency string
	HTTP         *http.Client
}

func NewHTTPClient(baseURL, requester, bondCurrency string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Requester:    requester,
		BondCurrency: bondCurrency,
		HTTP:         &http.Client{Timeout: timeout},
	}
}

// ClaimHash is the keccak256 of the UTF-8 claim, as the on-chain oracle
// identifies it.
func ClaimHash(claim string) common.Hash {
	return crypto.Keccak256Hash([]byte(claim))
}

type assertRequest struct {
	Claim        string `json:"claim"`
	ClaimHash    string `json:"claim_hash"`
	Requester    string `json:"requester,omitempty"`
	BondCurrency string `json:"bond_currency,omitempty"`
}

func (c *HTTPClient) Assert(ctx context.Context, claim string) (string, error) {
	body, err := json.Marshal(assertRequest{
		Claim:        claim,
		ClaimHash:    ClaimHash(claim).Hex(),
		Requester:    c.Requester,
		BondCurrency: c.BondCurrency,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/assertions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var out Assertion
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty assertion id", ErrUnavailable)
	}
	return out.ID, nil
}

func (c *HTTPClient) Assertion(ctx context.Context, id string) (Assertion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/assertions/"+url.PathEscape(id), nil)
	if err != nil {
		return Assertion{}, err
	}
	var out Assertion
	if err := c.do(req, &out); err != nil {
		return Assertion{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
