package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when the requested anchor, journal entry, or title
// certificate does not exist.
var ErrNotFound = errors.New("not found")

// AuthorityState is the public registry state returned by GET /authority.
type AuthorityState struct {
	Initialized bool   `json:"initialized"`
	Authority   string `json:"authority,omitempty"`
}

// AnchorSubmission is the payload of SubmitAnchor.
type AnchorSubmission struct {
	SourceNamespace string
	ChannelID       string
	BlockStart      uint64
	BlockEnd        uint64
	StateRoot       []byte
	TxCount         uint64
}

// AnchorRecord is an accepted anchor as returned by the service.
type AnchorRecord struct {
	Sequence        uint64    `json:"sequence"`
	SourceNamespace string    `json:"source_namespace"`
	ChannelID       string    `json:"channel_id"`
	BlockStart      uint64    `json:"block_start"`
	BlockEnd        uint64    `json:"block_end"`
	StateRoot       string    `json:"state_root"`
	TxCount         uint64    `json:"tx_count"`
	JournalIndex    uint64    `json:"journal_index"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// AnchorMarker is the logical time of the most recent accepted anchor.
type AnchorMarker struct {
	JournalIndex uint64    `json:"journal_index"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// AnchorCountResult is the response of GET /anchors/count.
type AnchorCountResult struct {
	TotalAnchors uint64        `json:"total_anchors"`
	LastMarker   *AnchorMarker `json:"last_anchor_marker,omitempty"`
}

// JournalOverview is the response of GET /journal.
type JournalOverview struct {
	Entries uint64 `json:"entries"`
	Root    string `json:"root"`
}

// VerifyReport is the response of GET /journal/verify.
type VerifyReport struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// JournalEntry is a single hash-chained journal entry.
type JournalEntry struct {
	Index      uint64          `json:"index"`
	Kind       string          `json:"kind"`
	Actor      string          `json:"actor"`
	RecordedAt time.Time       `json:"recorded_at"`
	Body       json.RawMessage `json:"body"`
	BodyHash   string          `json:"body_hash"`
	PrevHash   string          `json:"prev_hash"`
	Hash       string          `json:"hash"`
}

// TitleCertificate is a land-title certificate record.
type TitleCertificate struct {
	ID           string    `json:"id"`
	PropertyID   string    `json:"property_id"`
	OwnerHash    string    `json:"owner_hash"`
	FabricTxID   string    `json:"fabric_tx_id"`
	DocumentHash string    `json:"document_hash,omitempty"`
	Frozen       bool      `json:"frozen"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TitleRecord is one entry in a certificate's transfer history.
type TitleRecord struct {
	ID                string    `json:"id"`
	CertificateID     string    `json:"certificate_id"`
	Action            string    `json:"action"`
	PreviousOwnerHash string    `json:"previous_owner_hash,omitempty"`
	NewOwnerHash      string    `json:"new_owner_hash,omitempty"`
	FabricTxID        string    `json:"fabric_tx_id"`
	Memo              []byte    `json:"memo"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// Client talks to a Bhulekh anchoring service.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// credentials for automatic token exchange; empty for public-read clients
	address string
	secret  string

	// token state — guarded by mu
	mu          sync.Mutex
	bearerToken string
	tokenExpiry time.Time // zero = token was set manually (no auto-refresh)
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCredentials configures automatic token exchange: the client POSTs the
// shared secret to /auth/token as the given principal address and refreshes
// the token before it expires.
func WithCredentials(address, secret string) Option {
	return func(c *Client) {
		c.address = address
		c.secret = secret
	}
}

// WithToken attaches a pre-obtained principal token to every request.
// The token is treated as long-lived and will not be auto-refreshed.
func WithToken(token string) Option {
	return func(c *Client) {
		c.bearerToken = token
		c.tokenExpiry = time.Time{}
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Authenticate exchanges the configured credentials for a principal token
// immediately, instead of lazily on the first mutating call.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.ensureToken(ctx)
	return err
}

// Authority fetches the public registry state.
func (c *Client) Authority(ctx context.Context) (*AuthorityState, error) {
	var state AuthorityState
	if err := c.get(ctx, "/api/v1/authority", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Initialize performs the one-shot authority initialization. Only the
// deploying owner's principal may call it.
func (c *Client) Initialize(ctx context.Context, authority string) error {
	return c.post(ctx, "/api/v1/authority/initialize",
		map[string]string{"authority": authority}, nil)
}

// RotateAuthority replaces the anchor authority. Only the current authority
// may call it.
func (c *Client) RotateAuthority(ctx context.Context, next string) error {
	return c.post(ctx, "/api/v1/authority/rotate",
		map[string]string{"authority": next}, nil)
}

// SubmitAnchor records a state anchor and returns the accepted record with
// its assigned sequence number.
func (c *Client) SubmitAnchor(ctx context.Context, sub AnchorSubmission) (*AnchorRecord, error) {
	payload := map[string]any{
		"source_namespace": sub.SourceNamespace,
		"channel_id":       sub.ChannelID,
		"block_start":      sub.BlockStart,
		"block_end":        sub.BlockEnd,
		"state_root":       hex.EncodeToString(sub.StateRoot),
		"tx_count":         sub.TxCount,
	}
	var rec AnchorRecord
	if err := c.post(ctx, "/api/v1/anchors", payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AnchorCount fetches the total number of accepted anchors. Public read.
func (c *Client) AnchorCount(ctx context.Context) (*AnchorCountResult, error) {
	var result AnchorCountResult
	if err := c.get(ctx, "/api/v1/anchors/count", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnchorBySequence fetches the accepted anchor with the given 1-indexed
// sequence number. Returns ErrNotFound if no such anchor exists.
func (c *Client) AnchorBySequence(ctx context.Context, seq uint64) (*AnchorRecord, error) {
	var rec AnchorRecord
	if err := c.get(ctx, "/api/v1/anchors/"+strconv.FormatUint(seq, 10), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Journal fetches the journal overview: chain length and current root hash.
func (c *Client) Journal(ctx context.Context) (*JournalOverview, error) {
	var overview JournalOverview
	if err := c.get(ctx, "/api/v1/journal", &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// VerifyJournal asks the service to walk its full hash chain and report
// integrity.
func (c *Client) VerifyJournal(ctx context.Context) (*VerifyReport, error) {
	var report VerifyReport
	if err := c.get(ctx, "/api/v1/journal/verify", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetJournalEntry fetches a single journal entry by index.
func (c *Client) GetJournalEntry(ctx context.Context, index uint64) (*JournalEntry, error) {
	var entry JournalEntry
	if err := c.get(ctx, "/api/v1/journal/entries/"+strconv.FormatUint(index, 10), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// IssueTitleRequest is the payload of IssueTitle.
type IssueTitleRequest struct {
	PropertyID   string `json:"property_id"`
	OwnerHash    string `json:"owner_hash"`
	FabricTxID   string `json:"fabric_tx_id"`
	DocumentHash string `json:"document_hash,omitempty"`
}

// IssueTitle mints a title certificate for a property.
func (c *Client) IssueTitle(ctx context.Context, req IssueTitleRequest) (*TitleCertificate, error) {
	var cert TitleCertificate
	if err := c.post(ctx, "/api/v1/titles", req, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// TransferTitle records an ownership transfer on a certificate.
func (c *Client) TransferTitle(ctx context.Context, certID, newOwnerHash, fabricTxID string) (*TitleRecord, error) {
	payload := map[string]string{
		"new_owner_hash": newOwnerHash,
		"fabric_tx_id":   fabricTxID,
	}
	var rec TitleRecord
	if err := c.post(ctx, "/api/v1/titles/"+certID+"/transfer", payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FreezeTitle places a certificate under dispute freeze.
func (c *Client) FreezeTitle(ctx context.Context, certID, fabricTxID string) error {
	return c.post(ctx, "/api/v1/titles/"+certID+"/freeze",
		map[string]string{"fabric_tx_id": fabricTxID}, nil)
}

// UnfreezeTitle lifts a dispute freeze.
func (c *Client) UnfreezeTitle(ctx context.Context, certID, fabricTxID string) error {
	return c.post(ctx, "/api/v1/titles/"+certID+"/unfreeze",
		map[string]string{"fabric_tx_id": fabricTxID}, nil)
}

// GetTitle fetches a certificate by ID. Public read.
func (c *Client) GetTitle(ctx context.Context, certID string) (*TitleCertificate, error) {
	var cert TitleCertificate
	if err := c.get(ctx, "/api/v1/titles/"+certID, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// TitleByProperty fetches the certificate for a property. Public read.
func (c *Client) TitleByProperty(ctx context.Context, propertyID string) (*TitleCertificate, error) {
	var cert TitleCertificate
	if err := c.get(ctx, "/api/v1/properties/"+propertyID+"/title", &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// TitleHistory fetches a certificate's full transfer history. Public read.
func (c *Client) TitleHistory(ctx context.Context, certID string) ([]TitleRecord, error) {
	var resp struct {
		Records []TitleRecord `json:"records"`
	}
	if err := c.get(ctx, "/api/v1/titles/"+certID+"/history", &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// fetchTokenRaw exchanges the configured credentials for a fresh token.
// It uses the raw httpClient (not c.do) so no stale bearer token rides
// along with the exchange request.
func (c *Client) fetchTokenRaw(ctx context.Context) (token string, expiry time.Time, err error) {
	if c.address == "" || c.secret == "" {
		return "", time.Time{}, errors.New("no credentials configured; use WithCredentials or WithToken")
	}

	payload, _ := json.Marshal(map[string]string{
		"address": c.address,
		"secret":  c.secret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/token", bytes.NewReader(payload))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("token endpoint error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}

	// Refresh 60 s before actual expiry to avoid clock-skew failures.
	const refreshBuffer = 60 * time.Second
	exp := time.Now().Add(time.Duration(result.ExpiresIn)*time.Second - refreshBuffer)
	return result.Token, exp, nil
}

// ensureToken returns a valid bearer token, fetching a new one if the cached
// token is absent or approaching expiry. Thread-safe.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A zero expiry means the token was set via WithToken and is never
	// auto-refreshed.
	if c.bearerToken != "" && (c.tokenExpiry.IsZero() || time.Now().Before(c.tokenExpiry)) {
		return c.bearerToken, nil
	}

	token, expiry, err := c.fetchTokenRaw(ctx)
	if err != nil {
		return "", err
	}
	c.bearerToken = token
	c.tokenExpiry = expiry
	return token, nil
}

// get performs an unauthenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// post performs an authenticated POST with a JSON body and decodes the
// response into out (when out is non-nil).
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, out)
}

// do executes a request and decodes a successful JSON response into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode >= 300:
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
