package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

const (
	defaultBaseURL     = "https://api.spacetraders.io/v2"
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 6
	defaultBackoffBase = time.Second
	pageLimit          = 20
)

// RequestRecord is handed to interceptors after every API response, carrying
// enough to correlate the exchange downstream.
type RequestRecord struct {
	SliceID      string
	RequestID    int64
	Timestamp    time.Time
	Method       string
	Path         string
	Status       int
	RequestBody  []byte
	ResponseBody []byte
}

// Interceptor observes completed API exchanges. Implementations must not
// block; slow sinks buffer internally and drop on overflow.
type Interceptor interface {
	OnResponse(record RequestRecord)
}

// APIError is a non-2xx response. Code carries the game error code when the
// body has one (e.g. 4221/4224 for exhausted/invalid surveys).
type APIError struct {
	Status  int
	Code    int64
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api error (status %d, code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, string(e.Body))
}

// AsAPIError unwraps err to an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type retryableError struct {
	message string
}

func (e *retryableError) Error() string { return e.message }

// Client is the SpaceTraders REST client. One instance serves the whole
// fleet; the limiter matches the server's 2 req/s burst-2 policy.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	clock       shared.Clock
	maxAttempts uint
	backoffBase time.Duration

	requestID atomic.Int64

	mu           sync.RWMutex
	token        string
	sliceID      string
	interceptors []Interceptor
}

// NewClient creates an API client. If baseURL is empty the public endpoint
// is used; a nil clock means RealClock.
func NewClient(baseURL string, clock shared.Clock) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		rateLimiter: rate.NewLimiter(rate.Limit(2), 2),
		baseURL:     baseURL,
		clock:       clock,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
	}
}

// SetToken sets the bearer token used for authenticated endpoints.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SetSliceID sets the reset-derived correlation id attached to records.
func (c *Client) SetSliceID(sliceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sliceID = sliceID
}

// AddInterceptor registers an observer for completed exchanges.
func (c *Client) AddInterceptor(i Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.request(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.request(ctx, http.MethodPost, path, body, result)
}

func (c *Client) patch(ctx context.Context, path string, body, result interface{}) error {
	return c.request(ctx, http.MethodPatch, path, body, result)
}

// request performs one logical API call: rate limit, retry transient
// failures with backoff, notify interceptors on every response.
func (c *Client) request(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	return retry.Do(
		func() error {
			return c.attempt(ctx, method, path, reqBody, result)
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.backoffBase),
		retry.MaxJitter(c.backoffBase/2),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(func(err error) bool {
			var transient *retryableError
			return errors.As(err, &transient)
		}),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) attempt(ctx context.Context, method, path string, reqBody []byte, result interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	requestID := c.requestID.Add(1)

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	token := c.token
	sliceID := c.sliceID
	interceptors := c.interceptors
	c.mu.RUnlock()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{message: fmt.Sprintf("network error: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{message: fmt.Sprintf("failed to read response: %v", err)}
	}

	record := RequestRecord{
		SliceID:      sliceID,
		RequestID:    requestID,
		Timestamp:    c.clock.Now(),
		Method:       method,
		Path:         path,
		Status:       resp.StatusCode,
		RequestBody:  reqBody,
		ResponseBody: respBody,
	}
	for _, i := range interceptors {
		i.OnResponse(record)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				c.clock.Sleep(time.Duration(seconds) * time.Second)
			}
		}
		return &retryableError{message: "rate limited (429)"}

	case resp.StatusCode >= 500:
		return &retryableError{message: fmt.Sprintf("server error (%d)", resp.StatusCode)}

	case resp.StatusCode >= 400:
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    int64  `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: status, Body: body}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// getPaged fetches every page of a paginated collection endpoint.
func getPaged[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		sep := "?"
		if len(path) > 0 && containsQuery(path) {
			sep = "&"
		}
		var envelope pageEnvelope[T]
		pagedPath := fmt.Sprintf("%s%spage=%d&limit=%d", path, sep, page, pageLimit)
		if err := c.get(ctx, pagedPath, &envelope); err != nil {
			return nil, err
		}
		all = append(all, envelope.Data...)
		if len(all) >= envelope.Meta.Total || len(envelope.Data) == 0 {
			return all, nil
		}
	}
}

func containsQuery(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.RawQuery != ""
}

// Status is GET /status. Unauthenticated.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.get(ctx, "/status", &status); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &status, nil
}

// WaitForAPI polls /status until the server is out of maintenance (503),
// retrying every second.
func (c *Client) WaitForAPI(ctx context.Context) (*StatusResponse, error) {
	for {
		status, err := c.Status(ctx)
		if err == nil {
			return status, nil
		}
		if apiErr, ok := AsAPIError(err); ok && apiErr.Status != http.StatusServiceUnavailable {
			return nil, err
		}
		log.Printf("[api] server unavailable, retrying: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// Register creates a new agent and returns its token.
func (c *Client) Register(ctx context.Context, callsign, faction string) (*RegisterResult, error) {
	body := map[string]string{
		"symbol":  callsign,
		"faction": faction,
	}
	var envelope dataEnvelope[RegisterResult]
	if err := c.post(ctx, "/register", body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to register agent %s: %w", callsign, err)
	}
	return &envelope.Data, nil
}

// GetAgent is GET /my/agent.
func (c *Client) GetAgent(ctx context.Context) (*fleet.Agent, error) {
	var envelope dataEnvelope[fleet.Agent]
	if err := c.get(ctx, "/my/agent", &envelope); err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &envelope.Data, nil
}

// GetShips lists every ship the agent owns.
func (c *Client) GetShips(ctx context.Context) ([]fleet.Ship, error) {
	ships, err := getPaged[fleet.Ship](ctx, c, "/my/ships")
	if err != nil {
		return nil, fmt.Errorf("failed to list ships: %w", err)
	}
	return ships, nil
}

// GetContracts lists every contract offered to the agent.
func (c *Client) GetContracts(ctx context.Context) ([]fleet.Contract, error) {
	contracts, err := getPaged[fleet.Contract](ctx, c, "/my/contracts")
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	return contracts, nil
}

// GetFactions lists all factions.
func (c *Client) GetFactions(ctx context.Context) ([]fleet.Faction, error) {
	factions, err := getPaged[fleet.Faction](ctx, c, "/factions")
	if err != nil {
		return nil, fmt.Errorf("failed to list factions: %w", err)
	}
	return factions, nil
}
