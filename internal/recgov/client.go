// Package recgov fetches permit availability from the recreation.gov permits API.
//
// Each configured section is fetched independently. A failing section (network
// error, non-200 status, malformed payload) is reported as a SectionError and
// left out of the snapshot; it never prevents the other sections from being read.
package recgov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

// DefaultBaseURL is the public recreation.gov host.
const DefaultBaseURL = "https://www.recreation.gov"

// maxBodyBytes caps how much of an availability response we read.
const maxBodyBytes = 8 << 20

// ErrMalformedPayload is returned when a 200 response does not have the
// payload.availability.<division>.date_availability shape.
var ErrMalformedPayload = errors.New("malformed availability payload")

// DefaultUserAgents is the pool a User-Agent header is drawn from for each request.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// retryableStatus lists the status codes worth another attempt.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// SectionError is a per-section fetch failure.
type SectionError struct {
	Section models.Section
	Err     error
}

func (e SectionError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Section.Label(), e.Err)
}

func (e SectionError) Unwrap() error {
	return e.Err
}

// ClientConfig holds optional HTTP client tuning parameters.
type ClientConfig struct {
	MaxRetries          int           // Attempts per request including the first; default 3
	RetryDelayBase      time.Duration // Linear backoff base between attempts; default 500ms
	RequestSpacing      time.Duration // Pause between sections in FetchAll; 0 disables
	UserAgents          []string      // Defaults to DefaultUserAgents
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client provides access to the recreation.gov availability API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	requestSpacing time.Duration
	userAgents     []string
}

// NewClient creates a new recreation.gov client
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = 500 * time.Millisecond
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 2
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		requestSpacing: cfg.RequestSpacing,
		userAgents:     cfg.UserAgents,
	}
}

// availabilityResponse is the subset of the API response we read.
type availabilityResponse struct {
	Payload *struct {
		Availability json.RawMessage `json:"availability"`
	} `json:"payload"`
}

type divisionAvailability struct {
	DateAvailability map[string]dateInfo `json:"date_availability"`
}

type dateInfo struct {
	Remaining *int `json:"remaining"`
}

// FetchAll fetches every section in order. Failed sections are omitted from
// the snapshot and returned as SectionErrors.
func (c *Client) FetchAll(ctx context.Context, sections []models.Section) (models.Snapshot, []SectionError) {
	snapshot := make(models.Snapshot, len(sections))
	var failures []SectionError

	for i, section := range sections {
		if i > 0 && c.requestSpacing > 0 {
			if err := sleepCtx(ctx, c.requestSpacing); err != nil {
				for _, rest := range sections[i:] {
					failures = append(failures, SectionError{Section: rest, Err: err})
				}
				break
			}
		}

		logger.Info("Checking %s", section.Label())
		availability, err := c.FetchSection(ctx, section)
		if err != nil {
			logger.Error("Fetching error: %s: %v", section.Label(), err)
			failures = append(failures, SectionError{Section: section, Err: err})
			continue
		}

		snapshot[section.Name] = availability
		logger.Info("Successfully retrieved data for %s (%d dates)", section.Label(), len(availability))
	}

	return snapshot, failures
}

// FetchSection retrieves remaining-permit counts by date for one section.
func (c *Client) FetchSection(ctx context.Context, section models.Section) (models.DateAvailability, error) {
	endpoint := fmt.Sprintf("%s/api/permits/%s/availability", c.baseURL, url.PathEscape(section.Permit))

	params := url.Values{}
	params.Set("start_date", section.StartDate)
	params.Set("end_date", section.EndDate)
	params.Set("commercial_acc", "false")
	params.Set("is_lottery", "true")

	body, err := c.doRequest(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	return parseAvailability(body, section.Division)
}

// parseAvailability extracts date -> remaining for the requested division, or
// for the first division in the payload when division is empty.
func parseAvailability(body []byte, division string) (models.DateAvailability, error) {
	var response availabilityResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if response.Payload == nil || len(response.Payload.Availability) == 0 {
		return nil, fmt.Errorf("%w: missing payload.availability", ErrMalformedPayload)
	}

	var divisions map[string]divisionAvailability
	if err := json.Unmarshal(response.Payload.Availability, &divisions); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if len(divisions) == 0 {
		return nil, fmt.Errorf("%w: no divisions in payload", ErrMalformedPayload)
	}

	if division == "" {
		first, err := firstKey(response.Payload.Availability)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		division = first
	}

	selected, ok := divisions[division]
	if !ok {
		return nil, fmt.Errorf("%w: division %s not in payload", ErrMalformedPayload, division)
	}
	if selected.DateAvailability == nil {
		return nil, fmt.Errorf("%w: division %s has no date_availability", ErrMalformedPayload, division)
	}

	availability := make(models.DateAvailability, len(selected.DateAvailability))
	for date, info := range selected.DateAvailability {
		remaining := 0
		if info.Remaining != nil && *info.Remaining > 0 {
			remaining = *info.Remaining
		}
		availability[date] = remaining
	}

	return availability, nil
}

// firstKey returns the first key of a JSON object in document order.
func firstKey(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", errors.New("availability is not an object")
	}
	tok, err = dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", errors.New("availability object is empty")
	}
	return key, nil
}

// doRequest performs HTTP request with retry logic and returns the body of a 200 response.
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryDelayBase*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgents[rand.IntN(len(c.userAgents))])

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("Request attempt %d/%d failed: %v", attempt+1, c.maxRetries, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			resp.Body.Close()
			statusErr := &StatusError{Code: resp.StatusCode}
			if !retryableStatus[resp.StatusCode] {
				return nil, statusErr
			}
			lastErr = statusErr
			logger.Debug("Request attempt %d/%d got status %d", attempt+1, c.maxRetries, resp.StatusCode)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// IsConnectivity reports whether err is a transport-level failure.
func IsConnectivity(err error) bool {
	// *url.Error and *net.OpError both satisfy net.Error.
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
