package detailcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/models"
)

// FetchedProfile is what a fetcher returns for one horse
type FetchedProfile struct {
	Pedigree     models.Pedigree
	Performances []models.EntryRecord
}

// Fetcher retrieves a horse's pedigree and past performances
type Fetcher interface {
	Fetch(ctx context.Context, horseID string) (*FetchedProfile, error)
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher
type HTTPFetcherConfig struct {
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	CircuitBreakerMax int           // consecutive failures before the breaker opens
	CircuitCooldown   time.Duration // open time before a trial request is let through
	UserAgent         string
}

// DefaultHTTPFetcherConfig returns recommended defaults
func DefaultHTTPFetcherConfig() HTTPFetcherConfig {
	return HTTPFetcherConfig{
		Timeout:           30 * time.Second,
		MaxRetries:        2,
		RetryWaitMin:      500 * time.Millisecond,
		RetryWaitMax:      10 * time.Second,
		CircuitBreakerMax: 10,
		CircuitCooldown:   time.Minute,
		UserAgent:         "race-edge/1.0",
	}
}

// profileResponse is the JSON document served per horse
type profileResponse struct {
	HorseID      string              `json:"horse_id"`
	Sire         string              `json:"sire"`
	Damsire      string              `json:"damsire"`
	Performances []entrystore.RawRow `json:"performances"`
}

// CircuitState represents the state of the fetcher's circuit breaker
type CircuitState int

const (
	// CircuitClosed lets every request through
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen lets one trial request through after the cooldown
	CircuitHalfOpen
	// CircuitOpen rejects requests without sending them
	CircuitOpen
)

// String returns string representation of circuit state
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitHalfOpen:
		return "half_open"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// HTTPFetcher fetches JSON horse profiles from {BaseURL}/horses/{id}
type HTTPFetcher struct {
	client  *retryablehttp.Client
	baseURL string
	agent   string
	log     logrus.FieldLogger
	now     func() time.Time

	mu                sync.Mutex
	limiter           *rate.Limiter
	circuitBreakerMax int
	cooldown          time.Duration
	consecutiveErrors int
	state             CircuitState
	openedAt          time.Time
	trialInFlight     bool
	lastError         error
}

// NewHTTPFetcher creates a new HTTP profile fetcher
func NewHTTPFetcher(cfg HTTPFetcherConfig, log logrus.FieldLogger) *HTTPFetcher {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = customRetryPolicy()
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil
	if log != nil {
		retryClient.Logger = leveledLogger{log}
	} else {
		log = logrus.StandardLogger()
	}

	f := &HTTPFetcher{
		client:            retryClient,
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		agent:             cfg.UserAgent,
		log:               log.WithField("component", "http_fetcher"),
		now:               time.Now,
		circuitBreakerMax: cfg.CircuitBreakerMax,
		cooldown:          cfg.CircuitCooldown,
	}
	retryClient.RequestLogHook = f.paceRetry
	return f
}

// UseLimiter makes retries issued inside the client wait on l, so every
// request sent shares the caller's request rate
func (f *HTTPFetcher) UseLimiter(l *rate.Limiter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limiter = l
}

// paceRetry runs right before each request; attempt 0 is paced by the caller
func (f *HTTPFetcher) paceRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	f.mu.Lock()
	l := f.limiter
	f.mu.Unlock()
	if l == nil {
		return
	}
	// a cancelled context makes the request itself fail before sending
	r := l.Reserve()
	if err := sleepContext(req.Context(), r.Delay()); err != nil {
		r.Cancel()
	}
}

// State returns the current circuit state
func (f *HTTPFetcher) State() CircuitState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Fetch retrieves one horse profile
func (f *HTTPFetcher) Fetch(ctx context.Context, horseID string) (*FetchedProfile, error) {
	endpoint := fmt.Sprintf("%s/horses/%s", f.baseURL, url.PathEscape(horseID))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewFetchError(horseID, CodeUnknown, "failed to build request", true, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.agent != "" {
		req.Header.Set("User-Agent", f.agent)
	}

	// every path past this point records a success or a failure
	if err := f.checkCircuit(); err != nil {
		return nil, NewFetchError(horseID, CodeCircuitOpen, "too many consecutive failures", false, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.recordFailure(err)
		code := CodeNetworkError
		if errors.Is(err, context.DeadlineExceeded) {
			code = CodeTimeout
		}
		return nil, NewFetchError(horseID, code, "request failed", false, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		f.recordSuccess()
		return nil, NewFetchError(horseID, CodeNotFound, "no such horse", true, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		f.recordFailure(fmt.Errorf("status %d", resp.StatusCode))
		return nil, NewFetchError(horseID, CodeRateLimited, "rate limited", false, nil)
	case resp.StatusCode >= 500:
		err := fmt.Errorf("status %d", resp.StatusCode)
		f.recordFailure(err)
		return nil, NewFetchError(horseID, CodeServerError, "server error", false, err)
	case resp.StatusCode != http.StatusOK:
		f.recordSuccess()
		return nil, NewFetchError(horseID, CodeUnknown, fmt.Sprintf("unexpected status %d", resp.StatusCode), true, nil)
	}
	f.recordSuccess()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewFetchError(horseID, CodeNetworkError, "failed to read body", false, err)
	}
	var doc profileResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, NewFetchError(horseID, CodeInvalidData, "failed to decode profile", true, errors.Join(ErrInvalidData, err))
	}

	out := &FetchedProfile{Pedigree: models.Pedigree{Sire: doc.Sire, Damsire: doc.Damsire}}
	for _, row := range doc.Performances {
		if row.HorseID == "" {
			row.HorseID = horseID
		}
		rec := row.Record()
		if rec.RaceID == "" {
			continue
		}
		if rec.Sire == "" {
			rec.Sire = doc.Sire
		}
		if rec.Damsire == "" {
			rec.Damsire = doc.Damsire
		}
		out.Performances = append(out.Performances, rec)
	}
	return out, nil
}

// Close closes any resources held by the fetcher
func (f *HTTPFetcher) Close() error {
	f.client.HTTPClient.CloseIdleConnections()
	return nil
}

// checkCircuit admits a request. After the cooldown the breaker goes
// half-open and admits exactly one trial until that trial is recorded.
func (f *HTTPFetcher) checkCircuit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case CircuitOpen:
		if f.now().Sub(f.openedAt) < f.cooldown {
			return fmt.Errorf("%w: %v", ErrCircuitOpen, f.lastError)
		}
		f.state = CircuitHalfOpen
		f.trialInFlight = true
		f.log.Info("Circuit breaker entering half-open state after cooldown")
		return nil
	case CircuitHalfOpen:
		if f.trialInFlight {
			return fmt.Errorf("%w: trial request in flight", ErrCircuitOpen)
		}
		f.trialInFlight = true
	}
	return nil
}

func (f *HTTPFetcher) recordFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutiveErrors++
	f.lastError = err

	if f.state == CircuitHalfOpen {
		f.open()
		return
	}
	if f.state == CircuitClosed && f.circuitBreakerMax > 0 && f.consecutiveErrors >= f.circuitBreakerMax {
		f.open()
	}
}

// open must be called with mu held
func (f *HTTPFetcher) open() {
	f.state = CircuitOpen
	f.openedAt = f.now()
	f.trialInFlight = false
	f.log.WithFields(logrus.Fields{
		"consecutive_errors": f.consecutiveErrors,
		"cooldown":           f.cooldown,
		"last_error":         f.lastError,
	}).Warn("Circuit breaker opened")
}

func (f *HTTPFetcher) recordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != CircuitClosed {
		f.log.Info("Circuit breaker closed")
	}
	f.consecutiveErrors = 0
	f.state = CircuitClosed
	f.trialInFlight = false
}

// customRetryPolicy defines which HTTP responses should trigger a retry
func customRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			// Retry on network errors
			return true, nil
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true, nil
		}
		return false, nil
	}
}

// leveledLogger adapts logrus to retryablehttp's LeveledLogger
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.WithFields(fields(kv)).Error(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.WithFields(fields(kv)).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.WithFields(fields(kv)).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.WithFields(fields(kv)).Warn(msg) }

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
