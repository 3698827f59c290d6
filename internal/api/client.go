package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/regardlab/regard/internal/localstore"
)

// Storage keys holding the auth tokens.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

const (
	defaultBaseURL   = "http://localhost:8000"
	defaultUserAgent = "regard/0.1"
	requestTimeout   = 15 * time.Second

	refreshPath = "/api/auth/refresh/"
)

// Backend lists the operations the rest of regard consumes. *Client
// implements it; tests substitute fakes.
type Backend interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (*AuthResponse, error)
	Logout() error
	IsAuthenticated() bool
	GetPatient(ctx context.Context) (*PatientProfile, error)
	CreateTest(ctx context.Context, req CreateTestRequest) (*TestResult, error)
	GetPatients(ctx context.Context) (Page[PatientProfile], error)
	GetTests(ctx context.Context) (Page[TestResult], error)
	GetTest(ctx context.Context, id int64) (*TestResult, error)
	GetStatistics(ctx context.Context) (*Statistics, error)
	ExportTestPDF(ctx context.Context, id int64) ([]byte, error)
	ExportAllTestsPDF(ctx context.Context) ([]byte, error)
	PredictTest(ctx context.Context, data any) (*Prediction, error)
}

var _ Backend = (*Client)(nil)

// Client talks to the regard backend.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	storage   localstore.Storage
	logger    *zap.Logger
	timeout   time.Duration

	refreshes singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient bases requests on a copy of hc. A cookie jar is added to the
// copy when hc has none; hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.http = &cp
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout, regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient builds a Client for baseURL. Tokens are read from and written to
// storage; a nil storage keeps them in memory.
func NewClient(baseURL string, storage localstore.Storage, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if storage == nil {
		storage = localstore.NewMemory()
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		storage:   storage,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var payload RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register/", req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Login authenticates and persists the returned tokens.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var payload AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login/", body, &payload); err != nil {
		return nil, err
	}
	if payload.AccessToken != "" {
		c.storeToken(AccessTokenKey, payload.AccessToken)
		c.storeToken(RefreshTokenKey, payload.RefreshToken)
	}
	return &payload, nil
}

// Logout forgets both tokens. It never contacts the backend.
func (c *Client) Logout() error {
	return errors.Join(
		c.storage.RemoveItem(AccessTokenKey),
		c.storage.RemoveItem(RefreshTokenKey),
	)
}

// IsAuthenticated reports whether an access token is stored.
func (c *Client) IsAuthenticated() bool {
	return c.token(AccessTokenKey) != ""
}

// GetPatient fetches the profile of the logged-in patient.
func (c *Client) GetPatient(ctx context.Context) (*PatientProfile, error) {
	var payload PatientProfile
	if err := c.do(ctx, http.MethodGet, "/api/patients/me/", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// CreateTest uploads a finished test. The backend grades it.
func (c *Client) CreateTest(ctx context.Context, req CreateTestRequest) (*TestResult, error) {
	if req.RawData == nil {
		req.RawData = map[string]any{}
	}
	var payload TestResult
	if err := c.do(ctx, http.MethodPost, "/api/tests/", req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetPatients lists patients visible to the current account.
func (c *Client) GetPatients(ctx context.Context) (Page[PatientProfile], error) {
	var page Page[PatientProfile]
	if err := c.do(ctx, http.MethodGet, "/api/patients/", nil, &page); err != nil {
		return Page[PatientProfile]{}, err
	}
	return page, nil
}

// GetTests lists the current patient's tests.
func (c *Client) GetTests(ctx context.Context) (Page[TestResult], error) {
	var page Page[TestResult]
	if err := c.do(ctx, http.MethodGet, "/api/tests/", nil, &page); err != nil {
		return Page[TestResult]{}, err
	}
	return page, nil
}

// GetTest fetches one test. A missing test yields an error matching
// ErrNotFound.
func (c *Client) GetTest(ctx context.Context, id int64) (*TestResult, error) {
	var payload TestResult
	if err := c.do(ctx, http.MethodGet, testPath(id, ""), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetStatistics fetches aggregate results for the current patient.
func (c *Client) GetStatistics(ctx context.Context) (*Statistics, error) {
	var payload Statistics
	if err := c.do(ctx, http.MethodGet, "/api/tests/statistics/", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ExportTestPDF downloads the PDF report of one test.
func (c *Client) ExportTestPDF(ctx context.Context, id int64) ([]byte, error) {
	return c.send(ctx, http.MethodGet, testPath(id, "export_pdf/"), nil, "application/pdf")
}

// ExportAllTestsPDF downloads the PDF report of every test.
func (c *Client) ExportAllTestsPDF(ctx context.Context) ([]byte, error) {
	return c.send(ctx, http.MethodGet, "/api/tests/export_all_pdf/", nil, "application/pdf")
}

// PredictTest asks the model to grade arbitrary test data.
func (c *Client) PredictTest(ctx context.Context, data any) (*Prediction, error) {
	var payload Prediction
	if err := c.do(ctx, http.MethodPost, "/ml/predict/", data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func testPath(id int64, suffix string) string {
	return "/api/tests/" + strconv.FormatInt(id, 10) + "/" + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	data, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	if dest == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs the request, refreshing the access token once on a 401 and
// retrying once after a successful refresh.
func (c *Client) send(ctx context.Context, method, path string, body any, accept string) ([]byte, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	status, data, authed, err := c.roundTrip(ctx, method, path, payload, accept, true)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && authed {
		refreshed := c.refresh(ctx)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if refreshed {
			c.logger.Debug("retrying after token refresh", zap.String("method", method), zap.String("path", path))
			status, data, _, err = c.roundTrip(ctx, method, path, payload, accept, true)
			if err != nil {
				return nil, err
			}
		}
	}
	if status < 200 || status >= 300 {
		apiErr := newError(method, path, status, data)
		c.logger.Debug("api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}
	return data, nil
}

// roundTrip executes one request. authed reports whether a bearer token was
// attached.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, accept string, withAuth bool) (status int, data []byte, authed bool, err error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return 0, nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if withAuth {
		if token := c.token(AccessTokenKey); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			authed = true
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, authed, ctxErr
		}
		return 0, nil, authed, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, authed, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, data, authed, nil
}

// refresh exchanges the refresh token for a new access token. Concurrent
// callers share a single in-flight exchange, which runs detached from any one
// caller's context under its own timeout. A caller whose context ends first
// gets false and leaves the exchange running.
func (c *Client) refresh(ctx context.Context) bool {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		return c.refreshOnce(rctx), nil
	})
	select {
	case <-ctx.Done():
		return false
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	}
}

func (c *Client) refreshTimeout() time.Duration {
	if c.http.Timeout > 0 {
		return c.http.Timeout
	}
	return requestTimeout
}

// refreshOnce performs one exchange. Tokens are cleared when the server
// rejects the refresh or cannot be reached, but not when the exchange's own
// context ends.
func (c *Client) refreshOnce(ctx context.Context) bool {
	refreshToken := c.token(RefreshTokenKey)
	if refreshToken == "" {
		return false
	}

	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return false
	}
	status, data, _, err := c.roundTrip(ctx, http.MethodPost, refreshPath, payload, "application/json", false)
	if err != nil && ctx.Err() != nil {
		c.logger.Info("token refresh interrupted; keeping session", zap.Error(err))
		return false
	}
	if err == nil && status >= 200 && status < 300 {
		var tokens struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if json.Unmarshal(data, &tokens) == nil && tokens.AccessToken != "" {
			c.storeToken(AccessTokenKey, tokens.AccessToken)
			if tokens.RefreshToken != "" {
				c.storeToken(RefreshTokenKey, tokens.RefreshToken)
			}
			c.logger.Debug("access token refreshed")
			return true
		}
	}

	c.logger.Info("token refresh failed; clearing session", zap.Int("status", status), zap.Error(err))
	if logoutErr := c.Logout(); logoutErr != nil {
		c.logger.Warn("clear tokens", zap.Error(logoutErr))
	}
	return false
}

func (c *Client) token(key string) string {
	value, ok, err := c.storage.GetItem(key)
	if err != nil {
		c.logger.Warn("read token", zap.String("key", key), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func (c *Client) storeToken(key, value string) {
	if value == "" {
		return
	}
	if err := c.storage.SetItem(key, value); err != nil {
		c.logger.Warn("persist token", zap.String("key", key), zap.Error(err))
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
