// Package kaleido is a typed Go client for the Kaleidoscope life-sciences
// data-management platform.
//
// A Client owns the credential pair and token lifecycle and exposes the
// platform's domain objects (activities, records, entity types and fields,
// programs, record views, labels, imports and exports) through per-entity
// services. Transport failures are logged at the primitive operations and
// returned as wrapped errors; lookups that find nothing return nil without
// error.
package kaleido

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/kaleidoscope-bio/kaleido-go/internal/apptracker"
	"github.com/kaleidoscope-bio/kaleido-go/internal/apptracker/dryrun"
	"github.com/kaleidoscope-bio/kaleido-go/internal/metrics"
	"github.com/kaleidoscope-bio/kaleido-go/internal/utils"
	"github.com/kaleidoscope-bio/kaleido-go/pkg/kaleido/auth"
)

// ProdAPIURL is the production URL for the Kaleidoscope API, used when no URL
// is provided in Options.
const ProdAPIURL = "https://api.kaleidoscope.bio"

// RequestTimeout is the fixed per-call timeout ceiling.
const RequestTimeout = 10 * time.Second

// ValidContentTypes lists the acceptable content types for file downloads.
var ValidContentTypes = []string{
	"text/csv",
	"chemical/x-mdl-sdfile",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Options configures a Client.
type Options struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	// BaseURL defaults to ProdAPIURL.
	BaseURL string `validate:"omitempty,url"`
	// HTTPClient defaults to a client with the fixed RequestTimeout.
	HTTPClient *http.Client
	// Log defaults to the logrus standard logger.
	Log logrus.FieldLogger
	// Metrics defaults to a no-op implementation.
	Metrics metrics.MetricsService
	// Tracker defaults to a dry-run tracker.
	Tracker apptracker.AppTracker
}

// Client is a client for the Kaleidoscope API. The zero value is not usable;
// construct with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *auth.TokenManager
	log        logrus.FieldLogger
	metrics    metrics.MetricsService
	tracker    apptracker.AppTracker

	Activities   *ActivitiesService
	EntityFields *EntityFieldsService
	EntityTypes  *EntityTypesService
	Exports      *ExportsService
	Imports      *ImportsService
	Labels       *LabelsService
	Programs     *ProgramsService
	RecordViews  *RecordViewsService
	Records      *RecordsService
	Workspace    *WorkspaceService
}

// File is a named binary stream with its MIME type, for upload endpoints.
type File struct {
	Name        string
	Reader      io.Reader
	ContentType string
}

// NewClient validates opts, performs the initial client-credentials token
// exchange and wires up the per-entity services. A failed exchange leaves the
// client unauthenticated and logs a diagnostic; it is not a constructor
// error, but every authenticated call will then fail until a later refresh
// attempt succeeds.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(opts); err != nil {
		return nil, fmt.Errorf("validating client options: %w", err)
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = ProdAPIURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	metricsService := opts.Metrics
	if metricsService == nil {
		metricsService = metrics.NoopMetricsService{}
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = &dryrun.DryRunTracker{}
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     auth.NewTokenManager(baseURL, opts.ClientID, opts.ClientSecret, httpClient, log, metricsService),
		log:        log,
		metrics:    metricsService,
		tracker:    tracker,
	}

	// Construction triggers the initial exchange. Failure is logged inside the
	// token manager; the client stays usable for a later refresh attempt.
	_ = c.tokens.Authenticate(ctx) //nolint:errcheck // diagnostic already logged

	c.Activities = NewActivitiesService(c)
	c.EntityFields = NewEntityFieldsService(c)
	c.EntityTypes = &EntityTypesService{client: c}
	c.Exports = &ExportsService{client: c}
	c.Imports = &ImportsService{client: c}
	c.Labels = &LabelsService{client: c}
	c.Programs = &ProgramsService{client: c}
	c.RecordViews = &RecordViewsService{client: c}
	c.Records = NewRecordsService(c)
	c.Workspace = &WorkspaceService{client: c}

	return c, nil
}

// IsAuthenticated reports whether the client currently holds an access token.
func (c *Client) IsAuthenticated() bool {
	return c.tokens.IsAuthenticated()
}

// Get sends a GET request and returns the raw JSON payload. A response with
// status >= 400 is logged and returned as an error; a 2xx response whose body
// is not valid JSON yields a nil payload and no error.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.requestJSON(ctx, http.MethodGet, path, params, nil, "")
}

// Post sends payload as a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling request body: %w", err)
	}
	return c.requestJSON(ctx, http.MethodPost, path, nil, bytes.NewReader(body), "application/json")
}

// Put sends payload as a JSON body.
func (c *Client) Put(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling request body: %w", err)
	}
	return c.requestJSON(ctx, http.MethodPut, path, nil, bytes.NewReader(body), "application/json")
}

// Delete sends a DELETE request with optional query parameters.
func (c *Client) Delete(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.requestJSON(ctx, http.MethodDelete, path, params, nil, "")
}

// PostFile sends a multipart form with a "file" part and, when body is
// non-nil, a JSON-encoded "body" part.
func (c *Client) PostFile(ctx context.Context, path string, file File, body any) (json.RawMessage, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("creating file form part: %w", err)
	}
	if _, err = io.Copy(part, file.Reader); err != nil {
		return nil, fmt.Errorf("copying file data: %w", err)
	}

	if body != nil {
		bodyJSON, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshalling form body: %w", marshalErr)
		}
		if err = writer.WriteField("body", string(bodyJSON)); err != nil {
			return nil, fmt.Errorf("writing form body field: %w", err)
		}
	}

	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	return c.requestJSON(ctx, http.MethodPost, path, nil, &buf, writer.FormDataContentType())
}

// GetFile downloads a file to downloadPath and returns the saved path. The
// response's content type is validated against ValidContentTypes before any
// byte is written, so a rejected download leaves no partial file behind.
func (c *Client) GetFile(ctx context.Context, path, downloadPath string, params url.Values) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		c.metrics.IncFileDownload("transport_error")
		return "", err
	}
	defer utils.DeferredClose(c.log, resp.Body, "closing response body")

	if resp.StatusCode >= 400 {
		c.metrics.IncFileDownload("http_error")
		return "", c.logHTTPError(http.MethodGet, path, resp)
	}

	contentType := resp.Header.Get("Content-Type")
	if !slices.Contains(ValidContentTypes, contentType) {
		c.metrics.IncFileDownload("invalid_content_type")
		c.log.Errorf("invalid Content-Type %q for GET %s: %v", contentType, path, ErrInvalidContentType)
		return "", fmt.Errorf("checking content type %q: %w", contentType, ErrInvalidContentType)
	}

	out, err := os.Create(downloadPath)
	if err != nil {
		c.metrics.IncFileDownload("file_error")
		return "", fmt.Errorf("creating download file: %w", err)
	}

	if _, err = io.Copy(out, resp.Body); err != nil {
		_ = out.Close()             //nolint:errcheck // best-effort cleanup
		_ = os.Remove(downloadPath) //nolint:errcheck // best-effort cleanup
		c.metrics.IncFileDownload("stream_error")
		return "", fmt.Errorf("streaming download to %s: %w", downloadPath, err)
	}
	if err = out.Close(); err != nil {
		return "", fmt.Errorf("closing download file: %w", err)
	}

	c.metrics.IncFileDownload("success")
	return downloadPath, nil
}

// requestJSON performs one HTTP call and classifies the response: status >= 400
// is a logged error, a non-JSON success body is an absent payload.
func (c *Client) requestJSON(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (json.RawMessage, error) {
	resp, err := c.do(ctx, method, path, params, body, contentType)
	if err != nil {
		return nil, err
	}
	defer utils.DeferredClose(c.log, resp.Body, "closing response body")

	if resp.StatusCode >= 400 {
		return nil, c.logHTTPError(method, path, resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.IncRequestFailure(path, method, "read_error")
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if !json.Valid(respBody) {
		// Not a failure: some endpoints return empty or non-JSON bodies.
		return nil, nil
	}
	return json.RawMessage(respBody), nil
}

// do ensures a valid token and performs exactly one HTTP call.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (*http.Response, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.metrics.IncRequestFailure(path, method, "auth_error")
		return nil, fmt.Errorf("ensuring access token: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveRequestDuration(path, method, time.Since(start).Seconds())
	if err != nil {
		c.metrics.IncRequestFailure(path, method, "transport_error")
		c.tracker.CaptureException(err)
		c.log.Errorf("%s %s failed: %v", method, path, err)
		return nil, fmt.Errorf("sending request: %w", err)
	}
	c.metrics.IncNumRequests(path, method, resp.StatusCode)

	return resp, nil
}

func (c *Client) logHTTPError(method, path string, resp *http.Response) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body to log error when statusCode=%d: %w", resp.StatusCode, err)
	}

	httpErr := &HTTPStatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
	c.metrics.IncRequestFailure(path, method, "http_error")
	if resp.StatusCode >= 500 {
		c.tracker.CaptureException(httpErr)
	}
	c.log.Errorf("%s %s received statusCode=%d: %s", method, path, resp.StatusCode, string(respBody))
	return httpErr
}

// parseResponseBody decodes a raw JSON payload into T. A nil payload yields a
// nil result without error.
func parseResponseBody[T any](raw json.RawMessage) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	var response T
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("unmarshalling response body: %w", err)
	}
	return &response, nil
}
