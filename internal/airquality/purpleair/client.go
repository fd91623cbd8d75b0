// Package purpleair provides a client for the PurpleAir sensor-listing API.
package purpleair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/getaq/internal/airquality"
	"github.com/breatheroute/getaq/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the sensor-listing endpoint.
	DefaultBaseURL = "https://api.purpleair.com/v1/sensors"

	// ProviderName identifies this provider.
	ProviderName = "purpleair"

	// APIKeyHeader carries the read key on every request.
	APIKeyHeader = "X-API-Key"
)

// ErrMissingAPIKey is returned when the client has no key to send.
var ErrMissingAPIKey = errors.New("purpleair: api key is required")

// ClientConfig holds configuration for the PurpleAir client.
type ClientConfig struct {
	// APIKey is the PurpleAir read key (required).
	APIKey string

	// BaseURL is the sensor-listing URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client is built from Timeout and MaxRetries.
	HTTPClient HTTPDoer

	// Timeout for the request (default: 30s).
	Timeout time.Duration

	// MaxRetries on network errors and 5xx responses (default: 0).
	MaxRetries uint64

	// RateLimit caps requests per second against the API (0: unlimited).
	RateLimit float64

	// Logger for client operations.
	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a PurpleAir API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new PurpleAir client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.MaxRetries = cfg.MaxRetries
		rc.RateLimit = cfg.RateLimit
		rc.Logger = cfg.Logger
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// API response types (from the PurpleAir API).

type sensorsResponse struct {
	APIVersion             json.RawMessage     `json:"api_version"`
	TimeStamp              *float64            `json:"time_stamp"`
	DataTimeStamp          *float64            `json:"data_time_stamp"`
	LocationType           json.RawMessage     `json:"location_type"`
	MaxAge                 json.RawMessage     `json:"max_age"`
	FirmwareDefaultVersion json.RawMessage     `json:"firmware_default_version"`
	Data                   [][]json.RawMessage `json:"data"`
}

type errorResponse struct {
	APIVersion  string  `json:"api_version"`
	TimeStamp   float64 `json:"time_stamp"`
	Error       string  `json:"error"`
	Description string  `json:"description"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("purpleair: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("purpleair: %s (status %d): %s", e.Code, e.StatusCode, e.Description)
}

// SensorsURL builds the sensor-listing URL for a query.
func (c *Client) SensorsURL(q airquality.Query) string {
	params := url.Values{}
	params.Set("fields", strings.Join(q.FieldList(), ","))
	params.Set("location_type", strconv.Itoa(q.LocationType))
	params.Set("max_age", strconv.Itoa(q.MaxAge))
	params.Set("nwlat", formatCoord(q.Box.NWLat))
	params.Set("nwlng", formatCoord(q.Box.NWLng))
	params.Set("selat", formatCoord(q.Box.SELat))
	params.Set("selng", formatCoord(q.Box.SELng))
	return c.baseURL + "?" + params.Encode()
}

// FetchSensors retrieves all sensors in the query's bounding box and decodes
// them into a typed batch. A record that does not match the requested field
// layout fails the whole fetch.
func (c *Client) FetchSensors(ctx context.Context, q airquality.Query) (*airquality.Batch, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SensorsURL(q), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", req.URL.Redacted()).
		Int("max_age", q.MaxAge).
		Msg("fetching sensors")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sensors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var result sensorsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode sensors response: %w", err)
	}

	records, err := airquality.DecodeRecords(q.RecordFields(), result.Data)
	if err != nil {
		return nil, fmt.Errorf("decode sensors response: %w", err)
	}

	event := c.logger.Debug().Int("sensors", len(records))
	if result.DataTimeStamp != nil {
		event = event.Float64("data_time_stamp", *result.DataTimeStamp)
	}
	event.Msg("sensors fetched")

	return &airquality.Batch{
		APIVersion:             result.APIVersion,
		LocationType:           result.LocationType,
		MaxAge:                 result.MaxAge,
		FirmwareDefaultVersion: result.FirmwareDefaultVersion,
		TimeStamp:              result.TimeStamp,
		DataTimeStamp:          result.DataTimeStamp,
		Records:                records,
	}, nil
}

// decodeAPIError reads a PurpleAir error body. Bodies that are not the
// documented error object still yield an APIError with the status code.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var payload errorResponse
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Code = payload.Error
		apiErr.Description = payload.Description
	}
	return apiErr
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
