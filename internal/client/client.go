package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/observability"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// WeatherClient looks up current conditions at a coordinate.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, at models.Coords) (models.WeatherReport, error)
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrLocationNotFound  = errors.New("location not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrThrottled         = errors.New("throttled")
)

// breakerName labels the weather breaker in metrics and logs.
const breakerName = "weather_api"

// Option configures an OpenWeatherClient.
type Option func(*OpenWeatherClient)

// WithCircuitBreaker guards calls with a breaker that opens after failures
// consecutive failed lookups and half-opens after cooldown.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *OpenWeatherClient) {
		if failures == 0 {
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				observability.RecordCircuitBreakerTransition(breakerName, from.String(), to.String())
			},
		})
	}
}

// WithRateLimit throttles outbound calls to perSecond with the given burst.
// A call that cannot get a token before its deadline fails with ErrThrottled.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *OpenWeatherClient) {
		if perSecond <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenWeatherClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// OpenWeatherClient calls the OpenWeatherMap current-weather endpoint by coordinates.
// Each lookup is a single attempt; failures are returned to the caller unretried.
type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration, opts ...Option) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	c := &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type openWeatherResponse struct {
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity int      `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, at models.Coords) (models.WeatherReport, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			observability.WeatherAPICallsTotal.WithLabelValues("throttled").Inc()
			if ctx.Err() != nil {
				return models.WeatherReport{}, ctx.Err()
			}
			return models.WeatherReport{}, fmt.Errorf("%w: %v", ErrThrottled, err)
		}
	}

	if c.breaker == nil {
		return c.callAPI(ctx, at)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callAPI(ctx, at)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.WeatherAPICallsTotal.WithLabelValues("circuit_open").Inc()
			return models.WeatherReport{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return models.WeatherReport{}, err
	}
	report, ok := result.(models.WeatherReport)
	if !ok {
		return models.WeatherReport{}, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return report, nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, at models.Coords) (models.WeatherReport, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, at)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherReport{}, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherReport{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.WeatherReport{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return models.WeatherReport{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherReport{}, fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}

	return c.mapResponse(apiResp)
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, at models.Coords) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// mapResponse requires a condition and a temperature; everything else is optional.
func (c *OpenWeatherClient) mapResponse(apiResp openWeatherResponse) (models.WeatherReport, error) {
	if len(apiResp.Weather) == 0 {
		return models.WeatherReport{}, fmt.Errorf("%w: no weather conditions", ErrMalformedResponse)
	}
	conditions := apiResp.Weather[0].Description
	if conditions == "" {
		conditions = apiResp.Weather[0].Main
	}
	if conditions == "" {
		return models.WeatherReport{}, fmt.Errorf("%w: empty condition", ErrMalformedResponse)
	}
	if apiResp.Main.Temp == nil {
		return models.WeatherReport{}, fmt.Errorf("%w: missing temperature", ErrMalformedResponse)
	}

	return models.WeatherReport{
		Conditions:  conditions,
		Temperature: *apiResp.Main.Temp,
		Humidity:    apiResp.Main.Humidity,
		WindSpeed:   apiResp.Wind.Speed,
		Place:       apiResp.Name,
		Timestamp:   time.Now(),
	}, nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey performs one lookup at a fixed point to confirm the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, models.Coords{Lat: 51.5074, Lng: -0.1278})
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
