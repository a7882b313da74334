// Package outscraper is a minimal client for the Outscraper Google Maps
// search API, covering the single-place lookup the enrichment pipeline
// needs.
package outscraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/qamarero/placesync/internal/resilience"
)

const defaultBaseURL = "https://api.outscraper.cloud/maps/search-v3"

// Client performs Outscraper place lookups.
type Client interface {
	SearchSinglePlace(ctx context.Context, name, address, city string) (*Place, error)
}

// Place is one Google Maps place candidate. Numeric and boolean fields are
// declared loose (any) on purpose: the API frequently returns them as
// strings, and restoring their types is the validation layer's job.
type Place struct {
	PlaceID                string `json:"place_id"`
	GoogleID               string `json:"google_id"`
	CID                    string `json:"cid"`
	KGMID                  string `json:"kgmid"`
	ReviewsID              string `json:"reviews_id"`
	Name                   string `json:"name"`
	Phone                  string `json:"phone"`
	Site                   string `json:"site"`
	Category               string `json:"category"`
	Subtypes               string `json:"subtypes"`
	FullAddress            string `json:"full_address"`
	Borough                string `json:"borough"`
	Street                 string `json:"street"`
	City                   string `json:"city"`
	PostalCode             string `json:"postal_code"`
	State                  string `json:"state"`
	Country                string `json:"country"`
	Latitude               any    `json:"latitude"`
	Longitude              any    `json:"longitude"`
	Rating                 any    `json:"rating"`
	Reviews                any    `json:"reviews"`
	ReviewsPerScore        any    `json:"reviews_per_score"`
	PhotosCount            any    `json:"photos_count"`
	Photo                  string `json:"photo"`
	WorkingHours           any    `json:"working_hours"`
	About                  any    `json:"about"`
	Range                  string `json:"range"`
	Prices                 string `json:"prices"`
	Description            string `json:"description"`
	TypicalTimeSpent       string `json:"typical_time_spent"`
	Verified               any    `json:"verified"`
	ReservationLinks       any    `json:"reservation_links"`
	BookingAppointmentLink string `json:"booking_appointment_link"`
	MenuLink               string `json:"menu_link"`
	OrderLinks             any    `json:"order_links"`
	LocationLink           string `json:"location_link"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLanguage sets the result language (default "es").
func WithLanguage(lang string) Option {
	return func(c *httpClient) {
		c.language = lang
	}
}

// WithRegion sets the search region bias (default "ES").
func WithRegion(region string) Option {
	return func(c *httpClient) {
		c.region = region
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.Config) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	language string
	region   string
	limiter  *rate.Limiter
	retry    resilience.Config
	http     *http.Client
}

// NewClient creates an Outscraper API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		language: "es",
		region:   "ES",
		limiter:  rate.NewLimiter(rate.Limit(1), 1),
		retry:    resilience.DefaultConfig(),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchSinglePlace looks up the best single match for a business. The
// query is "{name} {address}, {city}"; the city is dropped when the
// address already mentions it. A lookup with zero candidates returns
// (nil, nil) so callers can distinguish a miss from a transport failure.
func (c *httpClient) SearchSinglePlace(ctx context.Context, name, address, city string) (*Place, error) {
	query := BuildQuery(name, address, city)
	if query == "" {
		return nil, eris.New("outscraper: empty search query")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "outscraper: rate limit wait")
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", "1")
	params.Set("language", c.language)
	params.Set("region", c.region)
	params.Set("dropDuplicates", "true")
	params.Set("async", "false")

	respBody, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, params)
	})
	if err != nil {
		return nil, err
	}

	return decodeFirstPlace(respBody)
}

func (c *httpClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: create request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("outscraper: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	return respBody, nil
}

// BuildQuery assembles the search string, skipping empty parts and
// deduplicating the city when the address already contains it.
func BuildQuery(name, address, city string) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(name); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(address); s != "" {
		parts = append(parts, s)
	}
	query := strings.Join(parts, " ")

	if c := strings.TrimSpace(city); c != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(c)) {
		query = fmt.Sprintf("%s, %s", query, c)
	}
	return query
}

// decodeFirstPlace handles both response shapes the API emits: the usual
// array-of-arrays and the occasional bare object in the first slot.
func decodeFirstPlace(body []byte) (*Place, error) {
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal response")
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}

	first := envelope.Data[0]

	var batch []Place
	if err := json.Unmarshal(first, &batch); err == nil {
		if len(batch) == 0 {
			return nil, nil
		}
		return &batch[0], nil
	}

	var single Place
	if err := json.Unmarshal(first, &single); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal place")
	}
	return &single, nil
}
