// Package metabase is a minimal client for the Metabase REST API,
// covering the saved-question (card) query the customer sync needs.
package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/qamarero/placesync/internal/resilience"
)

// Client runs saved Metabase questions.
type Client interface {
	CardData(ctx context.Context, cardID int) (*CardResult, error)
}

// CardResult is the tabular result of a card query.
type CardResult struct {
	Columns []string
	Rows    [][]any
}

// ColumnIndex maps column names to their position in each row. Missing
// columns are simply absent from the map.
func (r *CardResult) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(r.Columns))
	for i, name := range r.Columns {
		idx[name] = i
	}
	return idx
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.Config) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithTimeout sets the request timeout. Card queries over large datasets
// can run for minutes.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	retry   resilience.Config
	http    *http.Client
}

// NewClient creates a Metabase API client for the given instance URL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		retry:   resilience.DefaultConfig(),
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type cardQueryResponse struct {
	Data struct {
		Cols []struct {
			Name string `json:"name"`
		} `json:"cols"`
		Rows [][]any `json:"rows"`
	} `json:"data"`
}

// CardData executes a saved question and returns its full result set.
// Transient upstream failures are retried; Metabase restarts routinely
// drop long card queries.
func (c *httpClient) CardData(ctx context.Context, cardID int) (*CardResult, error) {
	endpoint := fmt.Sprintf("%s/api/card/%d/query", c.baseURL, cardID)

	respBody, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var result cardQueryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "metabase: unmarshal response")
	}

	out := &CardResult{
		Columns: make([]string, 0, len(result.Data.Cols)),
		Rows:    result.Data.Rows,
	}
	for _, col := range result.Data.Cols {
		out.Columns = append(out.Columns, col.Name)
	}
	return out, nil
}

func (c *httpClient) post(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return nil, eris.Wrap(err, "metabase: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "metabase: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "metabase: read response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		err := eris.Errorf("metabase: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	return respBody, nil
}
