package fetch

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

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"propsignal/internal/config"
)

// Sink receives mapped staging records. Inserts must be idempotent: the
// bool reports whether a row actually landed (false on natural-key conflict).
type Sink interface {
	InsertRaw(dataset string, rec any) (bool, error)
}

// FetchResult accounts for one dataset import.
type FetchResult struct {
	Dataset   string
	Pages     int
	Fetched   int // rows returned by upstream
	Inserted  int // rows newly staged
	Skipped   int // natural-key conflicts (already staged)
	Filtered  int // valid rows outside our scope
	Malformed int // rows quarantined at the mapping stage
}

// Client fetches paginated open-data feeds into staging tables.
type Client struct {
	http       *http.Client
	baseURL    string
	appToken   string
	pageSize   int
	maxRecords int
	policy     RetryPolicy
	log        zerolog.Logger
}

// NewClient creates a fetch client from config.
func NewClient(cfg config.FetchConfig, log zerolog.Logger) *Client {
	policy := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}

	return &Client{
		http:       &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.BaseURL,
		appToken:   cfg.AppToken,
		pageSize:   cfg.PageSize,
		maxRecords: cfg.MaxRecords,
		policy:     policy,
		log:        log.With().Str("component", "fetch").Logger(),
	}
}

// WithPolicy returns a copy of the client using the given retry policy.
func (c *Client) WithPolicy(p RetryPolicy) *Client {
	clone := *c
	clone.policy = p
	return &clone
}

// FetchDataset pages through one feed and stages every mappable record.
// Pagination stops on a short page or when maxRecords is reached. A page
// that exhausts its retries aborts this dataset only; the error is returned
// so the orchestrator can isolate it from sibling datasets.
func (c *Client) FetchDataset(ctx context.Context, ds DatasetSpec, sink Sink, since time.Time) (*FetchResult, error) {
	result := &FetchResult{Dataset: ds.Name}

	for offset := 0; c.maxRecords <= 0 || offset < c.maxRecords; offset += c.pageSize {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		rows, err := c.fetchPage(ctx, ds, offset, since)
		if err != nil {
			return result, fmt.Errorf("dataset %s page at offset %d: %w", ds.Name, offset, err)
		}
		result.Pages++
		result.Fetched += len(rows)

		for _, row := range rows {
			rec, err := ds.Map(row)
			if err != nil {
				if errors.Is(err, ErrMalformedRecord) {
					result.Malformed++
					c.log.Debug().Str("dataset", ds.Name).Err(err).Msg("quarantined malformed record")
					continue
				}
				return result, fmt.Errorf("dataset %s: %w", ds.Name, err)
			}
			if rec == nil {
				result.Filtered++
				continue
			}

			inserted, err := sink.InsertRaw(ds.Name, rec)
			if err != nil {
				return result, fmt.Errorf("dataset %s: %w", ds.Name, err)
			}
			if inserted {
				result.Inserted++
			} else {
				result.Skipped++
			}
		}

		// Short page means we drained the feed
		if len(rows) < c.pageSize {
			break
		}
	}

	c.log.Info().
		Str("dataset", ds.Name).
		Int("pages", result.Pages).
		Int("fetched", result.Fetched).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Int("malformed", result.Malformed).
		Msg("dataset import complete")

	return result, nil
}

// fetchPage retrieves one page under the retry policy. Non-2xx statuses and
// transport failures are transient; an undecodable body is permanent.
func (c *Client) fetchPage(ctx context.Context, ds DatasetSpec, offset int, since time.Time) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("$limit", strconv.Itoa(c.pageSize))
	params.Set("$offset", strconv.Itoa(offset))
	if ds.SinceField != "" && !since.IsZero() {
		params.Set("$where", fmt.Sprintf("%s > '%s'", ds.SinceField, since.UTC().Format("2006-01-02T15:04:05")))
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, ds.Resource, params.Encode())

	var rows []map[string]any
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if c.appToken != "" {
			req.Header.Set("X-App-Token", c.appToken)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return &TransientError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &TransientError{
				Status: resp.StatusCode,
				Err:    fmt.Errorf("upstream said: %s", string(body)),
			}
		}

		rows = rows[:0]
		if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding page: %w", err))
		}
		return nil
	}

	if err := c.policy.Do(ctx, op); err != nil {
		return nil, err
	}
	return rows, nil
}
