// Package ingest downloads monthly transfer records from the data.taipei
// open-data API and combines them into one table.
//
// Each month is a paged resource: requests carry limit and offset query
// parameters and paging stops at the first empty page. Requests are issued
// sequentially and paced by a token-bucket limiter.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

// MonthColumn is the column appended to every fetched record.
const MonthColumn = "資料月份"

// Resource is one month of data and the base URL that serves it.
type Resource struct {
	Month string
	URL   string
}

// ResourcesFromMap orders a month→URL mapping by month key.
func ResourcesFromMap(m map[string]string) []Resource {
	out := make([]Resource, 0, len(m))
	for month, u := range m {
		out = append(out, Resource{Month: month, URL: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Record is one JSON object with its keys in document order.
type Record struct {
	Keys   []string
	Values map[string]string
}

// Fetcher pages records out of the open-data API.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	limit   int
	logger  log.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client. Its Timeout bounds each request.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client = &http.Client{Timeout: d} }
}

// WithRateLimit paces requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *Fetcher) { f.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithPageLimit sets the number of records requested per page.
func WithPageLimit(limit int) Option {
	return func(f *Fetcher) { f.limit = limit }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher returns a Fetcher with a 30 s timeout, pages of 10000 records
// and two requests per second.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		limit:   10000,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.GetLoggerWithName("ingest")
	}
	return f
}

// FetchMonth pages through one resource. On failure it returns the records
// fetched so far together with the error.
func (f *Fetcher) FetchMonth(ctx context.Context, res Resource) ([]Record, error) {
	var all []Record
	for offset := 0; ; offset += f.limit {
		u, err := pageURL(res.URL, f.limit, offset)
		if err != nil {
			return all, err
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return all, errors.Wrap(err, "rate limiter")
		}

		rows, err := f.fetchPage(ctx, u)
		if err != nil {
			return all, errors.Wrapf(err, "month %s offset %d", res.Month, offset)
		}
		f.logger.Debug("page fetched",
			log.MonthKey, res.Month,
			log.OffsetKey, offset,
			log.SamplesKey, len(rows),
		)
		if len(rows) == 0 {
			return all, nil
		}
		all = append(all, rows...)
	}
}

// FetchAll fetches every resource in order and combines the records. A
// month that fails keeps its partial records and the remaining months are
// still fetched; cancellation of ctx stops the whole run.
func (f *Fetcher) FetchAll(ctx context.Context, resources []Resource) (*frame.Frame, error) {
	var (
		columns []string
		seen    = map[string]bool{}
		rows    []Record
		months  []string
	)

	for _, res := range resources {
		records, err := f.FetchMonth(ctx, res)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "fetch cancelled")
			}
			f.logger.Error("month fetch failed, keeping partial rows", err,
				log.MonthKey, res.Month,
				log.SamplesKey, len(records),
			)
		}
		f.logger.Info("month fetched", log.MonthKey, res.Month, log.SamplesKey, len(records))

		for _, rec := range records {
			for _, k := range rec.Keys {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
			rows = append(rows, rec)
			months = append(months, res.Month)
		}
	}

	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no records fetched for any month")
	}

	out := frame.New(append(columns, MonthColumn)...)
	for i, rec := range rows {
		cells := make([]string, 0, len(columns)+1)
		for _, c := range columns {
			cells = append(cells, rec.Values[c])
		}
		cells = append(cells, months[i])
		if err := out.Append(cells...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FetchToFile runs FetchAll and writes the combined table to path.
func (f *Fetcher) FetchToFile(ctx context.Context, resources []Resource, path string) (*frame.Frame, error) {
	fr, err := f.FetchAll(ctx, resources)
	if err != nil {
		return nil, err
	}
	if err := frame.WriteFile(path, fr); err != nil {
		return nil, err
	}
	f.logger.Info("raw transfers written", log.FilePathKey, path, log.SamplesKey, fr.Len())
	return fr, nil
}

func pageURL(base string, limit, offset int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "parse resource url %q", base)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type pageEnvelope struct {
	Result struct {
		Results []json.RawMessage `json:"results"`
	} `json:"result"`
}

func (f *Fetcher) fetchPage(ctx context.Context, pageURL string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		f.logger.Warn("unexpected response status", log.URLKey, pageURL, log.StatusCodeKey, resp.StatusCode)
		return nil, errors.Newf("unexpected status %d from %s", resp.StatusCode, pageURL)
	}

	var env pageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decode page")
	}

	records := make([]Record, 0, len(env.Result.Results))
	for i, raw := range env.Result.Results {
		rec, err := decodeRecord(raw)
		if err != nil {
			return records, errors.Wrapf(err, "record %d", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeRecord reads one JSON object keeping its key order. Strings are
// unquoted, null becomes the missing marker and any other value keeps its
// JSON text.
func decodeRecord(raw json.RawMessage) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return Record{}, errors.Wrap(err, "read object")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Record{}, errors.Newf("expected object, got %v", tok)
	}

	rec := Record{Values: map[string]string{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Record{}, errors.Wrap(err, "read key")
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Record{}, errors.Wrapf(err, "read value of %q", key)
		}
		if _, dup := rec.Values[key]; !dup {
			rec.Keys = append(rec.Keys, key)
		}
		rec.Values[key] = cellText(value)
	}
	return rec, nil
}

func cellText(v json.RawMessage) string {
	trimmed := bytes.TrimSpace(v)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
