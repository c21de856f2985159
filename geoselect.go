// Package geoselect loads the portal's country→cities lookup table and
// renders it into linked country/city selection controls.
package geoselect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultEndpoint is the path serving the lookup table.
const DefaultEndpoint = "/api/countries-cities"

// LookupTable maps a country name to the names of its cities.
// A table returned by a Loader is shared between callers and must not be mutated.
type LookupTable map[string][]string

// Countries returns the table's keys sorted ascending.
func (t LookupTable) Countries() []string {
	countries := make([]string, 0, len(t))
	for country := range t {
		countries = append(countries, country)
	}
	sort.Strings(countries)
	return countries
}

// Cities returns a sorted copy of the cities listed for country,
// or nil when the country is not in the table.
func (t LookupTable) Cities(country string) []string {
	cities, ok := t[country]
	if !ok {
		return nil
	}
	sorted := make([]string, len(cities))
	copy(sorted, cities)
	sort.Strings(sorted)
	return sorted
}

// Has reports whether country is a key of the table.
func (t LookupTable) Has(country string) bool {
	_, ok := t[country]
	return ok
}

// LoadState is the state of a Loader's result cell.
type LoadState int

const (
	StateIdle     LoadState = iota // nothing fetched, or the last fetch failed
	StatePending                   // a fetch is in flight
	StateResolved                  // the table is cached
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

// NetworkError reports a failed request or a non-2xx response.
type NetworkError struct {
	URL        string
	StatusCode int // zero when the request itself failed
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a response body that is not a JSON object of string arrays.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// errNullTable reports a response body of JSON null.
var errNullTable = errors.New("expected a JSON object, got null")

// Config contains configuration options for a Loader.
type Config struct {
	BaseURL    string                // Prefix joined with Endpoint (default: "")
	Endpoint   string                // Lookup table path (default: DefaultEndpoint)
	HTTPClient *http.Client          // Client used for the fetch (default: 30s timeout)
	Logger     *zap.Logger           // Diagnostics sink (default: no-op)
	Registerer prometheus.Registerer // Where loader metrics are registered (default: none)
}

// Option is a functional option for configuring a Loader.
type Option func(*Config)

// WithBaseURL sets the scheme and host the endpoint is resolved against.
func WithBaseURL(base string) Option {
	return func(c *Config) {
		c.BaseURL = base
	}
}

// WithEndpoint overrides the lookup table path.
func WithEndpoint(path string) Option {
	return func(c *Config) {
		c.Endpoint = path
	}
}

// WithHTTPClient sets the client used to fetch the table.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the logger fetch failures are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRegisterer registers the loader's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registerer = reg
	}
}

// httpClient is the default client. The timeout bounds a fetch that would
// otherwise hold every waiter indefinitely.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

func defaultConfig() *Config {
	return &Config{
		Endpoint:   DefaultEndpoint,
		HTTPClient: httpClient,
		Logger:     zap.NewNop(),
	}
}

// loadCall is the result cell shared by every caller of one fetch.
// table is written once, before done is closed.
type loadCall struct {
	done  chan struct{}
	table LookupTable
}

// Loader fetches the lookup table once and shares it. Concurrent calls to
// Load made while a fetch is in flight wait for that fetch instead of
// issuing their own. A failed fetch leaves the loader idle so the next
// call retries. Safe for concurrent use.
type Loader struct {
	url     string
	client  *http.Client
	logger  *zap.Logger
	metrics *loaderMetrics

	mu    sync.Mutex
	state LoadState
	call  *loadCall
	table LookupTable
	err   error
}

// NewLoader creates a Loader in the idle state.
//
//	loader := geoselect.NewLoader(geoselect.WithBaseURL("https://portal.example"))
//	table := loader.Load(ctx)
func NewLoader(opts ...Option) *Loader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpClient
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &Loader{
		url:     strings.TrimRight(cfg.BaseURL, "/") + cfg.Endpoint,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
		metrics: newLoaderMetrics(cfg.Registerer),
	}
}

// URL returns the address the loader fetches.
func (l *Loader) URL() string { return l.url }

// State returns the current state of the result cell.
func (l *Loader) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error of the most recent failed fetch, or nil once a
// fetch has succeeded.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Load returns the lookup table, fetching it if no fetch has succeeded yet.
// It never fails: on a network or parse error every waiting caller receives
// an empty table and the error is logged. A caller whose ctx ends while
// waiting receives an empty table; the fetch itself runs to completion.
func (l *Loader) Load(ctx context.Context) LookupTable {
	l.mu.Lock()
	switch l.state {
	case StateResolved:
		table := l.table
		l.mu.Unlock()
		l.metrics.cacheHits.Inc()
		return table
	case StatePending:
		call := l.call
		l.mu.Unlock()
		l.metrics.sharedWaits.Inc()
		return l.wait(ctx, call)
	}

	call := &loadCall{done: make(chan struct{})}
	l.call = call
	l.state = StatePending
	l.mu.Unlock()

	go l.run(context.WithoutCancel(ctx), call)
	return l.wait(ctx, call)
}

func (l *Loader) wait(ctx context.Context, call *loadCall) LookupTable {
	select {
	case <-call.done:
		return call.table
	case <-ctx.Done():
		return LookupTable{}
	}
}

// run performs the fetch and settles call for every waiter.
func (l *Loader) run(ctx context.Context, call *loadCall) {
	start := time.Now()
	table, err := l.fetch(ctx)

	l.metrics.fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		l.metrics.fetches.WithLabelValues(resultLabel(err)).Inc()
		l.logger.Error("loading countries and cities failed",
			zap.String("url", l.url),
			zap.Error(err))
		table = LookupTable{}
	} else {
		l.metrics.fetches.WithLabelValues("success").Inc()
		l.logger.Debug("countries and cities loaded",
			zap.String("url", l.url),
			zap.Int("countries", len(table)))
	}

	l.mu.Lock()
	if err != nil {
		l.state = StateIdle
		l.err = err
	} else {
		l.state = StateResolved
		l.table = table
		l.err = nil
	}
	l.call = nil
	call.table = table
	l.mu.Unlock()
	close(call.done)
}

func (l *Loader) fetch(ctx context.Context) (LookupTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, &NetworkError{URL: l.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: l.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{URL: l.url, StatusCode: resp.StatusCode}
	}

	var table LookupTable
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return nil, &ParseError{URL: l.url, Err: err}
	}
	if table == nil {
		return nil, &ParseError{URL: l.url, Err: errNullTable}
	}
	return table, nil
}
