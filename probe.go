package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Outcome classifies a single probe request.
type Outcome string

const (
	OutcomeAvailable   Outcome = "available"
	OutcomeRateLimited Outcome = "rate-limited"
	OutcomeFailed      Outcome = "failed"
	OutcomeError       Outcome = "error"
	OutcomeUnknownCode Outcome = "unknown-code"
)

// classify maps a mirror status code to an Outcome.
func classify(status int) Outcome {
	switch status {
	case http.StatusOK:
		return OutcomeAvailable
	case http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeFailed
	}
}

type ProbeResult struct {
	Codes    []string `yaml:"codes"`
	Location Location `yaml:"extract"`
	URL      string   `yaml:"url,omitempty"`
	Method   string   `yaml:"method,omitempty"`
	Status   int      `yaml:"status,omitempty"`
	Outcome  Outcome  `yaml:"outcome"`
	Err      error    `yaml:"-"`
}

// ProbeReport accumulates probe results. Every result that is not
// OutcomeAvailable also lands in the problem lists.
type ProbeReport struct {
	Results          []ProbeResult `yaml:"results"`
	ProblemURLs      []string      `yaml:"problem_urls"`
	ProblemCodes     []string      `yaml:"problem_codes"`
	ProblemLocations []Location    `yaml:"problem_locations"`

	errs *multierror.Error
}

func (r *ProbeReport) record(res ProbeResult) {
	r.Results = append(r.Results, res)
	if res.Outcome == OutcomeAvailable {
		return
	}

	if res.URL != "" && !contains(r.ProblemURLs, res.URL) {
		r.ProblemURLs = append(r.ProblemURLs, res.URL)
		r.ProblemLocations = append(r.ProblemLocations, res.Location)
	}
	for _, code := range res.Codes {
		if !contains(r.ProblemCodes, code) {
			r.ProblemCodes = append(r.ProblemCodes, code)
		}
	}

	err := res.Err
	if err == nil {
		err = fmt.Errorf("%s %s : %s", res.Method, res.URL, res.Outcome)
	}
	r.errs = multierror.Append(r.errs, err)
}

// HasProblems reports whether any probe did not return 200.
func (r *ProbeReport) HasProblems() bool {
	return len(r.ProblemCodes) > 0 || r.errs.ErrorOrNil() != nil
}

// Err aggregates every problem into one error, or returns nil.
func (r *ProbeReport) Err() error {
	return r.errs.ErrorOrNil()
}

// Prober checks extract availability on the mirror, one request at a time,
// pausing a fixed delay before each request. There is no retry: a 429 is
// reported and the caller is expected to raise the delay.
type Prober struct {
	client    *http.Client
	locator   *Locator
	delay     time.Duration
	methods   []string
	userAgent string
	logger    *slog.Logger

	wait func(ctx context.Context, d time.Duration) error
}

type ProberOption func(*Prober)

func WithDelay(d time.Duration) ProberOption {
	return func(p *Prober) { p.delay = d }
}

func WithMethods(methods ...string) ProberOption {
	return func(p *Prober) {
		p.methods = p.methods[:0]
		for _, m := range methods {
			p.methods = append(p.methods, strings.ToUpper(m))
		}
	}
}

func WithUserAgent(ua string) ProberOption {
	return func(p *Prober) { p.userAgent = ua }
}

func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) { p.client = c }
}

func WithLogger(l *slog.Logger) ProberOption {
	return func(p *Prober) { p.logger = l }
}

func NewProber(locator *Locator, opts ...ProberOption) *Prober {
	p := &Prober{
		client:  http.DefaultClient,
		locator: locator,
		delay:   time.Second,
		methods: []string{http.MethodHead, http.MethodGet},
		logger:  slog.Default(),
		wait:    sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe checks the extract covering a single code.
func (p *Prober) Probe(ctx context.Context, code string) ([]ProbeResult, error) {
	t, err := p.locator.Locate(code)
	if err != nil {
		return nil, err
	}
	return p.ProbeTarget(ctx, t)
}

// ProbeTarget issues one request per configured method. It stops early only
// when ctx is done.
func (p *Prober) ProbeTarget(ctx context.Context, t Target) ([]ProbeResult, error) {
	results := make([]ProbeResult, 0, len(p.methods))
	for _, method := range p.methods {
		if err := p.wait(ctx, p.delay); err != nil {
			return results, err
		}

		res := ProbeResult{Codes: t.Codes, Location: t.Location, URL: t.URL, Method: method}
		status, err := p.do(ctx, method, t.URL)
		switch {
		case err != nil && ctx.Err() != nil:
			return results, ctx.Err()
		case err != nil:
			res.Outcome = OutcomeError
			res.Err = fmt.Errorf("%s %s : %w", method, t.URL, err)
			p.logger.Error("probe failed", "method", method, "url", t.URL, "err", err)
		default:
			res.Status = status
			res.Outcome = classify(status)
			p.logResult(res)
		}
		if res.Outcome == OutcomeRateLimited {
			res.Err = fmt.Errorf("%s %s : %w", method, t.URL, ErrRateLimited)
		} else if res.Outcome == OutcomeFailed {
			res.Err = &StatusError{URL: t.URL, Status: status}
		}
		results = append(results, res)
	}
	return results, nil
}

// ProbeAll probes every distinct extract covering codes, sequentially.
// Unknown codes are reported as problems rather than aborting the run.
func (p *Prober) ProbeAll(ctx context.Context, codes []string) *ProbeReport {
	report := &ProbeReport{}

	targets, unknown := p.locator.UniqueTargets(codes)
	for _, code := range unknown {
		p.logger.Warn("no extract for code", "code", code)
		report.record(ProbeResult{
			Codes:   []string{code},
			Outcome: OutcomeUnknownCode,
			Err:     fmt.Errorf("%q : %w", code, ErrUnknownCode),
		})
	}

	for _, t := range targets {
		results, err := p.ProbeTarget(ctx, t)
		for _, res := range results {
			report.record(res)
		}
		if err != nil {
			report.errs = multierror.Append(report.errs, err)
			break
		}
	}
	return report
}

func (p *Prober) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	// The body of a GET is an entire extract, only the status is of interest.
	resp.Body.Close()

	return resp.StatusCode, nil
}

func (p *Prober) logResult(res ProbeResult) {
	attrs := []any{"method", res.Method, "url", res.URL, "status", res.Status}
	switch res.Outcome {
	case OutcomeAvailable:
		p.logger.Info("extract available", attrs...)
	case OutcomeRateLimited:
		p.logger.Warn("rate limited by mirror, increase --delay", attrs...)
	default:
		p.logger.Error("extract unavailable", attrs...)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func contains(s []string, e string) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}

// isRateLimited reports whether err came from a 429 response.
func isRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
