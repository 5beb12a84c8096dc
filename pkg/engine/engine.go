// Package engine is the one-shot data job: it refreshes the market reference
// prices and rebuilds the inflation projection from the latest REM workbook.
package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/MaxiNavarro97/proyectAR/pkg/config"
	"github.com/MaxiNavarro97/proyectAR/pkg/market"
	"github.com/MaxiNavarro97/proyectAR/pkg/models"
	"github.com/MaxiNavarro97/proyectAR/pkg/projection"
	"github.com/MaxiNavarro97/proyectAR/pkg/rem"
	"github.com/MaxiNavarro97/proyectAR/pkg/sink"
	"github.com/MaxiNavarro97/proyectAR/pkg/survey"
)

// ErrEmptyProjection is returned when the survey yields no monthly estimates.
// The previously published series is left untouched.
var ErrEmptyProjection = errors.New("engine: projection is empty")

// Reporter receives failures that should reach an error tracker.
type Reporter interface {
	CaptureError(err error, tags map[string]string)
}

type nopReporter struct{}

func (nopReporter) CaptureError(error, map[string]string) {}

// Deps overrides the collaborators built from the configuration. Zero values
// select the defaults.
type Deps struct {
	// REMHTTP talks to the BCRA site.
	REMHTTP *http.Client
	// MarketHTTP talks to the price APIs.
	MarketHTTP *http.Client
	Reporter   Reporter
}

type Engine struct {
	cfg      *config.Config
	rem      *rem.Client
	market   *market.Client
	survey   *survey.Reader
	builder  *projection.Builder
	reporter Reporter
	logger   *log.Logger
}

// Summary describes what a Run produced.
type Summary struct {
	Market    models.MarketStatus
	MarketErr error

	// Fresh is false when the REM step fell back to the local workbook.
	Fresh  bool
	Months int
	Known  int
	REMErr error

	Elapsed time.Duration
}

// Err joins the failures of both steps.
func (s Summary) Err() error {
	return errors.Join(s.MarketErr, s.REMErr)
}

// NewHTTPClient returns a client with the configured timeout. insecure skips
// certificate verification.
func NewHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func New(cfg *config.Config, deps Deps, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if deps.REMHTTP == nil {
		deps.REMHTTP = NewHTTPClient(cfg.HTTP.Timeout, cfg.REM.InsecureTLS)
	}
	if deps.MarketHTTP == nil {
		deps.MarketHTTP = NewHTTPClient(cfg.HTTP.Timeout, false)
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}

	return &Engine{
		cfg: cfg,
		rem: rem.New(deps.REMHTTP, rem.Config{
			PageURL:    cfg.REM.PageURL,
			BaseURL:    cfg.REM.BaseURL,
			LinkMarker: cfg.REM.LinkMarker,
			UserAgent:  cfg.HTTP.UserAgent,
		}, logger.WithPrefix("rem")),
		market: market.New(deps.MarketHTTP, market.Config{
			DolarURL: cfg.Market.DolarURL,
			UVAURL:   cfg.Market.UVAURL,
		}, logger.WithPrefix("market")),
		survey: survey.New(logger.WithPrefix("survey"), survey.Options{
			Sheet:   cfg.REM.Sheet,
			MaxRows: cfg.REM.MaxRows,
		}),
		builder:  projection.New(logger.WithPrefix("projection")),
		reporter: deps.Reporter,
		logger:   logger,
	}
}

// Run executes both steps concurrently. Neither step cancels the other; their
// errors are collected in the Summary.
func (e *Engine) Run(ctx context.Context) Summary {
	start := time.Now()
	var s Summary

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Market, s.MarketErr = e.RefreshMarket(ctx)
		return nil
	})
	g.Go(func() error {
		s.Fresh, s.Months, s.Known, s.REMErr = e.refreshProjection(ctx)
		return nil
	})
	_ = g.Wait()

	if s.MarketErr != nil {
		e.logger.Error("market refresh failed", "error", s.MarketErr)
		e.reporter.CaptureError(s.MarketErr, map[string]string{"step": "market"})
	}
	if s.REMErr != nil {
		e.logger.Error("projection refresh failed", "error", s.REMErr)
		e.reporter.CaptureError(s.REMErr, map[string]string{"step": "rem"})
	}

	s.Elapsed = time.Since(start)
	e.logger.Info("data engine finished", "months", s.Months, "fresh", s.Fresh, "elapsed", s.Elapsed)
	return s
}

// RefreshMarket fetches the reference prices and writes whatever was obtained.
// The file is written even on a partial failure so the front end keeps a
// timestamp of the last attempt.
func (e *Engine) RefreshMarket(ctx context.Context) (models.MarketStatus, error) {
	status, fetchErr := e.market.Fetch(ctx)
	if err := market.Save(e.cfg.MarketPath(), status); err != nil {
		return status, errors.Join(fetchErr, fmt.Errorf("failed to save market status: %w", err))
	}
	e.logger.Info("market status saved", "path", e.cfg.MarketPath())
	return status, fetchErr
}

// Project reads the survey at path and builds its projection.
func (e *Engine) Project(path string) (models.Series, error) {
	rows, err := e.survey.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("survey rows read", "path", path, "rows", len(rows))
	return e.builder.Build(rows), nil
}

func (e *Engine) refreshProjection(ctx context.Context) (fresh bool, months, known int, err error) {
	raw := e.cfg.RawPath()
	fresh, err = e.rem.Download(ctx, raw)
	if err != nil {
		return false, 0, 0, fmt.Errorf("no REM workbook available: %w", err)
	}

	series, err := e.Project(raw)
	if err != nil {
		return fresh, 0, 0, err
	}
	if len(series) == 0 {
		return fresh, 0, 0, ErrEmptyProjection
	}
	for _, est := range series {
		if est.Source == models.SourceKnown {
			known++
		}
	}

	// The published format follows the file name so Load reads back what we
	// wrote; output.format only governs what the CLI prints.
	out := e.cfg.ProcessedPath()
	if err := sink.Save(out, series, sink.FormatFromPath(out, sink.CSV)); err != nil {
		return fresh, 0, known, fmt.Errorf("failed to save projection: %w", err)
	}
	e.logger.Info("projection saved", "path", out, "months", len(series), "known", known)
	return fresh, len(series), known, nil
}
