package build

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/buildscan/internal/build/classify"
	"github.com/dshills/buildscan/internal/build/report"
	"github.com/dshills/buildscan/internal/build/runner"
	"github.com/dshills/buildscan/internal/build/scrape"
)

// Scan classifies a saved build log. The log is treated as the combined
// output of a build that exited normally; launcher settings are ignored.
// source names the log in the report's BuildCommand element.
func (h *Handler) Scan(ctx context.Context, r io.Reader, source string) (*Result, error) {
	res := &Result{
		RunID: uuid.NewString(),
		Mode:  ModeLogScrape,
		Exit:  runner.Exit{Kind: runner.Normal},
	}
	logger := h.logger.With("run", res.RunID)
	rules := h.Rules()

	var progress *scrape.Progress
	if h.progress != nil {
		progress = scrape.NewProgress(h.progress)
		progress.Begin(false)
	}
	scraper := scrape.New(classify.New(rules, classify.WithLogger(logger)), h.cfg.Scrape,
		scrape.WithProgress(progress), scrape.WithLogger(logger))

	logger.Info("scan starting", "source", source)

	start := time.Now()
	err := runner.Replay(ctx, r, h.cfg.Encoding, scraper.Stream())
	end := time.Now()
	progress.Finish()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", source, err)
	}

	res.Selection = h.logScrape(rules, logger).Aggregate(scraper.State())
	res.Summary = report.SummaryLines(res.Selection, h.cfg.Scrape.MaxErrors, h.cfg.Scrape.MaxWarnings)
	res.Document = &report.Document{
		Command:   source,
		StartTime: start,
		EndTime:   end,
		Selection: res.Selection,
	}

	logger.Info("scan finished",
		"errors", res.Selection.ErrorsFound,
		"warnings", res.Selection.WarningsFound,
		"lines", scraper.State().Lines,
	)
	return res, nil
}
