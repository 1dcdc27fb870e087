// Package steps runs a test case as named, sequential steps. The first failing
// step aborts the rest; failures are captured as screenshots and the run is
// published as a report when an artifact store is configured.
package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/kuitang/flightprobe/internal/artifacts"
	"github.com/kuitang/flightprobe/internal/errs"
	"github.com/kuitang/flightprobe/internal/logutil"
	"github.com/kuitang/flightprobe/internal/obs"
	"github.com/kuitang/flightprobe/internal/report"
	"github.com/kuitang/flightprobe/internal/uidriver"
)

// maxMessageChars bounds the error text kept in the report.
const maxMessageChars = 500

// Runner records the steps of one test case. It is not safe for concurrent use.
type Runner struct {
	page  uidriver.Page
	store *artifacts.Store
	now   func() time.Time

	run    report.Run
	failed error
}

// New starts a run for testCase. store may be nil, which disables uploads.
func New(page uidriver.Page, store *artifacts.Store, testCase string) *Runner {
	r := &Runner{page: page, store: store, now: time.Now}
	r.run = report.Run{ID: obs.NewRunID(), TestCase: testCase, Started: r.now()}
	return r
}

// Context returns ctx with the run's correlation fields attached.
func (r *Runner) Context(ctx context.Context) context.Context {
	return obs.WithRun(ctx, r.run.ID, r.run.TestCase)
}

// ID returns the run identifier.
func (r *Runner) ID() string { return r.run.ID }

// Err returns the error of the first failed step, or nil.
func (r *Runner) Err() error { return r.failed }

// Run returns a copy of the recorded run.
func (r *Runner) Run() report.Run {
	out := r.run
	out.Results = append([]report.Result(nil), r.run.Results...)
	return out
}

// Step runs fn as the named step. After a failure every later step is
// recorded as skipped and returns a FailedPrecondition error without running.
func (r *Runner) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx = obs.WithStep(r.Context(ctx), name)
	logger := obs.From(ctx).With("pkg", "steps")

	if r.failed != nil {
		err := errs.Wrap(errs.FailedPrecondition, fmt.Sprintf("step %q skipped after an earlier failure", name), r.failed)
		r.run.Results = append(r.run.Results, report.Result{
			Name:    name,
			Status:  report.StatusSkipped,
			Code:    errs.FailedPrecondition,
			Message: "skipped after an earlier failure",
		})
		logger.Info("step skipped")
		return err
	}

	logger.Info("step started")
	start := r.now()
	err := fn(ctx)
	res := report.Result{Name: name, Status: report.StatusPassed, Duration: r.now().Sub(start)}
	if err == nil {
		r.run.Results = append(r.run.Results, res)
		logger.Info("step passed", "duration_ms", res.Duration.Milliseconds())
		return nil
	}

	r.failed = err
	res.Status = report.StatusFailed
	res.Code = errs.CodeOf(err)
	res.Message = logutil.Truncate(err.Error(), maxMessageChars)
	res.ScreenshotURL = r.captureFailure(ctx, name)
	r.run.Results = append(r.run.Results, res)
	logger.Error("step failed", "duration_ms", res.Duration.Milliseconds(), "code", res.Code, "error", err)
	return err
}

// captureFailure screenshots the page and uploads it, returning the public URL.
// Capture problems are logged and never mask the step's own error.
func (r *Runner) captureFailure(ctx context.Context, name string) string {
	if r.page == nil {
		return ""
	}
	logger := obs.From(ctx).With("pkg", "steps")
	// The step's context may be the one that just expired.
	capCtx := context.WithoutCancel(ctx)

	png, err := r.page.Screenshot(capCtx)
	if err != nil {
		logger.Warn("failure screenshot unavailable", "error", err)
		return ""
	}
	if r.store == nil {
		return ""
	}
	url, err := r.store.PutObject(capCtx, artifacts.ScreenshotKey(r.run.ID, name), png, artifacts.ContentTypePNG)
	if err != nil {
		logger.Warn("failure screenshot upload failed", "error", err)
		return ""
	}
	return url
}

// Finish closes the run and uploads report.html and report.md. It returns the
// public URL of the HTML report, or "" without a store.
func (r *Runner) Finish(ctx context.Context) (string, error) {
	ctx = r.Context(ctx)
	r.run.Finished = r.now()
	logger := obs.From(ctx).With("pkg", "steps")
	logger.Info("run finished", "status", r.run.Status(), "steps", len(r.run.Results))

	if r.store == nil {
		return "", nil
	}
	if _, err := r.store.PutObject(ctx, artifacts.RunKey(r.run.ID, "report.md"), []byte(report.Markdown(r.run)), artifacts.ContentTypeMarkdown); err != nil {
		return "", errs.Wrap(errs.Unavailable, "upload markdown report", err)
	}
	url, err := r.store.PutObject(ctx, artifacts.RunKey(r.run.ID, "report.html"), report.HTML(r.run), artifacts.ContentTypeHTML)
	if err != nil {
		return "", errs.Wrap(errs.Unavailable, "upload html report", err)
	}
	logger.Info("report published", "url", url)
	return url, nil
}
