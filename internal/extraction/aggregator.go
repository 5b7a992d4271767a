package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pdftext/internal/logger"
)

const (
	// DefaultWorkers is the number of pages processed at once.
	DefaultWorkers = 4

	// DefaultAIConcurrency caps simultaneous hosted-model calls.
	DefaultAIConcurrency = 2
)

// Unit is one page or image awaiting extraction.
type Unit struct {
	// Index is the 1-based position of the unit in its document.
	Index int

	// Direct is the text-layer outcome. Images have none.
	Direct Outcome

	// Render produces the page image for OCR and AI backends. Nil when the
	// unit cannot be rendered.
	Render func(ctx context.Context) (Image, error)
}

// Document supplies units for an extraction pass.
type Document interface {
	// Name labels the document in reports and logs.
	Name() string

	// Units returns the pages in document order. An error means the document
	// could not be opened or parsed at all.
	Units(ctx context.Context) ([]Unit, error)

	// Rasterizable returns nil when Unit.Render can be used, or the reason
	// page images cannot be produced.
	Rasterizable() error

	// Warnings returns non-fatal conditions found while building units.
	Warnings() []error
}

// AlignPages pads text-layer outcomes so that every rendered page has one.
// A non-nil error reports the mismatch; the padded slice is always usable.
func AlignPages(direct []Outcome, rendered int) ([]Outcome, error) {
	if len(direct) == rendered || rendered <= 0 {
		return direct, nil
	}
	n := max(len(direct), rendered)
	out := make([]Outcome, n)
	copy(out, direct)
	for i := len(direct); i < n; i++ {
		out[i] = Outcome{Status: StatusEmpty}
	}
	return out, &ExtractionError{
		Op:  "AlignPages",
		Err: fmt.Errorf("%w: text layer has %d pages, renderer has %d", ErrPageCountMismatch, len(direct), rendered),
	}
}

// Options configures an Aggregator.
type Options struct {
	// Strategy picks the text of each page. Defaults to AIPreferred.
	Strategy Strategy

	// OCR and AI are optional backends; nil disables the method.
	OCR Backend
	AI  Backend

	// Workers bounds the number of pages processed concurrently.
	Workers int

	// AIConcurrency bounds simultaneous calls to the AI backend.
	AIConcurrency int

	// CallTimeout bounds each backend call. Zero means no limit.
	CallTimeout time.Duration

	// Notices are operator-facing conditions found while building backends
	// (missing credentials, missing engines). They are copied into every
	// report.
	Notices []error

	// OnPage is called after each page completes, serialized.
	OnPage func(page PageResult, done, total int)
}

// Aggregator runs backends and the reconciler over every page of a document.
type Aggregator struct {
	strategy    Strategy
	ocr         Backend
	ai          Backend
	workers     int
	aiSem       *semaphore.Weighted
	callTimeout time.Duration
	notices     []error
	onPage      func(PageResult, int, int)
	log         zerolog.Logger
}

// NewAggregator creates an Aggregator from opts, applying defaults.
func NewAggregator(opts Options) *Aggregator {
	if opts.Strategy == nil {
		opts.Strategy = AIPreferred{Fallback: DefaultFallbackText}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.AIConcurrency <= 0 {
		opts.AIConcurrency = DefaultAIConcurrency
	}

	return &Aggregator{
		strategy:    opts.Strategy,
		ocr:         opts.OCR,
		ai:          opts.AI,
		workers:     opts.Workers,
		aiSem:       semaphore.NewWeighted(int64(opts.AIConcurrency)),
		callTimeout: opts.CallTimeout,
		notices:     opts.Notices,
		onPage:      opts.OnPage,
		log:         logger.WithComponent("aggregator"),
	}
}

// Run extracts every page of doc. It returns an error only when the document
// itself is unreadable (with an empty report) or ctx ends before all pages
// finish (with every page resolved from whatever completed).
func (a *Aggregator) Run(ctx context.Context, doc Document) (*Report, error) {
	const op = "Run"

	report := &Report{
		ID:        uuid.NewString(),
		Source:    doc.Name(),
		Strategy:  a.strategy.Name(),
		StartedAt: time.Now(),
	}
	log := logger.WithRunID("aggregator", report.ID).With().Str("source", report.Source).Logger()

	units, err := doc.Units(ctx)
	if err != nil {
		report.Duration = time.Since(report.StartedAt)
		log.Error().Err(err).Msg("Document could not be read")
		return report, Unreadable(op, err)
	}

	report.Warnings = append(report.Warnings, a.notices...)
	report.Warnings = append(report.Warnings, doc.Warnings()...)

	rasterize := a.ocr != nil || a.ai != nil
	if rasterize {
		if rerr := doc.Rasterizable(); rerr != nil {
			rasterize = false
			w := Unavailable("rasterizer", rerr)
			report.Warnings = append(report.Warnings, w)
			log.Warn().Err(w).Msg("Page images unavailable, using text layer only")
		}
	}

	log.Info().
		Int("pages", len(units)).
		Bool("rasterize", rasterize).
		Bool("ocr", a.ocr != nil).
		Bool("ai", a.ai != nil).
		Int("workers", a.workers).
		Str("strategy", a.strategy.Name()).
		Msg("Starting extraction")

	pages := make([]PageResult, len(units))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(a.workers)

	for i, u := range units {
		g.Go(func() error {
			// Each goroutine owns pages[i]; order is fixed by the slot.
			pages[i] = a.processUnit(ctx, u, rasterize)

			mu.Lock()
			defer mu.Unlock()
			done++
			if a.onPage != nil {
				a.onPage(pages[i], done, len(units))
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Pages = pages
	report.Duration = time.Since(report.StartedAt)

	counts := report.SourceCounts()
	log.Info().
		Int("pages", len(pages)).
		Int("direct", counts[SourceDirect]).
		Int("ocr", counts[SourceOCR]).
		Int("ai", counts[SourceAI]).
		Int("none", counts[SourceNone]).
		Int("warnings", len(report.Warnings)).
		Dur("duration", report.Duration).
		Msg("Extraction completed")

	if err := ctx.Err(); err != nil {
		return report, WrapExtractionError(op, err)
	}
	return report, nil
}

// processUnit runs the backends for one unit and reconciles their output.
func (a *Aggregator) processUnit(ctx context.Context, u Unit, rasterize bool) PageResult {
	start := time.Now()
	res := PageResult{PageIndex: u.Index, Direct: u.Direct}

	if rasterize && u.Render != nil {
		img, err := a.render(ctx, u)
		if err != nil {
			if a.ocr != nil {
				res.OCR = FailedOutcome(err)
			}
			if a.ai != nil {
				res.AI = FailedOutcome(err)
			}
		} else {
			if a.ocr != nil {
				res.OCR = a.call(ctx, a.ocr, img, nil)
			}
			if a.ai != nil {
				res.AI = a.call(ctx, a.ai, img, a.aiSem)
			}
		}
	}

	d := a.strategy.Reconcile(res.Candidates())
	res.ChosenText = d.Text
	res.ChosenSource = d.Source
	res.Duration = time.Since(start)

	ev := a.log.Debug()
	if res.ChosenSource == SourceNone {
		ev = a.log.Warn()
	}
	ev.Int("page", res.PageIndex).
		Str("direct", res.Direct.Status.String()).
		Str("ocr", res.OCR.Status.String()).
		Str("ai", res.AI.Status.String()).
		Str("chosen", res.ChosenSource.String()).
		Int("chars", len(res.ChosenText)).
		Dur("duration", res.Duration).
		Msg("Page reconciled")

	return res
}

// render produces the page image, converting failures and panics into
// ExtractionErrors.
func (a *Aggregator) render(ctx context.Context, u Unit) (img Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExtractionError{Op: "Render", Page: u.Index, Err: fmt.Errorf("%w: panic: %v", ErrBackendCallFailed, r)}
		}
	}()

	img, err = u.Render(ctx)
	if err != nil {
		return Image{}, &ExtractionError{Op: "Render", Page: u.Index, Err: fmt.Errorf("%w: %w", ErrBackendCallFailed, err)}
	}
	if img.Page == 0 {
		img.Page = u.Index
	}
	return img, nil
}

// call invokes one backend with the configured timeout. Panics and errors
// become failed outcomes; they never reach the caller.
func (a *Aggregator) call(ctx context.Context, b Backend, img Image, sem *semaphore.Weighted) (out Outcome) {
	name := b.Name()

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return FailedOutcome(NewBackendError(name, img.Page, err))
		}
		defer sem.Release(1)
	}

	callCtx := ctx
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			out = FailedOutcome(NewBackendError(name, img.Page, fmt.Errorf("panic: %v", r)))
		}
	}()

	out = b.Extract(callCtx, img)
	if out.Status != StatusFailed {
		return out
	}

	cause := out.Err
	if cause == nil {
		cause = errors.New("backend reported failure without detail")
	}
	switch {
	case errors.Is(cause, ErrTimeout), errors.Is(cause, ErrBackendCallFailed):
		// already classified by the backend
	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(cause, context.DeadlineExceeded):
		cause = NewBackendError(name, img.Page, fmt.Errorf("%w: %w", context.DeadlineExceeded, cause))
	default:
		cause = NewBackendError(name, img.Page, cause)
	}

	a.log.Warn().
		Err(cause).
		Str("backend", name).
		Int("page", img.Page).
		Msg("Backend call failed, page degraded")

	return FailedOutcome(cause)
}
