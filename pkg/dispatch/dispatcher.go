package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mirel/lanes/internal/metrics"
	"github.com/mirel/lanes/internal/tracing"
)

const (
	// DefaultCallTimeout bounds a single call unless the tool overrides it.
	DefaultCallTimeout = 10 * time.Second

	// DefaultBatchTimeout bounds the concurrent and isolated lanes together.
	DefaultBatchTimeout = 60 * time.Second

	// DefaultPoolSize is the number of isolated-lane workers.
	DefaultPoolSize = 4
)

// errBatchDeadline is the cancellation cause for the shared batch deadline,
// distinguishing it from per-call timeouts.
var errBatchDeadline = errors.New("batch deadline exceeded")

// ArgumentRedactor masks secret-shaped values in a tool argument map
// before the map is logged. *logger.Redactor implements it.
type ArgumentRedactor interface {
	RedactArgs(args map[string]interface{}) map[string]interface{}
}

// Options configures a Dispatcher.
type Options struct {
	CallTimeout  time.Duration
	BatchTimeout time.Duration
	PoolSize     int
	Logger       zerolog.Logger
	Recorder     Recorder
	Metrics      *metrics.Metrics
	Redactor     ArgumentRedactor
}

// Settings are the execution knobs that may be retuned at runtime, e.g.
// from a config reload. Zero values keep the current setting.
type Settings struct {
	CallTimeout  time.Duration
	BatchTimeout time.Duration
	PoolSize     int
}

// Dispatcher drives tool-call batches through the three lanes. It is safe
// for concurrent use; each Execute call owns its batch exclusively.
type Dispatcher struct {
	resolver Resolver
	recorder Recorder
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	redactor ArgumentRedactor

	callTimeout  time.Duration
	batchTimeout time.Duration
	poolSize     int
	mu           sync.RWMutex
}

// NewDispatcher creates a dispatcher for the given tool resolver.
func NewDispatcher(resolver Resolver, opts Options) (*Dispatcher, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	// Zero means "use the default"; only negative sizes are rejected.
	if opts.PoolSize < 0 {
		return nil, fmt.Errorf("pool size must not be negative, got %d", opts.PoolSize)
	}

	d := &Dispatcher{
		resolver:     resolver,
		recorder:     opts.Recorder,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		redactor:     opts.Redactor,
		callTimeout:  opts.CallTimeout,
		batchTimeout: opts.BatchTimeout,
		poolSize:     opts.PoolSize,
	}
	if d.callTimeout <= 0 {
		d.callTimeout = DefaultCallTimeout
	}
	if d.batchTimeout <= 0 {
		d.batchTimeout = DefaultBatchTimeout
	}
	if d.poolSize == 0 {
		d.poolSize = DefaultPoolSize
	}

	d.logger.Info().
		Dur("call_timeout", d.callTimeout).
		Dur("batch_timeout", d.batchTimeout).
		Int("pool_size", d.poolSize).
		Msg("Dispatcher initialized")

	return d, nil
}

// Reconfigure applies new execution settings. Zero values keep the current
// value. Each setting takes effect when next read: the batch timeout at
// Execute entry, the pool size when an isolated lane starts, and the call
// timeout per call — so later calls of an in-flight batch pick up a new
// call timeout.
func (d *Dispatcher) Reconfigure(s Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.CallTimeout > 0 {
		d.callTimeout = s.CallTimeout
	}
	if s.BatchTimeout > 0 {
		d.batchTimeout = s.BatchTimeout
	}
	if s.PoolSize > 0 {
		d.poolSize = s.PoolSize
	}

	d.logger.Info().
		Dur("call_timeout", d.callTimeout).
		Dur("batch_timeout", d.batchTimeout).
		Int("pool_size", d.poolSize).
		Msg("Dispatcher reconfigured")
}

func (d *Dispatcher) callTimeoutValue() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.callTimeout
}

func (d *Dispatcher) batchTimeoutValue() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.batchTimeout
}

func (d *Dispatcher) poolSizeValue() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.poolSize
}

// Execute runs one batch and returns its outcomes. Either every invocation
// succeeded and the outcome IDs match the batch IDs exactly, or a single
// error naming every failed, timed-out, or cancelled call is returned.
func (d *Dispatcher) Execute(ctx context.Context, batch Batch) ([]Outcome, error) {
	outcomes, _, err := d.ExecuteRecorded(ctx, batch)
	return outcomes, err
}

// ExecuteRecorded is Execute plus the per-invocation dispatch record, for
// callers that want to inspect lane routing and terminal states.
func (d *Dispatcher) ExecuteRecorded(ctx context.Context, batch Batch) ([]Outcome, *Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.WithBatchID(ctx, batch.ID)
	ctx, span := tracing.StartSpan(
		ctx,
		"lanes.dispatch",
		"batch.execute",
		attribute.String("batch_id", batch.ID),
		attribute.Int("batch_calls", len(batch.Invocations)),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, d.logger)

	start := time.Now()
	rec := newRecord(batch)

	finish := func(status string, outcomes []Outcome, err error) ([]Outcome, *Record, error) {
		duration := time.Since(start)
		d.observeBatch(status, duration)
		d.recordBatch(ctx, rec, start, duration, status, logger)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, rec, err
		}
		span.SetStatus(codes.Ok, "")
		return outcomes, rec, nil
	}

	if err := batch.validate(); err != nil {
		logger.Error().Err(err).Msg("Batch rejected")
		return finish("aborted", nil, err)
	}
	if len(batch.Invocations) == 0 {
		return finish("ok", []Outcome{}, nil)
	}

	cls, err := classifyBatch(batch, d.resolver, rec)
	if err != nil {
		logger.Error().Err(err).Msg("Batch classification failed")
		return finish("aborted", nil, err)
	}

	logger.Info().
		Int("inline", len(cls.inline)).
		Int("concurrent", len(cls.concurrent)).
		Int("isolated", len(cls.isolated)).
		Msg("Batch classified")

	// Inline lane runs to completion first: cheap calls never wait behind
	// or race against expensive ones. Its failure aborts the batch before
	// any concurrent or isolated work starts.
	merged, err := d.runInline(ctx, cls.inline, rec)
	if err != nil {
		logger.Error().Err(err).Msg("Inline lane failed, batch aborted")
		return finish("failed", nil, err)
	}

	batchTimeout := d.batchTimeoutValue()
	batchCtx, cancelBatch := context.WithTimeoutCause(ctx, batchTimeout, errBatchDeadline)
	defer cancelBatch()

	type laneResult struct {
		outcomes []Outcome
		err      error
	}
	laneCh := make(chan laneResult, 2)
	launched := 0

	if len(cls.concurrent) > 0 {
		launched++
		go func() {
			outcomes, laneErr := d.runConcurrent(batchCtx, cls.concurrent, rec)
			laneCh <- laneResult{outcomes: outcomes, err: laneErr}
		}()
	}
	if len(cls.isolated) > 0 {
		launched++
		go func() {
			outcomes, laneErr := d.runIsolated(batchCtx, cls.isolated, rec)
			laneCh <- laneResult{outcomes: outcomes, err: laneErr}
		}()
	}

	// Both lanes unwind promptly once batchCtx expires, because every
	// child context derives from it. Joining here keeps the concurrency
	// structured: no lane outlives Execute.
	var laneFailures []*CallError
	for i := 0; i < launched; i++ {
		res := <-laneCh
		if res.err != nil {
			var agg *AggregateError
			if errors.As(res.err, &agg) {
				laneFailures = append(laneFailures, agg.Failures...)
				continue
			}
			return finish("failed", nil, res.err)
		}
		merged = append(merged, res.outcomes...)
	}

	// Deadline expiry wins the report: name every call that did not run to
	// its own completion.
	if errors.Is(context.Cause(batchCtx), errBatchDeadline) {
		if pending := rec.unfinished(); len(pending) > 0 {
			logger.Error().
				Dur("deadline", batchTimeout).
				Int("pending", len(pending)).
				Msg("Batch deadline elapsed with work pending")
			return finish("timeout", nil, &BatchTimeoutError{Deadline: batchTimeout, Pending: pending})
		}
	}

	if len(laneFailures) > 0 {
		return finish("failed", nil, &AggregateError{Failures: laneFailures})
	}

	if err := verifyCorrelation(batch, merged); err != nil {
		logger.Error().Err(err).Msg("Outcome correlation check failed")
		return finish("failed", nil, err)
	}

	logger.Info().
		Int("outcomes", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("Batch completed")

	return finish("ok", merged, nil)
}

// verifyCorrelation checks the outcome/invocation bijection: same count,
// same ID set, no duplicates, no foreign IDs.
func verifyCorrelation(batch Batch, outcomes []Outcome) error {
	if len(outcomes) != len(batch.Invocations) {
		return fmt.Errorf("%w: %d invocation(s), %d outcome(s)",
			ErrOutcomeCorrelation, len(batch.Invocations), len(outcomes))
	}

	want := make(map[string]struct{}, len(batch.Invocations))
	for _, inv := range batch.Invocations {
		want[inv.ID] = struct{}{}
	}
	for _, o := range outcomes {
		if _, ok := want[o.ID]; !ok {
			return fmt.Errorf("%w: unexpected or duplicated outcome id %q", ErrOutcomeCorrelation, o.ID)
		}
		delete(want, o.ID)
	}

	return nil
}

// recordBatch hands the finished batch to the recorder, if any. Recording
// is best-effort and never fails a batch. The parent context may already be
// cancelled by the deadline, so cancellation is stripped.
func (d *Dispatcher) recordBatch(ctx context.Context, rec *Record, startedAt time.Time, duration time.Duration, status string, logger zerolog.Logger) {
	if d.recorder == nil {
		return
	}

	record := BatchRecord{
		BatchID:   rec.batchID,
		StartedAt: startedAt,
		Duration:  duration,
		Status:    status,
		Calls:     rec.calls(),
	}
	if err := d.recorder.RecordBatch(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn().Err(err).Msg("Failed to record batch")
	}
}

func (d *Dispatcher) observeCall(tool string, lane Lane, status string, duration time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.CallsTotal.WithLabelValues(tool, string(lane), status).Inc()
	d.metrics.CallDuration.WithLabelValues(tool, string(lane)).Observe(duration.Seconds())
}

func (d *Dispatcher) observeBatch(status string, duration time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.BatchesTotal.WithLabelValues(status).Inc()
	d.metrics.BatchDuration.Observe(duration.Seconds())
}

// redactArgs masks secret-shaped argument values when a redactor is
// configured. Raw arguments are never handed to the logger directly.
func (d *Dispatcher) redactArgs(args map[string]interface{}) map[string]interface{} {
	if d.redactor == nil {
		return args
	}
	return d.redactor.RedactArgs(args)
}

func (d *Dispatcher) poolBusy(delta float64) {
	if d.metrics == nil {
		return
	}
	d.metrics.PoolBusyWorkers.Add(delta)
}
