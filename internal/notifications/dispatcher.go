package notifications

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sanctuaryweb/site/internal/log"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultBatchSize    = 50
	DefaultMaxAttempts  = 5
	DefaultRate         = 5.0

	// maxBackoff caps exponential backoff on consecutive store errors.
	maxBackoff = 5 * time.Minute
)

// Push outcomes reported to DispatcherMetrics.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
)

type pollResult int

const (
	pollIdle       pollResult = iota // nothing pending
	pollDispatched                   // at least one push attempted
	pollStoreError                   // pending pushes could not be read, back off
)

// PushStore is what the Dispatcher needs from Store.
type PushStore interface {
	PendingPushes(ctx context.Context, limit, maxAttempts int) ([]Delivery, error)
	UpdatePushStatus(ctx context.Context, u PushStatusUpdate) error
}

// DispatcherMetrics is implemented by the metrics package.
type DispatcherMetrics interface {
	IncPushOutcome(outcome string)
	ObserveDispatchDuration(seconds float64)
	IncDispatchError(kind string)
}

type DispatcherOptions struct {
	Logger       log.Logger
	Store        PushStore
	Sender       Sender
	PollInterval time.Duration
	BatchSize    int
	// RatePerSecond paces sends across the whole dispatcher.
	RatePerSecond float64
	// MaxAttempts is how many failed sends a push gets before it is marked
	// DONE with only FailedAt set.
	MaxAttempts int
	Metrics     DispatcherMetrics
	Now         func() time.Time
}

// Dispatcher polls for pending pushes and delivers them.
type Dispatcher struct {
	store       PushStore
	sender      Sender
	logger      log.Logger
	metrics     DispatcherMetrics
	interval    time.Duration
	batch       int
	maxAttempts int
	limiter     *rate.Limiter
	now         func() time.Time

	consecutiveErrs int
	// lastPoll is read by the readiness probe from another goroutine.
	lastPoll atomic.Int64

	pollCount      int64
	deliveredCount int64
}

// NewDispatcher creates a dispatcher. Call Run to start the poll loop.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = DefaultRate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	burst := int(math.Ceil(opts.RatePerSecond))
	return &Dispatcher{
		store:       opts.Store,
		sender:      opts.Sender,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		interval:    opts.PollInterval,
		batch:       opts.BatchSize,
		maxAttempts: opts.MaxAttempts,
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst),
		now:         opts.Now,
	}
}

// Run polls until ctx is cancelled.
// Intended to be launched as: go dispatcher.Run(ctx)
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info(ctx, "push dispatcher starting",
		"poll_interval", d.interval.String(),
		"batch_size", d.batch,
		"max_attempts", d.maxAttempts,
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info(ctx, "push dispatcher stopping",
				"reason", ctx.Err(),
				"polls", d.pollCount,
				"delivered", d.deliveredCount,
			)
			return ctx.Err()
		case <-ticker.C:
			result := d.dispatchOnce(ctx)

			if result == pollStoreError {
				d.consecutiveErrs++
				backoff := d.backoffDuration()
				d.logger.Warn(ctx, "push dispatcher: backing off",
					"consecutive_errors", d.consecutiveErrs,
					"next_poll_in", backoff.String(),
				)
				ticker.Reset(backoff)
			} else if d.consecutiveErrs > 0 {
				d.logger.Info(ctx, "push dispatcher: recovered, resuming normal interval",
					"had_consecutive_errors", d.consecutiveErrs,
				)
				d.consecutiveErrs = 0
				ticker.Reset(d.interval)
			}
		}
	}
}

// LastPoll reports when the dispatcher last polled, zero before the first
// poll.
func (d *Dispatcher) LastPoll() time.Time {
	ns := d.lastPoll.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// dispatchOnce sends one batch of pending pushes and reports what happened
// so Run can adjust timing.
func (d *Dispatcher) dispatchOnce(ctx context.Context) pollResult {
	d.pollCount++
	d.lastPoll.Store(d.now().UnixNano())
	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.ObserveDispatchDuration(time.Since(start).Seconds())
		}
	}()

	pending, err := d.store.PendingPushes(ctx, d.batch, d.maxAttempts)
	if err != nil {
		d.logger.Error(ctx, err, "push dispatcher: reading pending pushes failed")
		d.incError("store")
		return pollStoreError
	}
	if len(pending) == 0 {
		return pollIdle
	}

	for _, p := range pending {
		if err := d.limiter.Wait(ctx); err != nil {
			// ctx cancelled mid-batch; the rest stay PENDING
			return pollDispatched
		}
		d.deliver(ctx, p)
	}
	return pollDispatched
}

func (d *Dispatcher) deliver(ctx context.Context, p Delivery) {
	sendErr := d.send(ctx, p)
	now := d.now()

	u := PushStatusUpdate{
		NotificationID: p.Push.NotificationID,
		SubscriptionID: p.Push.SubscriptionID,
		CountAttempt:   true,
	}
	var outcome string
	switch {
	case sendErr == nil:
		u.ProcessingStatus, u.DeliveredAt = StatusDone, &now
		outcome = OutcomeDelivered
	case errors.Is(sendErr, ErrGone) || p.Push.Attempts+1 >= d.maxAttempts:
		u.ProcessingStatus, u.FailedAt = StatusDone, &now
		outcome = OutcomeFailed
	default:
		u.ProcessingStatus, u.FailedAt = StatusPending, &now
		outcome = OutcomeRetry
	}

	if sendErr != nil {
		d.logger.Warn(ctx, "push dispatcher: delivery failed",
			"notification_id", p.Push.NotificationID,
			"subscription_id", p.Push.SubscriptionID,
			"attempt", p.Push.Attempts+1,
			"outcome", outcome,
			"error", sendErr,
		)
	}

	if err := d.store.UpdatePushStatus(ctx, u); err != nil {
		d.logger.Error(ctx, err, "push dispatcher: recording push status failed",
			"notification_id", p.Push.NotificationID,
			"subscription_id", p.Push.SubscriptionID,
		)
		d.incError("update")
		return
	}
	if outcome == OutcomeDelivered {
		d.deliveredCount++
	}
	if d.metrics != nil {
		d.metrics.IncPushOutcome(outcome)
	}
}

// send calls the Sender, converting a panic into an error so one bad
// delivery does not stop the loop.
func (d *Dispatcher) send(ctx context.Context, p Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return d.sender.Send(ctx, p)
}

func (d *Dispatcher) incError(kind string) {
	if d.metrics != nil {
		d.metrics.IncDispatchError(kind)
	}
}

// backoffDuration computes exponential backoff capped at maxBackoff.
// consecutiveErrs=1 → 2x interval, =2 → 4x, =3 → 8x, etc.
func (d *Dispatcher) backoffDuration() time.Duration {
	mult := math.Pow(2, float64(d.consecutiveErrs))
	b := time.Duration(float64(d.interval) * mult)
	if b > maxBackoff {
		b = maxBackoff
	}
	return b
}
