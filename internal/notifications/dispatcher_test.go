package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sanctuaryweb/site/internal/log"
)

// dispatcher test helpers

type fakePushStore struct {
	mu        sync.Mutex
	pending   []Delivery
	readErr   error
	updateErr error
	updates   []PushStatusUpdate
	reads     int
}

func (f *fakePushStore) PendingPushes(_ context.Context, limit, _ int) ([]Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := f.pending
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePushStore) UpdatePushStatus(_ context.Context, u PushStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, u)
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	errs  map[string]error // by subscription id
	panic bool
	sent  []string
}

func (f *fakeSender) Send(_ context.Context, d Delivery) error {
	if f.panic {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, d.Push.SubscriptionID)
	return f.errs[d.Push.SubscriptionID]
}

type fakeDispatcherMetrics struct {
	outcomes  map[string]int
	errors    map[string]int
	durations int
}

func newFakeDispatcherMetrics() *fakeDispatcherMetrics {
	return &fakeDispatcherMetrics{outcomes: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeDispatcherMetrics) IncPushOutcome(outcome string)  { m.outcomes[outcome]++ }
func (m *fakeDispatcherMetrics) ObserveDispatchDuration(float64) { m.durations++ }
func (m *fakeDispatcherMetrics) IncDispatchError(kind string)   { m.errors[kind]++ }

func pending(subID string, attempts int) Delivery {
	return Delivery{
		Push:         Push{NotificationID: "n1", SubscriptionID: subID, ProcessingStatus: StatusPending, Attempts: attempts},
		Notification: Notification{ID: "n1", Tag: "stream", Title: "Live"},
		Endpoint:     "https://push.example/" + subID,
	}
}

func newTestDispatcher(store PushStore, sender Sender, m DispatcherMetrics) *Dispatcher {
	opts := DispatcherOptions{
		Logger:        log.Nop(),
		Store:         store,
		Sender:        sender,
		PollInterval:  time.Second,
		RatePerSecond: 1000,
		MaxAttempts:   3,
		Now:           func() time.Time { return t0 },
	}
	if m != nil {
		opts.Metrics = m
	}
	return NewDispatcher(opts)
}

func updateFor(t *testing.T, updates []PushStatusUpdate, subID string) PushStatusUpdate {
	t.Helper()
	for _, u := range updates {
		if u.SubscriptionID == subID {
			return u
		}
	}
	t.Fatalf("no status update for subscription %s in %+v", subID, updates)
	return PushStatusUpdate{}
}

// dispatchOnce

func TestDispatchOnce_Idle(t *testing.T) {
	store := &fakePushStore{}
	d := newTestDispatcher(store, &fakeSender{}, nil)
	if !d.LastPoll().IsZero() {
		t.Fatal("LastPoll set before the first poll")
	}
	if got := d.dispatchOnce(t.Context()); got != pollIdle {
		t.Fatalf("result = %v, want pollIdle", got)
	}
	if !d.LastPoll().Equal(t0) {
		t.Fatalf("LastPoll = %v, want %v", d.LastPoll(), t0)
	}
}

func TestDispatchOnce_StoreError(t *testing.T) {
	store := &fakePushStore{readErr: errors.New("disk I/O error")}
	m := newFakeDispatcherMetrics()
	d := newTestDispatcher(store, &fakeSender{}, m)

	if got := d.dispatchOnce(t.Context()); got != pollStoreError {
		t.Fatalf("result = %v, want pollStoreError", got)
	}
	if m.errors["store"] != 1 {
		t.Fatalf("store errors = %d, want 1", m.errors["store"])
	}
	if m.durations != 1 {
		t.Fatalf("durations observed = %d, want 1", m.durations)
	}
}

func TestDispatchOnce_Outcomes(t *testing.T) {
	store := &fakePushStore{pending: []Delivery{
		pending("ok", 0),
		pending("flaky", 0),
		pending("gone", 0),
		pending("exhausted", 2),
	}}
	transient := errors.New("503 from endpoint")
	sender := &fakeSender{errs: map[string]error{
		"flaky":     transient,
		"gone":      ErrGone,
		"exhausted": transient,
	}}
	m := newFakeDispatcherMetrics()
	d := newTestDispatcher(store, sender, m)

	if got := d.dispatchOnce(t.Context()); got != pollDispatched {
		t.Fatalf("result = %v, want pollDispatched", got)
	}
	if len(sender.sent) != 4 {
		t.Fatalf("sent = %v", sender.sent)
	}

	ok := updateFor(t, store.updates, "ok")
	if ok.ProcessingStatus != StatusDone || ok.DeliveredAt == nil || ok.FailedAt != nil || !ok.CountAttempt {
		t.Errorf("ok update = %+v", ok)
	}

	flaky := updateFor(t, store.updates, "flaky")
	if flaky.ProcessingStatus != StatusPending || flaky.FailedAt == nil || flaky.DeliveredAt != nil || !flaky.CountAttempt {
		t.Errorf("flaky update = %+v", flaky)
	}

	for _, id := range []string{"gone", "exhausted"} {
		u := updateFor(t, store.updates, id)
		if u.ProcessingStatus != StatusDone || u.FailedAt == nil || u.DeliveredAt != nil {
			t.Errorf("%s update = %+v", id, u)
		}
	}

	if m.outcomes[OutcomeDelivered] != 1 || m.outcomes[OutcomeRetry] != 1 || m.outcomes[OutcomeFailed] != 2 {
		t.Fatalf("outcomes = %v", m.outcomes)
	}
	if d.deliveredCount != 1 {
		t.Fatalf("deliveredCount = %d", d.deliveredCount)
	}
}

func TestDispatchOnce_RespectsBatchSize(t *testing.T) {
	store := &fakePushStore{pending: []Delivery{pending("a", 0), pending("b", 0), pending("c", 0)}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender, nil)
	d.batch = 2

	d.dispatchOnce(t.Context())
	if len(sender.sent) != 2 {
		t.Fatalf("sent = %v, want 2 pushes", sender.sent)
	}
}

func TestDispatchOnce_SenderPanicIsRetry(t *testing.T) {
	store := &fakePushStore{pending: []Delivery{pending("a", 0)}}
	m := newFakeDispatcherMetrics()
	d := newTestDispatcher(store, &fakeSender{panic: true}, m)

	if got := d.dispatchOnce(t.Context()); got != pollDispatched {
		t.Fatalf("result = %v", got)
	}
	u := updateFor(t, store.updates, "a")
	if u.ProcessingStatus != StatusPending || u.FailedAt == nil {
		t.Fatalf("update = %+v", u)
	}
	if m.outcomes[OutcomeRetry] != 1 {
		t.Fatalf("outcomes = %v", m.outcomes)
	}
}

func TestDispatchOnce_UpdateErrorCounted(t *testing.T) {
	store := &fakePushStore{pending: []Delivery{pending("a", 0)}, updateErr: errors.New("database is locked")}
	m := newFakeDispatcherMetrics()
	d := newTestDispatcher(store, &fakeSender{}, m)

	d.dispatchOnce(t.Context())
	if m.errors["update"] != 1 {
		t.Fatalf("update errors = %d", m.errors["update"])
	}
	if len(m.outcomes) != 0 || d.deliveredCount != 0 {
		t.Fatalf("unrecorded push should not count as an outcome: %v", m.outcomes)
	}
}

func TestDispatchOnce_CancelledMidBatch(t *testing.T) {
	store := &fakePushStore{pending: []Delivery{pending("a", 0), pending("b", 0)}}
	sender := &fakeSender{}
	d := newTestDispatcher(store, sender, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if got := d.dispatchOnce(ctx); got != pollDispatched {
		t.Fatalf("result = %v", got)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sent after cancel: %v", sender.sent)
	}
}

func TestDispatchOnce_NilMetrics(t *testing.T) {
	store := &fakePushStore{pending: []Delivery{pending("a", 0)}}
	d := newTestDispatcher(store, &fakeSender{}, nil)
	d.dispatchOnce(t.Context())
	if len(store.updates) != 1 {
		t.Fatalf("updates = %+v", store.updates)
	}
}

// backoffDuration

func TestDispatcherBackoffDuration(t *testing.T) {
	d := &Dispatcher{interval: 15 * time.Second}
	tests := []struct {
		errs int
		want time.Duration
	}{
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{4, 240 * time.Second},
		{5, 5 * time.Minute}, // 480s capped
		{20, 5 * time.Minute},
	}
	for _, tt := range tests {
		d.consecutiveErrs = tt.errs
		if got := d.backoffDuration(); got != tt.want {
			t.Errorf("backoffDuration(errs=%d) = %v, want %v", tt.errs, got, tt.want)
		}
	}
}

// NewDispatcher

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{Store: &fakePushStore{}, Sender: &fakeSender{}})
	if d.interval != DefaultPollInterval || d.batch != DefaultBatchSize || d.maxAttempts != DefaultMaxAttempts {
		t.Fatalf("defaults = %v %d %d", d.interval, d.batch, d.maxAttempts)
	}
	if d.limiter.Burst() != 5 {
		t.Fatalf("burst = %d, want 5", d.limiter.Burst())
	}
	if d.logger == nil || d.now == nil {
		t.Fatal("logger and clock should be defaulted")
	}
}

// Run

func TestRun_StopsOnCancel(t *testing.T) {
	store := &fakePushStore{}
	d := newTestDispatcher(store, &fakeSender{}, nil)
	d.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		reads := store.reads
		store.mu.Unlock()
		if reads >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.reads < 2 {
		t.Fatalf("reads = %d, want at least 2 polls", store.reads)
	}
}

func TestRun_BacksOffAfterStoreError(t *testing.T) {
	store := &fakePushStore{readErr: errors.New("database is locked")}
	d := newTestDispatcher(store, &fakeSender{}, nil)
	d.interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx)

	// 5ms, then backoff 10ms, 20ms, 40ms: at most a handful of reads
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.reads == 0 || store.reads > 5 {
		t.Fatalf("reads = %d, want 1..5 with backoff", store.reads)
	}
	if d.consecutiveErrs == 0 {
		t.Fatal("consecutive errors not tracked")
	}
}
