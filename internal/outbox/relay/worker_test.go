package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"certtrace/internal/outbox"
	"certtrace/internal/outbox/store"
	"certtrace/internal/platform/metrics"
	"certtrace/pkg/platform/circuit"
	"certtrace/pkg/platform/tx"
)

type recordingSink struct {
	mu       sync.Mutex
	failures int
	got      []uint64
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, events []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	for _, e := range events {
		s.got = append(s.got, e.Sequence)
	}
	return nil
}

func (s *recordingSink) sequences() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64{}, s.got...)
}

func seed(t *testing.T, events *store.InMemory, n int) {
	t.Helper()
	pub := outbox.NewPublisher(events)
	runner := tx.NewSerial()
	for range n {
		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			_, err := pub.Emit(ctx, outbox.KindOperationRecorded, "operation", map[string]int{"n": 1})
			return err
		})
		require.NoError(t, err)
	}
}

func TestRelayOnce_DeliversInOrderAndAdvancesCursor(t *testing.T) {
	events := store.NewInMemory()
	seed(t, events, 5)
	sink := &recordingSink{}
	m := metrics.New(prometheus.NewRegistry())
	w := NewWorker(events, events, sink, WithBatchSize(3), WithMetrics(m))

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, sink.sequences())
	cursor, err := events.LoadCursor(context.Background(), "recording")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cursor)
	assert.Equal(t, 5.0, promtest.ToFloat64(m.RelayPublished.WithLabelValues("recording")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.RelayLag.WithLabelValues("recording")))
}

func TestRelayOnce_FailedBatchIsRetried(t *testing.T) {
	events := store.NewInMemory()
	seed(t, events, 2)
	sink := &recordingSink{failures: 1}
	w := NewWorker(events, events, sink)

	_, err := w.RelayOnce(context.Background())
	require.Error(t, err)
	cursor, _ := events.LoadCursor(context.Background(), "recording")
	assert.Zero(t, cursor)

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint64{1, 2}, sink.sequences())
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	events := store.NewInMemory()
	seed(t, events, 4)
	sink := &recordingSink{failures: 1}
	w := NewWorker(events, events, sink, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(sink.sequences()) == 4
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestCommitted_HidesEventsOfFailedMutation(t *testing.T) {
	events := store.NewInMemory()
	runner := tx.NewSerial()
	pub := outbox.NewPublisher(events)
	sink := &recordingSink{}
	w := NewWorker(Committed(events, runner), events, sink)

	emitted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runner.RunInTx(context.Background(), func(ctx context.Context) error {
			if _, err := pub.Emit(ctx, outbox.KindRoleGranted, "role:issuer", struct{}{}); err != nil {
				return err
			}
			close(emitted)
			<-release
			return errors.New("mutation failed after emit")
		})
	}()
	<-emitted

	relayed := make(chan int, 1)
	go func() {
		n, _ := w.RelayOnce(context.Background())
		relayed <- n
	}()
	close(release)
	require.Error(t, <-done)

	assert.Zero(t, <-relayed)
	assert.Empty(t, sink.sequences())
}

func TestRelayOnce_OpenBreakerSkipsSink(t *testing.T) {
	events := store.NewInMemory()
	seed(t, events, 1)
	sink := &recordingSink{failures: 1}
	now := time.Unix(0, 0)
	breaker := circuit.New("recording",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	w := NewWorker(events, events, sink, WithBreaker(breaker))

	_, err := w.RelayOnce(context.Background())
	require.Error(t, err)
	assert.True(t, breaker.IsOpen())

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.sequences())

	now = now.Add(time.Minute)
	n, err = w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, circuit.StateClosed, breaker.State())
}
