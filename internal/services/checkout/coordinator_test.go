package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// fakeClock lets tests step through the cooldown without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCoordinator() (*Coordinator, *fakeClock) {
	clock := newFakeClock()
	coord := NewCoordinator(DefaultCooldown)
	coord.clock = clock.Now
	return coord, clock
}

func successSubmit(calls *atomic.Int32) submitFunc {
	return func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
		calls.Add(1)
		return &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded, TransactionID: "txn-1"}, nil
	}
}

func TestCoordinator_SingleFlight(t *testing.T) {
	coord, _ := newTestCoordinator()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	slowSubmit := func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
		calls.Add(1)
		close(started)
		<-release
		return &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded, TransactionID: "txn-1"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*domain.PaymentResponse, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = coord.Execute(context.Background(), slowSubmit)
	}()

	<-started // first submission is in flight

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = coord.Execute(context.Background(), func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
			t.Error("second trigger must not submit while the first is in flight")
			return nil, nil
		})
	}()

	time.Sleep(20 * time.Millisecond) // let the second call reach the join
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one network call")
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0], results[1], "both triggers resolve to the same outcome")
}

func TestCoordinator_Cooldown(t *testing.T) {
	coord, clock := newTestCoordinator()
	var calls atomic.Int32

	_, err := coord.Execute(context.Background(), successSubmit(&calls))
	require.NoError(t, err)

	// Immediately after an attempt the cooldown rejects
	_, err = coord.Execute(context.Background(), successSubmit(&calls))
	assert.ErrorIs(t, err, domain.ErrCheckoutCooldown)

	clock.Advance(DefaultCooldown - time.Millisecond)
	_, err = coord.Execute(context.Background(), successSubmit(&calls))
	assert.ErrorIs(t, err, domain.ErrCheckoutCooldown, "cooldown covers the full interval")

	clock.Advance(2 * time.Millisecond)
	_, err = coord.Execute(context.Background(), successSubmit(&calls))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestCoordinator_SessionIDStableAcrossRetries(t *testing.T) {
	coord, clock := newTestCoordinator()

	var sessionIDs []string
	failSubmit := func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
		sessionIDs = append(sessionIDs, sessionID)
		return nil, domain.ErrProcessorError
	}

	for i := 0; i < 3; i++ {
		_, err := coord.Execute(context.Background(), failSubmit)
		assert.ErrorIs(t, err, domain.ErrProcessorError)
		clock.Advance(DefaultCooldown + time.Millisecond)
	}

	require.Len(t, sessionIDs, 3)
	assert.Equal(t, sessionIDs[0], sessionIDs[1], "retries reuse the correlation id")
	assert.Equal(t, sessionIDs[0], sessionIDs[2])
	_, err := uuid.Parse(sessionIDs[0])
	assert.NoError(t, err, "correlation id is a UUID")
}

func TestCoordinator_SessionIDRotatesAfterSuccess(t *testing.T) {
	coord, clock := newTestCoordinator()

	var sessionIDs []string
	record := func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
		sessionIDs = append(sessionIDs, sessionID)
		return &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded}, nil
	}

	_, err := coord.Execute(context.Background(), record)
	require.NoError(t, err)
	assert.Empty(t, coord.SessionID(), "success clears the session id")

	clock.Advance(DefaultCooldown + time.Millisecond)
	_, err = coord.Execute(context.Background(), record)
	require.NoError(t, err)

	require.Len(t, sessionIDs, 2)
	assert.NotEqual(t, sessionIDs[0], sessionIDs[1], "a new checkout gets a new id")
}

func TestCoordinator_SessionIDKeptOnUnknownOutcome(t *testing.T) {
	coord, clock := newTestCoordinator()

	var sessionIDs []string
	unclear := func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
		sessionIDs = append(sessionIDs, sessionID)
		return &domain.PaymentResponse{Outcome: domain.OutcomeUnknown, Retryable: true}, nil
	}

	_, err := coord.Execute(context.Background(), unclear)
	require.NoError(t, err)

	clock.Advance(DefaultCooldown + time.Millisecond)
	_, err = coord.Execute(context.Background(), unclear)
	require.NoError(t, err)

	require.Len(t, sessionIDs, 2)
	assert.Equal(t, sessionIDs[0], sessionIDs[1],
		"an unclear outcome keeps the idempotency key so a retry cannot double-charge")
}

func TestCoordinator_FailureReleasesGuard(t *testing.T) {
	coord, clock := newTestCoordinator()

	_, err := coord.Execute(context.Background(), func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	clock.Advance(DefaultCooldown + time.Millisecond)

	var calls atomic.Int32
	_, err = coord.Execute(context.Background(), successSubmit(&calls))
	require.NoError(t, err, "a failed attempt must not deadlock future attempts")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoordinator_PanicReleasesGuard(t *testing.T) {
	coord, clock := newTestCoordinator()

	assert.Panics(t, func() {
		_, _ = coord.Execute(context.Background(), func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
			panic("submit blew up")
		})
	})

	clock.Advance(DefaultCooldown + time.Millisecond)

	var calls atomic.Int32
	_, err := coord.Execute(context.Background(), successSubmit(&calls))
	require.NoError(t, err)
}

func TestCoordinator_PanicResolvesJoinerWithError(t *testing.T) {
	coord, _ := newTestCoordinator()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		defer func() { _ = recover() }()
		_, _ = coord.Execute(context.Background(), func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
			close(started)
			<-release
			panic("submit blew up")
		})
	}()
	<-started

	joined := make(chan struct{})
	var joinResp *domain.PaymentResponse
	var joinErr error
	go func() {
		defer close(joined)
		joinResp, joinErr = coord.Execute(context.Background(), func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
			t.Error("joiner must share the in-flight attempt, not submit")
			return nil, nil
		})
	}()

	time.Sleep(20 * time.Millisecond) // let the second call reach the join
	close(release)
	<-joined

	// The joiner must resolve to a real outcome, never (nil, nil)
	assert.Nil(t, joinResp)
	assert.ErrorIs(t, joinErr, domain.ErrInternalError)
}

func TestCoordinator_JoinHonorsContext(t *testing.T) {
	coord, _ := newTestCoordinator()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = coord.Execute(context.Background(), func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error) {
			close(started)
			<-release
			return &domain.PaymentResponse{Outcome: domain.OutcomeSucceeded}, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := coord.Execute(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
}
