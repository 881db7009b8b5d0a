package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// DefaultCooldown is the minimum interval between the end of one attempt
// and the start of the next for the same checkout
const DefaultCooldown = 2 * time.Second

// submitFunc runs one payment submission under the coordinator's guard.
// sessionID is the correlation/idempotency id for the attempt.
type submitFunc func(ctx context.Context, sessionID string) (*domain.PaymentResponse, error)

type inflightCall struct {
	done chan struct{}
	resp *domain.PaymentResponse
	err  error
}

// Coordinator serializes payment submissions for one checkout (one
// customer paying one entity). It guarantees:
//
//   - at most one submission is in flight; concurrent triggers join the
//     in-flight call and resolve to its outcome
//   - a cooldown separates the end of one attempt from the start of the next
//   - the correlation id is created lazily on the first attempt, reused
//     across retries of the same checkout, and rotated only after a
//     definitive success
//
// Double-submission of a real-money charge is the highest-cost bug in this
// domain; button disabling upstream is not sufficient under rapid repeated
// triggers, so the guard lives here.
type Coordinator struct {
	cooldown time.Duration
	clock    func() time.Time

	mu            sync.Mutex
	inflight      *inflightCall
	sessionID     string
	cooldownUntil time.Time
}

func NewCoordinator(cooldown time.Duration) *Coordinator {
	return &Coordinator{
		cooldown: cooldown,
		clock:    time.Now,
	}
}

// Execute runs submit under the single-flight guard. If a submission is
// already in flight the call joins it and shares its outcome instead of
// submitting again.
func (c *Coordinator) Execute(ctx context.Context, submit submitFunc) (*domain.PaymentResponse, error) {
	c.mu.Lock()

	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.resp, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if now := c.clock(); now.Before(c.cooldownUntil) {
		c.mu.Unlock()
		return nil, domain.ErrCheckoutCooldown
	}

	// Lazily issue the correlation id; a retry of a failed or unclear
	// attempt reuses it so the processor can deduplicate
	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}
	sessionID := c.sessionID

	call := &inflightCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	// The guard is always released, whatever submit does; a failed attempt
	// must never deadlock future attempts
	defer c.finish(call)

	call.resp, call.err = submit(ctx, sessionID)
	return call.resp, call.err
}

func (c *Coordinator) finish(call *inflightCall) {
	// A panicking submission reaches here with neither a response nor an
	// error; joiners must still resolve to a real outcome, not (nil, nil)
	if call.err == nil && call.resp == nil {
		call.err = domain.ErrInternalError
	}

	c.mu.Lock()
	c.inflight = nil
	c.cooldownUntil = c.clock().Add(c.cooldown)
	if call.err == nil && call.resp != nil && call.resp.Succeeded() {
		// Only a definitive success rotates the id. Failures retry under
		// the same id, and unknown outcomes must keep it so a retry cannot
		// double-charge.
		c.sessionID = ""
	}
	c.mu.Unlock()
	close(call.done)
}

// SessionID exposes the current correlation id for status lookups; empty
// when no attempt has started or the last attempt succeeded
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// idle reports whether the coordinator carries no state a future attempt
// depends on: nothing in flight, cooldown elapsed, no retained session id
func (c *Coordinator) idle(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight == nil && c.sessionID == "" && !now.Before(c.cooldownUntil)
}

func (c *Coordinator) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}
