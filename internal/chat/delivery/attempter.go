package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/omnii/assistant-core/internal/chat/connectivity"
	"github.com/omnii/assistant-core/internal/chat/outbox"
	"github.com/omnii/assistant-core/internal/chat/syncstate"
	"github.com/omnii/assistant-core/internal/errors"
	"github.com/omnii/assistant-core/internal/logging"
	"github.com/omnii/assistant-core/internal/models"
)

// Events receives delivery notifications for the UI event surface. All
// methods may be called from the worker goroutine.
type Events interface {
	MessageDelivered(msg models.QueuedMessage)
	MessageFailed(msg models.QueuedMessage)
}

// Config tunes the attempter's backoff policy.
type Config struct {
	BackoffBase time.Duration // delay after the first transient failure
	BackoffCap  time.Duration // upper bound for the exponential backoff
}

// DefaultConfig returns the standard backoff policy.
func DefaultConfig() Config {
	return Config{
		BackoffBase: 2 * time.Second,
		BackoffCap:  5 * time.Minute,
	}
}

// Attempter is the single delivery worker. One goroutine drains the queue in
// strict FIFO order; a still-retryable head message blocks newer ones so the
// receiver observes a sender's messages in causal order.
type Attempter struct {
	outbox    *outbox.Outbox
	transport Transport
	machine   *syncstate.Machine
	source    connectivity.Source
	config    Config
	events    Events

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	subID   int
}

// New creates an Attempter. events may be nil.
func New(ob *outbox.Outbox, transport Transport, machine *syncstate.Machine,
	source connectivity.Source, config Config, events Events) *Attempter {
	return &Attempter{
		outbox:    ob,
		transport: transport,
		machine:   machine,
		source:    source,
		config:    config,
		events:    events,
		wakeCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the worker. It subscribes to connectivity transitions,
// forwards them to the state machine, and wires the machine's manual trigger
// back to itself.
func (a *Attempter) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	a.subID = a.source.Subscribe(func(online bool) {
		a.machine.HandleConnectivity(online)
		if online {
			a.Wake()
		}
	})
	a.machine.OnTrigger(a.Wake)

	// Seed the machine with the current reachability so a monitor that came
	// up online before Start is not missed.
	a.machine.HandleConnectivity(a.source.Online())

	a.wg.Add(1)
	go a.run(ctx)
}

// Stop terminates the worker, cancelling any in-progress wait.
func (a *Attempter) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	a.source.Unsubscribe(a.subID)
	close(a.stopCh)
	a.wg.Wait()
}

// Wake nudges the worker without blocking. Safe from any goroutine.
func (a *Attempter) Wake() {
	select {
	case a.wakeCh <- struct{}{}:
	default:
	}
}

// NotifyEnqueued is called after a message lands in the queue. While online
// it restarts a settled machine and wakes the worker; offline enqueues simply
// wait for connectivity.
func (a *Attempter) NotifyEnqueued() {
	a.machine.MessageEnqueued()
	a.Wake()
}

func (a *Attempter) run(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-a.wakeCh:
			a.drain(ctx)
		}
	}
}

// drain attempts messages oldest-first until the queue empties, connectivity
// drops, or the worker is stopped.
func (a *Attempter) drain(ctx context.Context) {
	for {
		if a.stopped(ctx) {
			return
		}

		if !a.source.Online() {
			return
		}

		msg, ok := a.outbox.Oldest()
		if !ok {
			a.settle()
			return
		}

		a.machine.DeliveryStarted()

		outcome := a.transport.Send(ctx, msg)

		switch outcome.Kind {
		case OutcomeDelivered:
			a.outbox.Remove(msg.ID)
			logging.Info("Message delivered", map[string]interface{}{"id": msg.ID})
			if a.events != nil {
				a.events.MessageDelivered(msg)
			}

		case OutcomeRateLimited:
			// Deferred, not failed: the retry count is untouched and the
			// worker waits out the server's hint before resuming.
			logging.Warn("Delivery rate-limited",
				map[string]interface{}{"id": msg.ID, "retry_after": outcome.RetryAfter.String()})
			if !a.wait(ctx, outcome.RetryAfter) {
				return
			}

		case OutcomeTransientFailure:
			if a.outbox.IncrementRetry(msg.ID) {
				// Same message stays at the head; wait out the backoff.
				if !a.wait(ctx, a.backoff(msg.RetryCount+1)) {
					return
				}
			} else {
				// Ceiling exceeded: message moved to the failed set.
				a.machine.DeliveryError()
				logging.ErrorWithCode("Message permanently failed",
					string(errors.ErrDeliveryFailed), outcome.Err,
					map[string]interface{}{"id": msg.ID})
				if a.events != nil {
					a.events.MessageFailed(msg)
				}
			}
		}
	}
}

// settle records the end of a drain: synced when nothing failed, error when
// the failed set is non-empty.
func (a *Attempter) settle() {
	if a.outbox.FailedCount() == 0 {
		a.machine.Drained()
	} else {
		a.machine.DeliveryError()
	}
}

// backoff computes the delay before retry n (1-based): base doubled per
// retry, capped.
func (a *Attempter) backoff(retry int) time.Duration {
	d := a.config.BackoffBase << uint(retry-1)
	if d > a.config.BackoffCap || d <= 0 {
		d = a.config.BackoffCap
	}
	return d
}

// wait sleeps for d unless the worker is torn down first. Returns false when
// the wait was cancelled. A connectivity wake during the wait does not cut it
// short; the drain loop re-checks reachability afterwards.
func (a *Attempter) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-a.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func (a *Attempter) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-a.stopCh:
		return true
	default:
		return false
	}
}
