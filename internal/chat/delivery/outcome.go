// Package delivery drains the outbound queue one message at a time and
// interprets transport outcomes into queue and status updates.
package delivery

import (
	"context"
	"time"

	"github.com/omnii/assistant-core/internal/models"
)

// OutcomeKind tags the three possible results of a send.
type OutcomeKind int

const (
	// OutcomeDelivered: the receiving side accepted the message.
	OutcomeDelivered OutcomeKind = iota

	// OutcomeRateLimited: the server's admission gate rejected the attempt.
	// Not the message's fault, so it never counts against the retry ceiling.
	OutcomeRateLimited

	// OutcomeTransientFailure: network error, 5xx, or timeout. Retried with
	// backoff up to the ceiling.
	OutcomeTransientFailure
)

// Outcome is the tagged result of a delivery attempt. The attempter's
// dispatch over Kind is exhaustive; there is no fourth case.
type Outcome struct {
	Kind       OutcomeKind
	RetryAfter time.Duration // set for OutcomeRateLimited
	Err        error         // set for OutcomeTransientFailure
}

// Delivered returns a success outcome.
func Delivered() Outcome {
	return Outcome{Kind: OutcomeDelivered}
}

// RateLimited returns a limiter-rejection outcome with the server's hint.
func RateLimited(retryAfter time.Duration) Outcome {
	return Outcome{Kind: OutcomeRateLimited, RetryAfter: retryAfter}
}

// TransientFailure returns a retryable failure outcome.
func TransientFailure(err error) Outcome {
	return Outcome{Kind: OutcomeTransientFailure, Err: err}
}

// Transport performs the actual send. The core does not know the underlying
// medium; the message id travels along so the receiving side can deduplicate
// re-sends.
type Transport interface {
	Send(ctx context.Context, msg models.QueuedMessage) Outcome
}
