package engine

import (
	"context"
	"fmt"

	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/verifier"
)

// verifyBranch asks the verifier for a verdict on one content attempt.
// Transport faults are retried on the backoff schedule without consuming
// the attempt; the attempt number the verifier sees never changes across
// retries, so its idempotence key holds. A verdict, pass or fail, comes
// back as a Result. A non-retryable error or an exhausted schedule comes
// back as an error and fails the ticket.
func (x *Executor) verifyBranch(ctx context.Context, t *models.Ticket, repoURL string,
	attempt int, phases []string) (*verifier.Result, error) {
	req := verifier.Request{
		TicketID:           t.ID,
		BranchName:         t.BranchName,
		RepoURL:            repoURL,
		Attempt:            attempt,
		AcceptanceCriteria: t.AcceptanceCriteria,
		Phases:             phases,
	}

	tries := x.cfg.VerifyMaxRetries
	if tries < 1 {
		tries = 1
	}
	delays := verifier.NewBackOff(x.cfg.VerifyBaseDelay, x.cfg.VerifyDelayCap, x.cfg.VerifyBackoffMultiplier)

	var lastErr error
	for try := 1; try <= tries; try++ {
		result, err := x.verifier.Verify(ctx, req)
		if err == nil {
			if result.Passed() {
				x.metrics.VerificationsTotal.WithLabelValues("passed").Inc()
			} else {
				x.metrics.VerificationsTotal.WithLabelValues("failed").Inc()
			}
			return result, nil
		}
		if !verifier.IsRetryable(err) {
			x.metrics.VerificationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("verification attempt %d failed: %w", attempt, err)
		}

		lastErr = err
		if try == tries {
			break
		}
		delay := delays.NextBackOff()
		x.logger.Warn("Verifier unavailable, retrying",
			"ticket_id", t.ID, "attempt", attempt, "try", try, "delay", delay, "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}

	x.metrics.VerificationsTotal.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("verifier unavailable after %d tries: %w", tries, lastErr)
}
