package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/vcs"
	"github.com/forgeworks/swarm/pkg/verifier"
)

// ReviewTicket runs the sentinel gate on a ticket's open pull request. A
// pass squash-merges the PR, deletes the branch, records the merge and runs
// the unblock cascade; a rejection parks the ticket in sentinel_failed with
// the reviewer's feedback as the reason. A PR someone merged first counts
// as a pass.
func (x *Executor) ReviewTicket(ctx context.Context, t *models.Ticket) error {
	log := x.logger.With("ticket_id", t.ID)

	if t.PRURL == nil || *t.PRURL == "" {
		return fmt.Errorf("ticket %s reached review without a pull request", t.ID)
	}
	prURL := *t.PRURL

	repoURL, _, err := x.resolveTarget(ctx, t)
	if err != nil {
		return err
	}

	x.progress(ctx, t, phaseVerifying, "sentinel review started")
	result, err := x.verifyBranch(ctx, t, repoURL, 1, verifier.SentinelPhases())
	if err != nil {
		return err
	}

	if !result.Passed() {
		reason := strings.Join(result.FeedbackForAgent, "; ")
		if reason == "" {
			reason = "sentinel rejected the change"
		}
		rejected, err := x.store.Tickets.MarkSentinelFailed(ctx, t.ID, workerOf(t), reason)
		if err != nil {
			return fmt.Errorf("failed to record sentinel rejection: %w", err)
		}
		if rejected != nil {
			log.Warn("Sentinel rejected pull request", "pr_url", prURL, "reason", reason)
		}
		return nil
	}

	repo, err := vcs.ParseRepoURL(repoURL)
	if err != nil {
		return fmt.Errorf("cannot parse repository url: %w", err)
	}
	number, err := vcs.PRNumberFromURL(prURL)
	if err != nil {
		return fmt.Errorf("cannot resolve pull request number: %w", err)
	}

	x.progress(ctx, t, phaseMerging, fmt.Sprintf("squash merging pull request #%d", number))
	merge, err := x.vcs.SquashMerge(ctx, repo, number, vcs.PRTitle(t))
	if err != nil {
		return fmt.Errorf("failed to merge pull request: %w", err)
	}
	if merge.AlreadyMerged {
		log.Info("Pull request was merged by someone else", "pr_number", number)
	}

	if err := x.vcs.DeleteBranch(ctx, repo, t.BranchName); err != nil {
		log.Warn("Failed to delete merged branch", "branch", t.BranchName, "error", err)
	}

	merged, err := x.store.Tickets.MarkMerged(ctx, t.ID, workerOf(t))
	if err != nil {
		return fmt.Errorf("failed to record merge: %w", err)
	}
	if merged == nil {
		log.Info("Ticket moved before the merge could be recorded", "pr_url", prURL)
		return nil
	}
	x.metrics.MergesTotal.Inc()
	log.Info("Ticket merged", "pr_url", prURL, "merge_sha", merge.SHA)

	x.unblockDependents(ctx, merged)
	return nil
}
