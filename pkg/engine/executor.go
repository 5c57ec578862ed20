package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/forgeworks/swarm/pkg/codegen"
	"github.com/forgeworks/swarm/pkg/config"
	"github.com/forgeworks/swarm/pkg/events"
	"github.com/forgeworks/swarm/pkg/metrics"
	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/store"
	"github.com/forgeworks/swarm/pkg/vcs"
	"github.com/forgeworks/swarm/pkg/verifier"
	"github.com/forgeworks/swarm/pkg/workspace"
)

// Progress phases surfaced to the dashboard while a task runs.
const (
	phaseGenerating = "generating"
	phaseApplying   = "applying"
	phaseCommitting = "committing"
	phaseVerifying  = "verifying"
	phaseCreatingPR = "creating_pr"
	phaseMerging    = "merging"
)

// Executor is the production TicketExecutor: it turns a claimed ticket into
// a pushed branch, a verified change and a pull request, and turns an
// in-review ticket into a merge.
type Executor struct {
	cfg       *config.EngineConfig
	store     *store.Store
	workspace *workspace.Manager
	generator *codegen.Client
	applier   *codegen.Applier
	verifier  *verifier.Client
	vcs       *vcs.Client
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewExecutor wires the executor's collaborators.
func NewExecutor(cfg *config.EngineConfig, st *store.Store, ws *workspace.Manager,
	generator *codegen.Client, verifyClient *verifier.Client, vcsClient *vcs.Client,
	publisher *events.Publisher, m *metrics.Metrics) *Executor {
	logger := slog.Default()
	return &Executor{
		cfg:       cfg,
		store:     st,
		workspace: ws,
		generator: generator,
		applier:   codegen.NewApplier(logger),
		verifier:  verifyClient,
		vcs:       vcsClient,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// ExecuteTicket runs one forge ticket end to end: check out the branch,
// then generate, apply, commit, push and verify, regenerating on verifier
// feedback until the change passes or the attempt budget runs out. A pass
// opens the pull request and hands the ticket to the review queue; an
// exhausted budget parks it in needs_review with every attempt's feedback
// on the activity log.
//
// Each attempt pushes before it verifies, so whatever the verifier judged
// is already on the remote when humans look.
func (x *Executor) ExecuteTicket(ctx context.Context, t *models.Ticket) error {
	log := x.logger.With("ticket_id", t.ID, "branch", t.BranchName)

	repoURL, baseBranch, err := x.resolveTarget(ctx, t)
	if err != nil {
		return err
	}

	wt, err := x.workspace.Checkout(ctx, repoURL, t.BranchName, baseBranch)
	if err != nil {
		return fmt.Errorf("failed to prepare worktree: %w", err)
	}
	defer func() {
		// The branch is pushed; the worktree is scratch space.
		if err := wt.Remove(context.Background()); err != nil {
			log.Warn("Failed to remove worktree", "error", err)
		}
	}()

	maxAttempts := x.cfg.VerifyMaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryDelays := verifier.NewBackOff(x.cfg.VerifyBaseDelay, x.cfg.VerifyDelayCap, x.cfg.VerifyBackoffMultiplier)

	var feedback []string
	changedAll := make(map[string]bool)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := x.generateAndPush(ctx, t, wt, attempt, feedback, changedAll); err != nil {
			return err
		}

		var marked *models.Ticket
		if attempt == 1 {
			marked, err = x.store.Tickets.MarkVerifying(ctx, t.ID, workerOf(t))
		} else {
			marked, err = x.store.Tickets.MarkVerificationAttempt(ctx, t.ID, attempt)
		}
		if err != nil {
			return fmt.Errorf("failed to mark verification attempt %d: %w", attempt, err)
		}
		if marked == nil {
			log.Info("Ticket no longer ours before verification, stopping", "attempt", attempt)
			return nil
		}

		x.progress(ctx, t, phaseVerifying, fmt.Sprintf("verification attempt %d of %d", attempt, maxAttempts))
		result, err := x.verifyBranch(ctx, t, repoURL, attempt, verifier.ForgePhases())
		if err != nil {
			return err
		}

		if result.Passed() {
			return x.openPullRequest(ctx, t, repoURL, baseBranch, changedFiles(changedAll))
		}

		items := result.FeedbackForAgent
		if len(items) == 0 {
			items = []string{"verification failed without feedback"}
		}
		recorded, err := x.store.Tickets.RecordVerificationFeedback(ctx, t.ID, attempt, items)
		if err != nil {
			return fmt.Errorf("failed to record verification feedback: %w", err)
		}
		if recorded == nil {
			log.Info("Ticket no longer verifying, stopping", "attempt", attempt)
			return nil
		}
		log.Warn("Verification rejected the change",
			"attempt", attempt, "feedback_items", len(items), "rejections", recorded.RejectionCount)

		if attempt == maxAttempts {
			parked, err := x.store.Tickets.MarkNeedsReview(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("failed to park ticket for review: %w", err)
			}
			if parked != nil {
				log.Warn("Verification attempts exhausted, parked for human review",
					"attempts", maxAttempts, "rejections", parked.RejectionCount)
			}
			return nil
		}

		feedback = append(feedback, items...)
		if err := sleepCtx(ctx, retryDelays.NextBackOff()); err != nil {
			return err
		}
	}
	return nil
}

// resolveTarget finds the repository and PR base branch for a ticket. The
// repo URL falls through ticket, project, session; the base branch comes
// from the project or the engine default.
func (x *Executor) resolveTarget(ctx context.Context, t *models.Ticket) (repoURL, baseBranch string, err error) {
	baseBranch = x.cfg.DefaultBaseBranch

	if t.RepoURL != nil && *t.RepoURL != "" {
		repoURL = *t.RepoURL
	}

	if t.ProjectID != "" {
		project, perr := x.store.Projects.GetByID(ctx, t.ProjectID)
		if perr != nil && !errors.Is(perr, store.ErrNotFound) {
			return "", "", fmt.Errorf("failed to load project %s: %w", t.ProjectID, perr)
		}
		if project != nil {
			if repoURL == "" && project.RepoURL != nil && *project.RepoURL != "" {
				repoURL = *project.RepoURL
			}
			if project.Branch != "" {
				baseBranch = project.Branch
			}
		}
	}

	if repoURL == "" && t.DesignSessionID != "" {
		session, serr := x.store.Sessions.GetByID(ctx, t.DesignSessionID)
		if serr != nil && !errors.Is(serr, store.ErrNotFound) {
			return "", "", fmt.Errorf("failed to load session %s: %w", t.DesignSessionID, serr)
		}
		if session != nil && session.RepoURL != nil && *session.RepoURL != "" {
			repoURL = *session.RepoURL
		}
	}

	if repoURL == "" {
		return "", "", fmt.Errorf("no repository configured for ticket %s", t.ID)
	}
	return repoURL, baseBranch, nil
}

// generateAndPush runs one generation pass: request changes, apply them to
// the worktree, commit, push. The commit lands on the activity log with its
// sha and file list; a clean tree is not an error, the generator may emit
// an already-applied state on a reclaimed ticket.
func (x *Executor) generateAndPush(ctx context.Context, t *models.Ticket, wt *workspace.Worktree,
	attempt int, feedback []string, changedAll map[string]bool) error {
	log := x.logger.With("ticket_id", t.ID, "attempt", attempt)

	x.progress(ctx, t, phaseGenerating, fmt.Sprintf("generating changes, attempt %d", attempt))
	resp, err := x.generator.Generate(ctx, codegen.GenerateRequest{
		TicketID:           t.ID,
		Title:              t.Title,
		Description:        t.Description,
		AcceptanceCriteria: t.AcceptanceCriteria,
		BranchName:         t.BranchName,
		Attempt:            attempt,
		Files:              x.loadContext(t, wt),
		Feedback:           feedback,
	})
	if err != nil {
		return fmt.Errorf("generation attempt %d failed: %w", attempt, err)
	}

	x.progress(ctx, t, phaseApplying, fmt.Sprintf("applying %d file changes", len(resp.Files)))
	applied, err := x.applier.Apply(wt, resp.Files)
	if err != nil {
		return fmt.Errorf("failed to apply generated changes: %w", err)
	}
	for _, f := range applied.ChangedFiles {
		changedAll[f] = true
	}

	x.progress(ctx, t, phaseCommitting, "committing and pushing")
	message := resp.CommitMessage
	if message == "" {
		message = t.Title
	}
	sha, committed, err := wt.CommitAll(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to commit changes: %w", err)
	}
	if committed {
		if err := x.store.Tickets.AppendActivity(ctx, t, models.EventKindCommit, map[string]any{
			"sha":     sha,
			"files":   applied.ChangedFiles,
			"attempt": attempt,
		}); err != nil {
			log.Warn("Failed to record commit activity", "error", err)
		}
		log.Info("Committed generated changes",
			"sha", sha, "changed_files", len(applied.ChangedFiles), "skipped_patches", applied.SkippedPatches)
	} else {
		log.Info("Worktree clean after apply, nothing to commit")
	}

	if err := wt.Push(ctx); err != nil {
		return fmt.Errorf("failed to push branch: %w", err)
	}
	return nil
}

// loadContext reads the files the ticket expects to touch so the generator
// sees their current content. Missing files are fine: creation targets do
// not exist yet.
func (x *Executor) loadContext(t *models.Ticket, wt *workspace.Worktree) []codegen.FileContext {
	seen := make(map[string]bool)
	var files []codegen.FileContext

	add := func(path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		data, err := wt.ReadFile(path)
		if err != nil {
			x.logger.Debug("Context file not readable, skipping",
				"ticket_id", t.ID, "path", path, "error", err)
			return
		}
		files = append(files, codegen.BuildFileContext(path, data))
	}

	for _, p := range t.HintFiles {
		add(p)
	}
	if t.RAGContext != nil {
		for _, p := range t.RAGContext.FilesToModify {
			add(p)
		}
	}
	return files
}

// openPullRequest opens the PR for the verified branch and hands the ticket
// to the review queue. Labels are advisory: a label failure is logged and
// the handoff proceeds, the PR already exists.
func (x *Executor) openPullRequest(ctx context.Context, t *models.Ticket, repoURL, baseBranch string, changed []string) error {
	repo, err := vcs.ParseRepoURL(repoURL)
	if err != nil {
		return fmt.Errorf("cannot parse repository url: %w", err)
	}

	x.progress(ctx, t, phaseCreatingPR, "opening pull request")
	pr, err := x.vcs.CreatePullRequest(ctx, vcs.CreatePRRequest{
		Repo:       repo,
		Title:      vcs.PRTitle(t),
		Body:       vcs.PRBody(t, changed),
		HeadBranch: t.BranchName,
		BaseBranch: baseBranch,
	})
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}

	if err := x.vcs.AddLabels(ctx, repo, pr.Number, vcs.Labels(len(changed))); err != nil {
		x.logger.Warn("Failed to attach labels to pull request",
			"ticket_id", t.ID, "pr_number", pr.Number, "error", err)
	}

	marked, err := x.store.Tickets.MarkInReview(ctx, t.ID, pr.HTMLURL)
	if err != nil {
		return fmt.Errorf("failed to hand ticket to review: %w", err)
	}
	if marked == nil {
		x.logger.Info("Ticket moved before review handoff", "ticket_id", t.ID, "pr_url", pr.HTMLURL)
		return nil
	}
	x.logger.Info("Pull request opened",
		"ticket_id", t.ID, "pr_url", pr.HTMLURL, "changed_files", len(changed))
	return nil
}

// progress publishes a transient progress event. Best effort: the persisted
// states are authoritative, a missed phase costs nothing.
func (x *Executor) progress(ctx context.Context, t *models.Ticket, phase, message string) {
	payload := events.TicketProgressPayload{
		Event:     events.EventTicketProgress,
		TicketID:  t.ID,
		Phase:     phase,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	rooms := events.TicketRooms(t.ID, t.ProjectID, t.DesignSessionID, t.TenantID)
	if err := x.publisher.PublishTicketProgress(ctx, rooms, payload); err != nil {
		x.logger.Debug("Failed to publish progress event",
			"ticket_id", t.ID, "phase", phase, "error", err)
	}
}

// workerOf returns the lease owner recorded on a claimed ticket.
func workerOf(t *models.Ticket) string {
	if t.WorkerID != nil {
		return *t.WorkerID
	}
	return ""
}

// changedFiles flattens the per-attempt change sets into one sorted list.
func changedFiles(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
