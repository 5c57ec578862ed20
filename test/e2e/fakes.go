package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cgi"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/codegen"
	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/ticketgen"
	"github.com/forgeworks/swarm/pkg/vcs"
	"github.com/forgeworks/swarm/pkg/verifier"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// newGitHost serves a seeded bare repository over git's smart HTTP protocol.
// The same URL then works for clone and push from the worktrees and parses
// into acme/payments for the hosting API calls.
func newGitHost(t *testing.T) (repoURL, originDir string) {
	t.Helper()
	gitBin, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git not installed")
	}

	root := t.TempDir()
	originDir = filepath.Join(root, "acme", "payments.git")
	require.NoError(t, os.MkdirAll(filepath.Dir(originDir), 0o755))
	runGit(t, "", "init", "--bare", originDir)
	runGit(t, originDir, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, originDir, "config", "http.receivepack", "true")

	seed := filepath.Join(root, "seed")
	runGit(t, "", "clone", originDir, seed)
	runGit(t, seed, "checkout", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(seed, "README.md"), []byte("# payments\n"), 0o644))
	runGit(t, seed, "add", "-A")
	runGit(t, seed, "-c", "user.name=seed", "-c", "user.email=seed@test.invalid", "commit", "-m", "initial")
	runGit(t, seed, "push", "origin", "main")

	srv := httptest.NewServer(&cgi.Handler{
		Path: gitBin,
		Args: []string{"http-backend"},
		Env: []string{
			"GIT_PROJECT_ROOT=" + root,
			"GIT_HTTP_EXPORT_ALL=1",
			"PATH=" + os.Getenv("PATH"),
		},
	})
	t.Cleanup(srv.Close)
	return srv.URL + "/acme/payments.git", originDir
}

// ticketFilePath is where the codegen stub puts each ticket's generated file.
// Deriving it from the ticket id lets tests locate the file on the origin.
func ticketFilePath(ticketID string) string {
	short := ticketID
	if len(short) > 8 {
		short = short[:8]
	}
	return "internal/gen/change_" + short + ".go"
}

// plannerStub serves canned ticket breakdowns to the generation service.
type plannerStub struct {
	srv *httptest.Server

	mu     sync.Mutex
	drafts []models.TicketDraft
	calls  []ticketgen.PlanRequest
}

func newPlannerStub(t *testing.T) *plannerStub {
	t.Helper()
	p := &plannerStub{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ticketgen.PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.calls = append(p.calls, req)
		drafts := append([]models.TicketDraft(nil), p.drafts...)
		p.mu.Unlock()

		json.NewEncoder(w).Encode(ticketgen.PlanResponse{Tickets: drafts})
	}))
	t.Cleanup(p.srv.Close)
	return p
}

// Plan sets the breakdown returned to generation calls.
func (p *plannerStub) Plan(drafts ...models.TicketDraft) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drafts = drafts
}

func (p *plannerStub) requests() []ticketgen.PlanRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ticketgen.PlanRequest(nil), p.calls...)
}

// codegenStub fakes the generation service. Every call creates one file whose
// path is keyed to the ticket and whose content is keyed to the attempt, so
// parallel tickets produce distinct changes and regeneration always produces
// a fresh commit.
type codegenStub struct {
	srv *httptest.Server

	mu      sync.Mutex
	calls   []codegen.GenerateRequest
	gate    chan struct{} // non-nil: block responses until closed
	started chan string   // non-nil: receives each blocked call's ticket id
}

func newCodegenStub(t *testing.T) *codegenStub {
	t.Helper()
	g := &codegenStub{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req codegen.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.calls = append(g.calls, req)
		gate, started := g.gate, g.started
		g.mu.Unlock()

		if gate != nil {
			if started != nil {
				select {
				case started <- req.TicketID:
				default:
				}
			}
			select {
			case <-gate:
			case <-r.Context().Done():
				// Task cancelled or timed out while we were holding the call.
				return
			}
		}

		json.NewEncoder(w).Encode(codegen.GenerateResponse{
			Files: []codegen.FileChange{{
				Path:    ticketFilePath(req.TicketID),
				Kind:    codegen.ChangeCreate,
				Content: fmt.Sprintf("package gen\n\n// %s\nconst attempt = %d\n", req.Title, req.Attempt),
			}},
			CommitMessage: fmt.Sprintf("%s (attempt %d)", req.Title, req.Attempt),
		})
	}))
	t.Cleanup(g.srv.Close)
	return g
}

// Gate makes generation calls block until release is called or the task is
// cancelled. started receives each blocked call's ticket id, so tests know
// exactly when a task is inside the collaborator call.
func (g *codegenStub) Gate() (started <-chan string, release func()) {
	ch := make(chan string, 16)
	gate := make(chan struct{})
	g.mu.Lock()
	g.started = ch
	g.gate = gate
	g.mu.Unlock()

	var once sync.Once
	return ch, func() { once.Do(func() { close(gate) }) }
}

func (g *codegenStub) requests() []codegen.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]codegen.GenerateRequest(nil), g.calls...)
}

// requestsFor returns the generation calls made for one ticket, in order.
func (g *codegenStub) requestsFor(ticketID string) []codegen.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var matched []codegen.GenerateRequest
	for _, req := range g.calls {
		if req.TicketID == ticketID {
			matched = append(matched, req)
		}
	}
	return matched
}

// verifierStub plays back scripted verdicts in call order and passes every
// call once the script runs out. The default-pass tail keeps full pipelines
// flowing while a test scripts only the attempts it cares about.
type verifierStub struct {
	srv *httptest.Server

	mu    sync.Mutex
	calls []verifier.Request
	steps []verifierStep
}

type verifierStep struct {
	status int              // non-zero: respond with this HTTP status
	result *verifier.Result // otherwise: respond with this verdict
}

func verdictPass() verifierStep {
	return verifierStep{result: &verifier.Result{Status: verifier.StatusPassed, ReadyForPR: true}}
}

func verdictFail(feedback ...string) verifierStep {
	return verifierStep{result: &verifier.Result{Status: verifier.StatusFailed, FeedbackForAgent: feedback}}
}

func newVerifierStub(t *testing.T) *verifierStub {
	t.Helper()
	v := &verifierStub{}
	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req verifier.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		v.mu.Lock()
		v.calls = append(v.calls, req)
		var step verifierStep
		if len(v.steps) > 0 {
			step = v.steps[0]
			v.steps = v.steps[1:]
		} else {
			step = verdictPass()
		}
		v.mu.Unlock()

		if step.status != 0 {
			w.WriteHeader(step.status)
			fmt.Fprint(w, `{"message":"unavailable"}`)
			return
		}
		json.NewEncoder(w).Encode(step.result)
	}))
	t.Cleanup(v.srv.Close)
	return v
}

// Script queues verdicts for upcoming verification calls.
func (v *verifierStub) Script(steps ...verifierStep) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.steps = append(v.steps, steps...)
}

func (v *verifierStub) requests() []verifier.Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]verifier.Request(nil), v.calls...)
}

// requestsFor returns the verification calls made for one ticket, in order.
func (v *verifierStub) requestsFor(ticketID string) []verifier.Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	var matched []verifier.Request
	for _, req := range v.calls {
		if req.TicketID == ticketID {
			matched = append(matched, req)
		}
	}
	return matched
}

// prRecord is one pull request the forge stub has seen.
type prRecord struct {
	Number int
	Title  string
	Body   string
	Head   string
	Base   string
	Merged bool
	Labels []string
}

// forgeStub fakes the hosting REST API for the acme/payments repository with
// incrementing PR numbers. Merges are accepted for any number, even one
// another replica's stub minted, so multi-replica runs can review each
// other's pull requests.
type forgeStub struct {
	srv *httptest.Server

	mu      sync.Mutex
	nextPR  int
	prs     map[int]*prRecord
	merges  []map[string]string
	deleted []string
}

func newForgeStub(t *testing.T) *forgeStub {
	t.Helper()
	h := &forgeStub{nextPR: 100, prs: make(map[int]*prRecord)}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /repos/acme/payments/pulls", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		n := h.nextPR
		h.nextPR++
		h.prs[n] = &prRecord{
			Number: n,
			Title:  body["title"],
			Body:   body["body"],
			Head:   body["head"],
			Base:   body["base"],
		}
		h.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(vcs.PullRequest{
			Number:  n,
			HTMLURL: fmt.Sprintf("https://github.example.com/acme/payments/pull/%d", n),
			State:   "open",
		})
	})

	mux.HandleFunc("POST /repos/acme/payments/issues/{number}/labels", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("number"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		if pr, ok := h.prs[n]; ok {
			pr.Labels = append(pr.Labels, body["labels"]...)
		}
		h.mu.Unlock()
		w.Write([]byte("[]"))
	})

	mux.HandleFunc("PUT /repos/acme/payments/pulls/{number}/merge", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("number"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body["number"] = strconv.Itoa(n)
		h.mu.Lock()
		h.merges = append(h.merges, body)
		if pr, ok := h.prs[n]; ok {
			pr.Merged = true
		}
		h.mu.Unlock()
		json.NewEncoder(w).Encode(vcs.MergeResult{SHA: "f00dfeed", Merged: true, Message: "Pull Request successfully merged"})
	})

	mux.HandleFunc("GET /repos/acme/payments/pulls/{number}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("number"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.mu.Lock()
		pr, ok := h.prs[n]
		var merged bool
		if ok {
			merged = pr.Merged
		}
		h.mu.Unlock()
		state := "open"
		if merged {
			state = "closed"
		}
		json.NewEncoder(w).Encode(vcs.PullRequest{Number: n, State: state, Merged: merged})
	})

	mux.HandleFunc("DELETE /repos/acme/payments/git/refs/heads/", func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.EscapedPath(), "/repos/acme/payments/git/refs/heads/")
		branch, err := url.PathUnescape(raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		h.deleted = append(h.deleted, branch)
		h.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	h.srv = httptest.NewServer(mux)
	t.Cleanup(h.srv.Close)
	return h
}

// prCreated returns the recorded pull requests in creation order.
func (h *forgeStub) prCreated() []prRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]prRecord, 0, len(h.prs))
	for n := 100; n < h.nextPR; n++ {
		if pr, ok := h.prs[n]; ok {
			out = append(out, *pr)
		}
	}
	return out
}

// prByHead returns the recorded pull request for a head branch, or nil.
func (h *forgeStub) prByHead(branch string) *prRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, pr := range h.prs {
		if pr.Head == branch {
			cp := *pr
			return &cp
		}
	}
	return nil
}

func (h *forgeStub) mergeCalls() []map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]string(nil), h.merges...)
}

func (h *forgeStub) deletedBranches() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.deleted...)
}
