package feeder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bluedotiya/web-crawler/internal/model"
	"github.com/bluedotiya/web-crawler/internal/probe"
	"github.com/bluedotiya/web-crawler/internal/store/memory"
)

var errStubUnreachable = errors.New("feeder: stub transport unreachable")

// fakeResolver always succeeds with a fixed IPv4, so tests exercise the
// rightward-shift walk's real label logic deterministically.
type fakeResolver struct{}

func (fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return []string{"203.0.113.10"}, nil
}

func newTestFeeder(s *memory.Store) *Feeder {
	f := New(s, nil, "worker-test")
	f.Resolver = fakeResolver{}
	f.Jitter = func() time.Duration { return 0 }
	f.Sleep = func(time.Duration) {}
	return f
}

func seedRoot(t *testing.T, s *memory.Store, name string, depth int, mode model.SearchMode) *model.Node {
	t.Helper()
	root := &model.Node{
		Label:          model.LabelRoot,
		Name:           name,
		HTTPType:       model.SchemeHTTP,
		RequestedDepth: depth,
		CurrentDepth:   0,
		JobStatus:      model.Pending,
		SearchMode:     mode,
	}
	if err := s.CreateNode(context.Background(), root); err != nil {
		t.Fatalf("seed root: %v", err)
	}
	return root
}

// test scenario 1 (spec §8): depth=1, two links to the same host, one
// child, RESTRICTED, ROOT COMPLETED.
func TestTickScenario1(t *testing.T) {
	t.Parallel()

	seed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="https://foo.bar">x</a><a href="http://foo.bar">y</a>`))
	}))
	defer seed.Close()

	name, _ := probe.Normalize(seed.URL)
	s := memory.New()
	root := seedRoot(t, s, name, 1, model.ModeNormal)

	f := newTestFeeder(s)
	f.Fetcher.Client = seed.Client()

	outcome, err := f.process(context.Background(), root)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %v", outcome)
	}

	nodes := s.Nodes()
	var children []*model.Node
	for _, n := range nodes {
		if n.Label == model.LabelURL {
			children = append(children, n)
		}
	}
	if len(children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(children))
	}
	if children[0].JobStatus != model.Restricted {
		t.Fatalf("expected RESTRICTED child, got %v", children[0].JobStatus)
	}
	if children[0].CurrentDepth != 1 {
		t.Fatalf("expected depth 1, got %d", children[0].CurrentDepth)
	}
}

// test that a page with zero regex matches ends with NO_LEAD (spec §8)
func TestTickNoLeadOnEmptyBody(t *testing.T) {
	t.Parallel()

	seed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`no links in this body`))
	}))
	defer seed.Close()

	name, _ := probe.Normalize(seed.URL)
	s := memory.New()
	root := seedRoot(t, s, name, 2, model.ModeNormal)

	f := newTestFeeder(s)
	f.Fetcher.Client = seed.Client()

	outcome, err := f.process(context.Background(), root)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != OutcomeNoLead {
		t.Fatalf("expected no-lead, got %v", outcome)
	}
}

// test that a seed whose fetch times out 3 times ends in FAILED with no
// children (spec §8 scenario 6)
func TestTickFailsAfterThreeAttempts(t *testing.T) {
	t.Parallel()

	s := memory.New()
	root := seedRoot(t, s, "UNREACHABLE.INVALID", 2, model.ModeNormal)

	f := newTestFeeder(s)
	// Swap in a client stub whose Do always errors, so every attempt fails fast.
	f.Fetcher.Client = &httpClientStub{}

	for i := 0; i < 3; i++ {
		outcome, err := f.process(context.Background(), root)
		if err != nil {
			t.Fatalf("process attempt %d: %v", i, err)
		}
		if i < 2 && outcome != OutcomeRetryScheduled {
			t.Fatalf("attempt %d: expected retry-scheduled, got %v", i, outcome)
		}
		if i == 2 && outcome != OutcomeFailed {
			t.Fatalf("attempt %d: expected failed, got %v", i, outcome)
		}
		// Re-fetch the node as the next attempt would via MatchPending.
		refreshed, err := s.MatchByKey(context.Background(), root.KeyOf())
		if err != nil {
			t.Fatalf("reload node: %v", err)
		}
		root = refreshed
	}

	if root.JobStatus != model.Failed {
		t.Fatalf("expected FAILED, got %v", root.JobStatus)
	}
	if root.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", root.Attempts)
	}
}

// test scope-mode filtering: a domain-mode crawl drops cross-domain
// candidates (spec §8 scenario 3)
func TestTickDomainModeFiltersCrossDomain(t *testing.T) {
	t.Parallel()

	seed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="https://sub.example.com">a</a><a href="https://other.org">b</a>`))
	}))
	defer seed.Close()

	name, _ := probe.Normalize(seed.URL)
	s := memory.New()
	root := seedRoot(t, s, name, 1, model.ModeDomain)
	root.Domain = "EXAMPLE"
	if err := s.Push(context.Background(), root); err != nil {
		t.Fatalf("push root domain: %v", err)
	}

	f := newTestFeeder(s)
	f.Fetcher.Client = seed.Client()

	outcome, err := f.process(context.Background(), root)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %v", outcome)
	}

	var names []string
	for _, n := range s.Nodes() {
		if n.Label == model.LabelURL {
			names = append(names, n.Name)
		}
	}
	if len(names) != 1 || names[0] != "SUB.EXAMPLE.COM" {
		t.Fatalf("expected only SUB.EXAMPLE.COM to survive, got %v", names)
	}
}

// test the reaper's core loop: a nil Lease coordinator reports every node
// as expired (lease.Coordinator.Expired's documented nil behavior), so Reap
// must reset every IN_PROGRESS node to PENDING and leave Attempts untouched
// (SPEC_FULL §4.5 — a crash is not a fetch failure).
func TestReapResetsInProgressNodes(t *testing.T) {
	t.Parallel()

	s := memory.New()
	root := seedRoot(t, s, "STUCK.EXAMPLE", 2, model.ModeNormal)
	root.JobStatus = model.InProgress
	root.Attempts = 1
	if err := s.Push(context.Background(), root); err != nil {
		t.Fatalf("push in-progress root: %v", err)
	}

	f := newTestFeeder(s)

	n, err := f.Reap(context.Background())
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reaped node, got %d", n)
	}

	reloaded, err := s.MatchByKey(context.Background(), root.KeyOf())
	if err != nil {
		t.Fatalf("reload node: %v", err)
	}
	if reloaded.JobStatus != model.Pending {
		t.Fatalf("expected PENDING after reap, got %v", reloaded.JobStatus)
	}
	if reloaded.Attempts != 1 {
		t.Fatalf("expected attempts untouched at 1, got %d", reloaded.Attempts)
	}
}

// test that Reap leaves an already-pending node alone.
func TestReapIgnoresNonInProgressNodes(t *testing.T) {
	t.Parallel()

	s := memory.New()
	seedRoot(t, s, "IDLE.EXAMPLE", 1, model.ModeNormal)

	f := newTestFeeder(s)
	n, err := f.Reap(context.Background())
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 reaped nodes, got %d", n)
	}
}

// httpClientStub's Do always errors, simulating an unreachable host without
// depending on timing or a real closed port.
type httpClientStub struct{}

func (httpClientStub) Do(req *http.Request) (*http.Response, error) {
	return nil, errStubUnreachable
}
