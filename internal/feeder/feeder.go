// Package feeder implements the Feeder worker loop (spec §4.4), the core of
// the distributed job-graph protocol: claim a pending node, fetch it,
// extract and filter links, resolve each candidate, and commit a child
// batch — or retry/give-up on fetch failure.
package feeder

import (
	"context"
	"math/rand"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/bluedotiya/web-crawler/internal/lease"
	"github.com/bluedotiya/web-crawler/internal/model"
	"github.com/bluedotiya/web-crawler/internal/probe"
	"github.com/bluedotiya/web-crawler/internal/store"
)

// Outcome is the result of one Tick, matching the worker lifecycle exit
// codes from spec §6: OutcomeNoWork maps to exit 2, every other outcome to
// exit 0, and a caller-surfaced error to exit 1.
type Outcome int

const (
	OutcomeNoWork Outcome = iota
	OutcomeCompleted
	OutcomeRetryScheduled
	OutcomeFailed
	OutcomeNoLead
)

// String names the outcome for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoWork:
		return "no-work"
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetryScheduled:
		return "retry-scheduled"
	case OutcomeFailed:
		return "failed"
	case OutcomeNoLead:
		return "no-lead"
	default:
		return "unknown"
	}
}

// giveUpThreshold is the attempts ceiling from spec §4.4 step 5: once
// attempts exceeds this (i.e. after the third failed attempt) the node is
// marked FAILED instead of retried.
const giveUpThreshold = 2

// Feeder holds everything one worker process needs for its tick loop. It
// carries no process-wide mutable handles (spec §9 mapping note): construct
// one per process and pass it explicitly.
type Feeder struct {
	Store    store.Graph
	Lease    *lease.Coordinator
	Fetcher  *probe.Fetcher
	Resolver probe.Resolver
	WorkerID string
	Logger   *charmlog.Logger

	// Jitter returns the randomized sleep duration for decorrelation
	// (spec §4.4 steps 1-2). Defaults to uniform 1-5s.
	Jitter func() time.Duration

	// Sleep performs the actual wait; overridable in tests.
	Sleep func(time.Duration)
}

// New returns a Feeder with the default 1-5s jitter and real time.Sleep.
func New(s store.Graph, l *lease.Coordinator, workerID string) *Feeder {
	return &Feeder{
		Store:    s,
		Lease:    l,
		Fetcher:  probe.NewFetcher(),
		Resolver: probe.SystemResolver(),
		WorkerID: workerID,
		Logger:   charmlog.Default(),
		Jitter:   defaultJitter,
		Sleep:    time.Sleep,
	}
}

func defaultJitter() time.Duration {
	return time.Duration(1+rand.Intn(5)) * time.Second
}

func (f *Feeder) jitter() time.Duration {
	if f.Jitter != nil {
		return f.Jitter()
	}
	return defaultJitter()
}

func (f *Feeder) sleep(d time.Duration) {
	if f.Sleep != nil {
		f.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (f *Feeder) log() *charmlog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return charmlog.Default()
}

// HealthGate blocks until the store (and the lease coordinator, when one is
// configured) is reachable, sleeping a jittered 1-5s between attempts (spec
// §4.4 step 1), or returns ctx.Err() if ctx is canceled while waiting.
func (f *Feeder) HealthGate(ctx context.Context) error {
	for {
		if err := f.Store.HealthCheck(ctx); err == nil {
			if err := f.Lease.Ping(ctx); err == nil {
				return nil
			}
		}
		f.log().Warn("store or lease coordinator unreachable, backing off")
		f.sleep(f.jitter())
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Reap scans every IN_PROGRESS node for an expired lease and resets it to
// PENDING, reclaiming work orphaned by a Feeder that crashed mid-claim
// (SPEC_FULL §4.5, Open Question 1). Attempts is left untouched: a crash is
// not a fetch failure. Callers must not invoke Reap with a nil f.Lease,
// since a nil Coordinator reports every node as expired (lease.Coordinator.Expired)
// and would reset work still legitimately in progress.
func (f *Feeder) Reap(ctx context.Context) (int, error) {
	nodes, _, err := f.Store.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, n := range nodes {
		if n.JobStatus != model.InProgress {
			continue
		}

		expired, err := f.Lease.Expired(ctx, n.ID)
		if err != nil {
			return reaped, err
		}
		if !expired {
			continue
		}

		n.JobStatus = model.Pending
		if err := f.Store.Push(ctx, n); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

// ReapLoop runs Reap on a fixed interval until ctx is canceled, logging
// each pass. Intended to run in its own goroutine alongside Tick.
func (f *Feeder) ReapLoop(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := f.Reap(ctx)
		if err != nil {
			f.log().Warn("reap pass failed", "err", err)
		} else if n > 0 {
			f.log().Info("reaped expired leases", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Tick runs exactly one iteration of the Feeder's loop body (spec §4.4).
func (f *Feeder) Tick(ctx context.Context) (Outcome, error) {
	if err := f.HealthGate(ctx); err != nil {
		return OutcomeNoWork, err
	}

	f.sleep(f.jitter())

	node, err := f.Store.MatchPending(ctx)
	if err != nil {
		return OutcomeNoWork, err
	}
	if node == nil {
		return OutcomeNoWork, nil
	}

	return f.process(ctx, node)
}

// process runs steps 4-11 of spec §4.4 against the claimed node.
func (f *Feeder) process(ctx context.Context, node *model.Node) (Outcome, error) {
	node.JobStatus = model.InProgress
	if err := f.Store.Push(ctx, node); err != nil {
		return OutcomeNoWork, err
	}

	if err := f.Lease.Acquire(ctx, node.ID, f.WorkerID); err != nil {
		f.log().Warn("lease not acquired, yielding node to its current holder", "node", node.Name, "err", err)
		return OutcomeNoWork, nil
	}
	defer f.Lease.Release(ctx, node.ID, f.WorkerID)

	timeout := probe.AttemptTimeout(node.Attempts)
	result, ferr := f.Fetcher.Fetch(ctx, f.url(node), timeout)
	if ferr != nil {
		return f.retryOrFail(ctx, node)
	}
	node.RequestTimeMS = result.Elapsed.Milliseconds()

	links := probe.Extract(result.Body)
	candidates := coalesce(links)

	existing, err := f.Store.ExistingNames(ctx)
	if err != nil {
		return OutcomeNoWork, err
	}
	for name := range existing {
		delete(candidates, name)
	}

	if len(candidates) == 0 {
		return f.terminal(ctx, node, model.NoLead)
	}

	children := f.buildChildren(ctx, node, candidates)
	if len(children) == 0 {
		return f.terminal(ctx, node, model.NoLead)
	}

	if _, err := f.Store.CreateBatch(ctx, node, children); err != nil {
		return OutcomeNoWork, err
	}
	return f.terminal(ctx, node, model.Completed)
}

// url reconstructs a fetchable absolute URL from the node's scheme and name.
func (f *Feeder) url(node *model.Node) string {
	return string(node.HTTPType) + node.Name
}

// coalesce normalizes every extracted link and coalesces them into a set
// keyed by name, remembering the LAST scheme seen per name (spec §4.4 step
// 7).
func coalesce(links []string) map[string]string {
	out := make(map[string]string)
	for _, l := range links {
		name, scheme := probe.Normalize(l)
		out[name] = scheme
	}
	return out
}

// buildChildren implements spec §4.4 step 10 for every surviving candidate.
func (f *Feeder) buildChildren(ctx context.Context, parent *model.Node, candidates map[string]string) []*model.Node {
	childDepth := parent.CurrentDepth + 1

	childStatus := model.Pending
	if childDepth == parent.RequestedDepth {
		childStatus = model.Restricted
	}

	children := make([]*model.Node, 0, len(candidates))
	for name, scheme := range candidates {
		resolution, ok := probe.Resolve(ctx, f.resolver(), name)
		if !ok {
			continue
		}
		if parent.SearchMode == model.ModeDomain && resolution.Domain != parent.Domain {
			continue
		}

		children = append(children, &model.Node{
			Label:          model.LabelURL,
			Name:           name,
			HTTPType:       model.HTTPType(scheme),
			IP:             resolution.IPv4,
			Domain:         resolution.Domain,
			RequestedDepth: parent.RequestedDepth,
			CurrentDepth:   childDepth,
			JobStatus:      childStatus,
			Attempts:       0,
			SearchMode:     parent.SearchMode,
		})
	}
	return children
}

func (f *Feeder) resolver() probe.Resolver {
	if f.Resolver != nil {
		return f.Resolver
	}
	return probe.SystemResolver()
}

// retryOrFail implements spec §4.4 step 5's failure branch.
func (f *Feeder) retryOrFail(ctx context.Context, node *model.Node) (Outcome, error) {
	node.Attempts++

	if node.Attempts > giveUpThreshold {
		node.JobStatus = model.Failed
		if err := f.Store.Push(ctx, node); err != nil {
			return OutcomeNoWork, err
		}
		return OutcomeFailed, nil
	}

	// Retryable: reset to PENDING so the node is reclaimable (spec §4.4
	// step 5, Open Question 3's decided behavior).
	node.JobStatus = model.Pending
	if err := f.Store.Push(ctx, node); err != nil {
		return OutcomeNoWork, err
	}
	return OutcomeRetryScheduled, nil
}

// terminal pushes a terminal status and returns the matching Outcome.
func (f *Feeder) terminal(ctx context.Context, node *model.Node, status model.JobStatus) (Outcome, error) {
	node.JobStatus = status
	if err := f.Store.Push(ctx, node); err != nil {
		return OutcomeNoWork, err
	}
	if status == model.Completed {
		return OutcomeCompleted, nil
	}
	return OutcomeNoLead, nil
}
