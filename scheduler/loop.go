// Package scheduler owns the single-writer event loop: one goroutine
// mutates every PR's state, the build slot, and the persisted store. The
// webhook server, the CI-callback handler, and the mergeability poller
// never touch that state directly — they only ever send Events.
package scheduler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/homu-ci/homu/queue"
	"github.com/homu-ci/homu/store"
)

// Persister is the subset of the state store the scheduler drives
// directly, beyond what it hands down to individual PRs.
type Persister interface {
	Get(repo string, num int) (store.Row, bool, error)
	ScanAll() ([]store.Row, error)
	UpsertStatus(repo string, num int, status string) error
	UpdateMergeSHA(repo string, num int, mergeSHA string) error
	Delete(repo string, num int) error
}

// Scheduler is the event-loop owner: the only goroutine that may read or
// write PR state, the build slot, or the persisted store.
type Scheduler struct {
	gh      githubClient
	store   Persister
	slot    *Slot
	repos   map[string]*Repo // keyed by "owner/repo"
	botName string
	events  chan Event
	log     *logrus.Entry
}

// New constructs a Scheduler with an empty repo set; call AddRepo for each
// configured repository before Bootstrap or Run.
func New(gh githubClient, persister Persister, botName string) *Scheduler {
	return &Scheduler{
		gh:      gh,
		store:   persister,
		slot:    &Slot{},
		repos:   map[string]*Repo{},
		botName: botName,
		events:  make(chan Event, 256),
		log:     logrus.WithField("component", "scheduler"),
	}
}

// Submit enqueues an event for the event-loop goroutine. Safe to call from
// any goroutine; this is the only way anything outside Run may influence
// PR state.
func (s *Scheduler) Submit(ev Event) {
	s.events <- ev
}

// Run drains the event channel until ctx is canceled. It is meant to run
// in its own goroutine for the lifetime of the process.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Scheduler) handle(ev Event) {
	switch e := ev.(type) {
	case CommentEvent:
		s.handleComment(e)
	case PushEvent:
		s.handlePush(e)
	case BuildResultEvent:
		s.handleBuildResult(e)
	case PROpenedEvent:
		s.handlePROpened(e)
	case PRClosedEvent:
		s.handlePRClosed(e)
	case MergeabilityQuery:
		s.handleMergeabilityQuery(e)
	case MergeabilityResult:
		s.handleMergeabilityResult(e)
	default:
		s.log.Warnf("unrecognized event type %T", ev)
		return
	}
	s.tick()
}

func (s *Scheduler) repoKey(owner, repo string) string {
	return owner + "/" + repo
}

func (s *Scheduler) handleComment(e CommentEvent) {
	repo, pr := s.lookup(e.Owner, e.Repo, e.Number)
	if repo == nil || pr == nil {
		return
	}
	var activeCI queue.StopCI
	var builders []string
	if s.slot.Busy() && pr.MergeSHA != "" {
		activeCI = repo.CI
		builders, _ = repo.Cfg.BuildersFor(pr.Try)
	}
	queue.ParseCommands(pr, queue.ParseInput{
		Body:      e.Body,
		Author:    e.Author,
		BotName:   s.botName,
		Reviewers: repo.Cfg.Reviewers,
		Sha:       e.Sha,
		Realtime:  e.Realtime,
		ActiveCI:  activeCI,
		Builders:  builders,
	})
}

func (s *Scheduler) handlePush(e PushEvent) {
	_, pr := s.lookup(e.Owner, e.Repo, e.Number)
	if pr == nil {
		return
	}
	pr.HeadAdvanced(e.HeadSHA)
}

func (s *Scheduler) handleBuildResult(e BuildResultEvent) {
	for _, repo := range s.repos {
		for _, pr := range repo.PRs {
			if pr.MergeSHA != "" && pr.MergeSHA == e.MergeSHA {
				s.recordBuildResult(pr, repo, e.Builder, e.Passed)
				return
			}
		}
	}
}

func (s *Scheduler) handlePROpened(e PROpenedEvent) {
	repo := s.repos[s.repoKey(e.Owner, e.Repo)]
	if repo == nil {
		return
	}
	if _, exists := repo.PRs[e.Number]; exists {
		return
	}
	status := ""
	if row, ok, _ := s.store.Get(repo.Cfg.FullName(), e.Number); ok {
		status = row.Status
	}
	pr := queue.New(e.Owner, e.Repo, e.Number, e.HeadSHA, status, s.store, s.gh)
	pr.Title, pr.Body, pr.HeadRef, pr.BaseRef, pr.Assignee = e.Title, e.Body, e.HeadRef, e.BaseRef, e.Assignee
	repo.PRs[e.Number] = pr
	s.store.UpsertStatus(repo.Cfg.FullName(), e.Number, status)
}

func (s *Scheduler) handlePRClosed(e PRClosedEvent) {
	repo := s.repos[s.repoKey(e.Owner, e.Repo)]
	if repo == nil {
		return
	}
	delete(repo.PRs, e.Number)
	s.store.Delete(repo.Cfg.FullName(), e.Number)
}

func (s *Scheduler) handleMergeabilityQuery(e MergeabilityQuery) {
	var unknown []PRKey
	for _, repo := range s.repos {
		for _, pr := range repo.PRs {
			if pr.Mergeable == queue.MergeableUnknown {
				unknown = append(unknown, PRKey{Owner: pr.Owner, Repo: pr.Repo, Number: pr.Number})
			}
		}
	}
	e.Reply <- unknown
}

func (s *Scheduler) handleMergeabilityResult(e MergeabilityResult) {
	_, pr := s.lookup(e.Key.Owner, e.Key.Repo, e.Key.Number)
	if pr == nil {
		return
	}
	if e.Mergeable {
		pr.Mergeable = queue.MergeableYes
	} else {
		pr.Mergeable = queue.MergeableNo
	}
}

func (s *Scheduler) lookup(owner, repo string, number int) (*Repo, *queue.PR) {
	r := s.repos[s.repoKey(owner, repo)]
	if r == nil {
		return nil, nil
	}
	return r, r.PRs[number]
}

// tick is the scheduler loop (C6): after every mutation, walk each repo's
// queue and start at most one build. The original implementation returns
// from the whole pass the moment any repo starts a build — including a try
// build that didn't even need the slot — rather than letting independent
// repositories each start one. That quirk is preserved here rather than
// "fixed": nothing in this system depends on multiple repos progressing in
// the same tick, and the next event re-invokes tick() immediately anyway.
func (s *Scheduler) tick() {
	for _, repo := range s.repos {
		sorted := repo.sortedPRs()

		for _, pr := range sorted {
			if pr.Status == queue.StatusPending && !pr.Try {
				break
			}
			if pr.Status == queue.StatusNone && pr.ApprovedBy != "" {
				if s.startBuild(pr, repo, false) == outcomeStarted {
					return
				}
				continue
			}
			if pr.Status == queue.StatusSuccess && pr.Try && pr.ApprovedBy != "" {
				pr.Try = false
				if s.startBuild(pr, repo, false) == outcomeStarted {
					return
				}
				continue
			}
		}

		for _, pr := range sorted {
			if pr.Status == queue.StatusNone && pr.Try {
				if s.startBuild(pr, repo, true) == outcomeStarted {
					return
				}
			}
		}
	}
}
