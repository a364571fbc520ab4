// Package poller is the mergeability poller (C7): on a fixed cadence it
// asks the event loop which PRs have an unknown mergeable state, checks
// each against the platform, and reports results back. It never touches
// PR state directly, keeping the scheduler's single-writer discipline
// structural rather than merely documented.
package poller

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/homu-ci/homu/github"
	"github.com/homu-ci/homu/scheduler"
)

// githubClient is the one capability this package needs, pinned locally as
// every consumer of the platform client does in this codebase.
type githubClient interface {
	GetPR(owner, repo string, number int) (*github.PullRequest, error)
}

// Poller drives GetPR calls for every PR the scheduler reports as
// mergeable-unknown, on a cron schedule.
type Poller struct {
	gh    githubClient
	sched *scheduler.Scheduler
	cron  *cron.Cron
	log   *logrus.Entry
}

// New constructs a Poller. It does not poll until Start is called with a
// schedule; DefaultSchedule, matching the original bot, is every 60 seconds.
func New(gh githubClient, sched *scheduler.Scheduler) *Poller {
	return &Poller{
		gh:    gh,
		sched: sched,
		log:   logrus.WithField("component", "poller"),
	}
}

// DefaultSchedule polls every 60 seconds.
const DefaultSchedule = "@every 60s"

// Start begins polling on schedule (a cron spec, e.g. DefaultSchedule) and
// returns immediately; polling continues on cron's own goroutine until
// Stop is called.
func (p *Poller) Start(schedule string) error {
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(schedule, p.pollOnce); err != nil {
		return err
	}
	p.cron.Start()
	return nil
}

// Stop halts future polls. Any poll already in flight completes normally.
func (p *Poller) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

func (p *Poller) pollOnce() {
	reply := make(chan []scheduler.PRKey, 1)
	p.sched.Submit(scheduler.MergeabilityQuery{Reply: reply})
	unknown := <-reply

	for _, key := range unknown {
		pr, err := p.gh.GetPR(key.Owner, key.Repo, key.Number)
		if err != nil {
			p.log.WithError(err).WithField("pr", key.Number).Warn("Failed to refresh mergeability; will retry next cycle.")
			continue
		}
		if pr.Mergeable == nil {
			// The platform hasn't finished computing mergeability yet.
			continue
		}
		p.sched.Submit(scheduler.MergeabilityResult{Key: key, Mergeable: *pr.Mergeable})
	}
}
