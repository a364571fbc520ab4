package scheduler

import (
	"github.com/homu-ci/homu/ci"
	"github.com/homu-ci/homu/config"
	"github.com/homu-ci/homu/queue"
)

// Repo is one managed repository's runtime state: its configuration, its
// live PR set, and the CI back-end it builds against.
type Repo struct {
	Cfg config.Repo
	PRs map[int]*queue.PR
	CI  ci.Driver
}

func newRepo(cfg config.Repo, driver ci.Driver) *Repo {
	return &Repo{
		Cfg: cfg,
		PRs: map[int]*queue.PR{},
		CI:  driver,
	}
}

func (r *Repo) sortedPRs() []*queue.PR {
	out := make([]*queue.PR, 0, len(r.PRs))
	for _, pr := range r.PRs {
		out = append(out, pr)
	}
	queue.SortPRs(out)
	return out
}

// driverFor picks a repo's CI back-end the same way config.Repo.BuildersFor
// picks its builder list: a Travis token means travis, always.
func driverFor(cfg config.Repo) ci.Driver {
	if cfg.UsesTravis() {
		return ci.NewTravisDriver(cfg.TravisToken)
	}
	return ci.NewBuildbotDriver(cfg.BuildbotURL, cfg.BuildbotUsername, cfg.BuildbotPassword)
}
