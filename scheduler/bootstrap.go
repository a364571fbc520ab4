package scheduler

import (
	"golang.org/x/sync/errgroup"

	"github.com/homu-ci/homu/config"
	"github.com/homu-ci/homu/github"
	"github.com/homu-ci/homu/queue"
)

// AddRepo registers a configured repository and picks its CI back-end.
// Call this for every repo before Bootstrap or Run.
func (s *Scheduler) AddRepo(cfg config.Repo) *Repo {
	r := newRepo(cfg, driverFor(cfg))
	s.repos[cfg.FullName()] = r
	return r
}

// Bootstrap populates every registered repo's live PR set from the
// platform, reconciling it against the persisted store (§3 startup
// invariants): a persisted row downgrades from pending to "" if its
// merge_sha never made it to disk, comments are replayed non-realtime to
// rebuild ephemeral fields (approved_by, priority, rollup, try_), and any
// store row with no corresponding live PR is deleted.
// Repos are independent: each only reads and writes its own rows and its
// own in-memory PR map, so bootstrapping fans out across them rather than
// waiting on one slow repo's worth of platform API calls before starting
// the next. This runs entirely before Run starts draining events, so it
// never races the event-loop goroutine's ownership of PR state.
func (s *Scheduler) Bootstrap() error {
	var eg errgroup.Group
	for _, repo := range s.repos {
		repo := repo
		eg.Go(func() error { return s.bootstrapRepo(repo) })
	}
	return eg.Wait()
}

func (s *Scheduler) bootstrapRepo(repo *Repo) error {
	prs, err := s.gh.ListOpenPRs(repo.Cfg.Owner, repo.Cfg.Name)
	if err != nil {
		return err
	}

	live := make(map[int]bool, len(prs))
	for _, p := range prs {
		live[p.Number] = true

		status, mergeSHA, err := s.initialStatus(repo, p)
		if err != nil {
			return err
		}

		pr := queue.New(repo.Cfg.Owner, repo.Cfg.Name, p.Number, p.Head.SHA, status, s.store, s.gh)
		pr.Title = p.Title
		pr.Body = p.Body
		pr.HeadRef = p.Head.Repo.Owner.Login + ":" + p.Head.Ref
		pr.BaseRef = p.Base.Ref
		if p.Assignee != nil {
			pr.Assignee = p.Assignee.Login
		}
		if mergeSHA != "" {
			// The persisted row carries a merge commit, possibly from a
			// build still in flight when the process last stopped. Re-seed
			// merge_sha and build_res so a CI callback that arrives for it
			// still has somewhere to land.
			pr.MergeSHA = mergeSHA
			builders, _ := repo.Cfg.BuildersFor(false)
			buildRes := make(map[string]*bool, len(builders))
			for _, b := range builders {
				buildRes[b] = nil
			}
			pr.BuildRes = buildRes
		}
		repo.PRs[p.Number] = pr

		s.replayComments(repo, pr)
	}

	return s.pruneStaleRows(repo, live)
}

// initialStatus resolves a PR's status and in-flight merge commit at
// startup: the persisted row if one exists (downgrading a stranded
// "pending" per the crash-recovery invariant), else the platform's own
// "homu" commit status, persisted for next time. The returned merge SHA is
// whatever merge_sha the persisted row carries, whatever its status: a
// finished build's merge_sha stays in the row, and it is dropped only with a
// stranded "pending" row. Callers must re-seed build_res for it themselves,
// since the builder set belongs to config, not the store.
func (s *Scheduler) initialStatus(repo *Repo, p github.PullRequest) (status, mergeSHA string, err error) {
	row, ok, err := s.store.Get(repo.Cfg.FullName(), p.Number)
	if err != nil {
		return "", "", err
	}
	if ok {
		if row.Status == queue.StatusPending && row.MergeSHA == "" {
			return queue.StatusNone, "", nil
		}
		return row.Status, row.MergeSHA, nil
	}

	status = queue.StatusNone
	statuses, err := s.gh.ListCommitStatuses(repo.Cfg.Owner, repo.Cfg.Name, p.Head.SHA)
	if err == nil {
		for _, st := range statuses {
			if st.Context == github.StatusContext {
				status = st.State
				break
			}
		}
	}
	if err := s.store.UpsertStatus(repo.Cfg.FullName(), p.Number, status); err != nil {
		return "", "", err
	}
	return status, "", nil
}

func (s *Scheduler) replayComments(repo *Repo, pr *queue.PR) {
	comments, err := s.gh.ListIssueComments(repo.Cfg.Owner, repo.Cfg.Name, pr.Number)
	if err != nil {
		s.log.WithError(err).WithField("pr", pr.Number).Warn("Failed to list issue comments during startup replay.")
	}
	for _, c := range comments {
		queue.ParseCommands(pr, queue.ParseInput{
			Body:      c.Body,
			Author:    c.User.Login,
			BotName:   s.botName,
			Reviewers: repo.Cfg.Reviewers,
			Realtime:  false,
		})
	}

	reviewComments, err := s.gh.ListReviewComments(repo.Cfg.Owner, repo.Cfg.Name, pr.Number)
	if err != nil {
		s.log.WithError(err).WithField("pr", pr.Number).Warn("Failed to list review comments during startup replay.")
	}
	for _, c := range reviewComments {
		if c.OriginalCommitID != pr.HeadSHA {
			continue
		}
		queue.ParseCommands(pr, queue.ParseInput{
			Body:      c.Body,
			Author:    c.User.Login,
			BotName:   s.botName,
			Reviewers: repo.Cfg.Reviewers,
			Sha:       c.OriginalCommitID,
			Realtime:  false,
		})
	}
}

func (s *Scheduler) pruneStaleRows(repo *Repo, live map[int]bool) error {
	rows, err := s.store.ScanAll()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Repo != repo.Cfg.FullName() {
			continue
		}
		if !live[row.Num] {
			if err := s.store.Delete(row.Repo, row.Num); err != nil {
				return err
			}
		}
	}
	return nil
}
