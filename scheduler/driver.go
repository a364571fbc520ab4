package scheduler

import (
	"fmt"

	"github.com/homu-ci/homu/github"
	"github.com/homu-ci/homu/queue"
)

// buildOutcome is startBuild's result, matching the original's "wait" /
// "failed" / "started" vocabulary.
type buildOutcome int

const (
	outcomeWait buildOutcome = iota
	outcomeFailed
	outcomeStarted
	outcomeStale
)

// startBuild runs the speculative-merge protocol (§4.5): stage the PR's
// head onto the target branch's tip, merge, and on success push the result
// to the CI destination branch. Returns outcomeWait without any I/O if the
// build slot is busy and this is a gated build.
func (s *Scheduler) startBuild(pr *queue.PR, repo *Repo, try bool) buildOutcome {
	if !try && s.slot.Busy() {
		return outcomeWait
	}

	live, err := s.gh.GetPR(pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		s.log.WithError(err).WithField("pr", pr.Number).Error("Failed to re-check PR head before starting a build.")
		return outcomeWait
	}
	if live.Head.SHA != pr.HeadSHA {
		s.log.WithField("pr", pr.Number).Info("Head moved since this PR was queued; skipping this attempt.")
		return outcomeStale
	}

	masterSHA, err := s.gh.GetRef(pr.Owner, pr.Repo, "heads/"+repo.Cfg.MasterBranch)
	if err != nil {
		s.log.WithError(err).Error("Failed to read the target branch tip.")
		return outcomeWait
	}
	if err := setRef(s.gh, pr.Owner, pr.Repo, repo.Cfg.TmpBranch, masterSHA); err != nil {
		s.log.WithError(err).Error("Failed to stage the tmp branch.")
		return outcomeWait
	}

	approver := pr.ApprovedBy
	if try {
		approver = "<try>"
	}
	mergeMsg := fmt.Sprintf("Auto merge of #%d - %s, r=%s\n\n%s", pr.Number, pr.HeadRef, approver, pr.Body)

	mergeSHA, err := s.gh.Merge(pr.Owner, pr.Repo, repo.Cfg.TmpBranch, pr.HeadSHA, mergeMsg)
	if err != nil {
		if _, ok := err.(*github.MergeConflictError); ok {
			pr.SetStatus(queue.StatusError)
			s.gh.CreateCommitStatus(pr.Owner, pr.Repo, pr.HeadSHA, github.Status{
				State:       github.StateError,
				Description: "Merge conflict",
				Context:     github.StatusContext,
			})
			pr.AddComment(":umbrella: Merge conflict")
			return outcomeFailed
		}
		s.log.WithError(err).Error("Transient error starting a build.")
		return outcomeWait
	}

	builders, branch := repo.Cfg.BuildersFor(try)
	if err := setRef(s.gh, pr.Owner, pr.Repo, branch, mergeSHA); err != nil {
		s.log.WithError(err).Error("Failed to push the merge commit to the CI branch.")
		return outcomeWait
	}

	buildRes := make(map[string]*bool, len(builders))
	for _, b := range builders {
		buildRes[b] = nil
	}
	pr.BuildRes = buildRes
	pr.Try = try
	pr.SetMergeSHA(mergeSHA)

	if !try {
		s.slot.TryClaim(mergeSHA)
	}

	verb := "Testing"
	if try {
		verb = "Trying"
	}
	desc := fmt.Sprintf("%s commit %s with merge %s...", verb, shortSHA(pr.HeadSHA), shortSHA(mergeSHA))
	s.gh.CreateCommitStatus(pr.Owner, pr.Repo, pr.HeadSHA, github.Status{
		State:       github.StatePending,
		Description: desc,
		Context:     github.StatusContext,
	})
	pr.SetStatus(queue.StatusPending)
	pr.AddComment(":hourglass: " + desc)

	buildsStarted.WithLabelValues(repo.Cfg.FullName()).Inc()
	s.log.WithField("pr", pr.Number).WithField("merge_sha", mergeSHA).Info("Started build.")
	return outcomeStarted
}

func shortSHA(sha string) string {
	if len(sha) < 7 {
		return sha
	}
	return sha[:7]
}

// setRef force-moves branch to sha, creating it first if it doesn't exist
// yet — mirroring the original's update-or-create ref helper.
func setRef(gh githubClient, owner, repo, branch, sha string) error {
	if err := gh.ForceUpdateRef(owner, repo, "heads/"+branch, sha); err != nil {
		return gh.CreateRef(owner, repo, "refs/heads/"+branch, sha)
	}
	return nil
}

// recordBuildResult applies one builder's outcome to the PR building
// mergeSHA, and if every builder has now reported in, finalizes the build
// (§4.5 "Build completion").
func (s *Scheduler) recordBuildResult(pr *queue.PR, repo *Repo, builder string, passed bool) {
	if pr.BuildRes == nil {
		return
	}
	if _, tracked := pr.BuildRes[builder]; !tracked {
		return
	}
	p := passed
	pr.BuildRes[builder] = &p

	if !pr.AllBuildsKnown() {
		return
	}

	if pr.AnyBuildFailed() {
		pr.SetStatus(queue.StatusFailure)
		if !pr.Try {
			s.slot.Release(pr.MergeSHA)
		}
		s.gh.CreateCommitStatus(pr.Owner, pr.Repo, pr.HeadSHA, github.Status{
			State:       github.StateFailure,
			Description: fmt.Sprintf("Test failed at %s", shortSHA(pr.MergeSHA)),
			Context:     github.StatusContext,
		})
		pr.AddComment(fmt.Sprintf(":broken_heart: Test failed at %s", shortSHA(pr.MergeSHA)))
		buildsFailed.WithLabelValues(repo.Cfg.FullName()).Inc()
		return
	}

	pr.SetStatus(queue.StatusSuccess)
	buildsSucceeded.WithLabelValues(repo.Cfg.FullName()).Inc()
	if !pr.Try {
		if err := setRef(s.gh, pr.Owner, pr.Repo, repo.Cfg.MasterBranch, pr.MergeSHA); err != nil {
			s.log.WithError(err).Error("Failed to fast-forward the target branch after a successful build.")
		}
		s.slot.Release(pr.MergeSHA)
		s.gh.CreateCommitStatus(pr.Owner, pr.Repo, pr.HeadSHA, github.Status{
			State:       github.StateSuccess,
			Description: fmt.Sprintf("Test successful at %s", shortSHA(pr.MergeSHA)),
			Context:     github.StatusContext,
		})
		pr.AddComment(fmt.Sprintf(":sunny: Test successful at %s - merged", shortSHA(pr.MergeSHA)))
		return
	}

	s.gh.CreateCommitStatus(pr.Owner, pr.Repo, pr.HeadSHA, github.Status{
		State:       github.StateSuccess,
		Description: fmt.Sprintf("Try build successful at %s", shortSHA(pr.MergeSHA)),
		Context:     github.StatusContext,
	})
	pr.AddComment(fmt.Sprintf(":sunny: Try build successful at %s", shortSHA(pr.MergeSHA)))
}
