package scheduler

import "github.com/homu-ci/homu/github"

// githubClient is the narrow slice of the platform client the scheduler
// needs, defined locally per package the way every component in this
// codebase pins its own minimal capability interface rather than depending
// on the concrete client type.
type githubClient interface {
	ListOpenPRs(owner, repo string) ([]github.PullRequest, error)
	GetPR(owner, repo string, number int) (*github.PullRequest, error)
	ListIssueComments(owner, repo string, number int) ([]github.IssueComment, error)
	ListReviewComments(owner, repo string, number int) ([]github.ReviewComment, error)
	ListCommitStatuses(owner, repo, sha string) ([]github.Status, error)
	CreateComment(owner, repo string, number int, body string) error
	GetRef(owner, repo, ref string) (string, error)
	CreateRef(owner, repo, ref, sha string) error
	ForceUpdateRef(owner, repo, ref, sha string) error
	Merge(owner, repo, base, head, message string) (string, error)
	CreateCommitStatus(owner, repo, sha string, s github.Status) error
}
