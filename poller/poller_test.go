package poller

import (
	"context"
	"testing"
	"time"

	"github.com/homu-ci/homu/config"
	"github.com/homu-ci/homu/github"
	"github.com/homu-ci/homu/queue"
	"github.com/homu-ci/homu/scheduler"
	"github.com/homu-ci/homu/store"
)

// fakeSchedClient implements the scheduler package's narrow platform
// interface. None of its methods are exercised by these tests; the poller
// never calls through to the scheduler's own platform client, only through
// its own narrower one.
type fakeSchedClient struct{}

func (fakeSchedClient) ListOpenPRs(owner, repo string) ([]github.PullRequest, error) { return nil, nil }
func (fakeSchedClient) GetPR(owner, repo string, number int) (*github.PullRequest, error) {
	return &github.PullRequest{Number: number}, nil
}
func (fakeSchedClient) ListIssueComments(owner, repo string, number int) ([]github.IssueComment, error) {
	return nil, nil
}
func (fakeSchedClient) ListReviewComments(owner, repo string, number int) ([]github.ReviewComment, error) {
	return nil, nil
}
func (fakeSchedClient) ListCommitStatuses(owner, repo, sha string) ([]github.Status, error) {
	return nil, nil
}
func (fakeSchedClient) CreateComment(owner, repo string, number int, body string) error { return nil }
func (fakeSchedClient) GetRef(owner, repo, ref string) (string, error)                 { return "", nil }
func (fakeSchedClient) CreateRef(owner, repo, ref, sha string) error                    { return nil }
func (fakeSchedClient) ForceUpdateRef(owner, repo, ref, sha string) error               { return nil }
func (fakeSchedClient) Merge(owner, repo, base, head, message string) (string, error) {
	return "", nil
}
func (fakeSchedClient) CreateCommitStatus(owner, repo, sha string, s github.Status) error {
	return nil
}

// fakePollerClient is the poller's own platform capability: GetPR only.
type fakePollerClient struct {
	mergeable map[int]*bool
}

func (f *fakePollerClient) GetPR(owner, repo string, number int) (*github.PullRequest, error) {
	return &github.PullRequest{Number: number, Mergeable: f.mergeable[number]}, nil
}

func falseVal() *bool { v := false; return &v }

func newTestScheduler(t *testing.T) (*scheduler.Scheduler, *queue.PR) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sched := scheduler.New(fakeSchedClient{}, st, "homu")
	repo := sched.AddRepo(config.Repo{
		Owner: "o", Name: "r",
		MasterBranch: "master", TmpBranch: "auto",
		BuildbotBranch: "auto-tested", BuildbotTryBranch: "try-tested",
		Builders: []string{"b"}, TryBuilders: []string{"b"},
	})
	pr := queue.New("o", "r", 1, "aaaa", queue.StatusNone, st, fakeSchedClient{})
	repo.PRs[1] = pr

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sched.Run(ctx)

	return sched, pr
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestPollOnceReportsMergeability(t *testing.T) {
	sched, pr := newTestScheduler(t)
	p := New(&fakePollerClient{mergeable: map[int]*bool{1: falseVal()}}, sched)

	p.pollOnce()

	waitUntil(t, func() bool { return pr.Mergeable == queue.MergeableNo })
}

func TestPollOnceSkipsUnknownPlatformMergeability(t *testing.T) {
	sched, pr := newTestScheduler(t)
	p := New(&fakePollerClient{mergeable: map[int]*bool{}}, sched)

	p.pollOnce()

	time.Sleep(20 * time.Millisecond)
	if pr.Mergeable != queue.MergeableUnknown {
		t.Errorf("Mergeable = %v, want still unknown", pr.Mergeable)
	}
}
