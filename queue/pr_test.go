package queue

import (
	"fmt"
	"testing"

	"github.com/go-test/deep"
)

type fakePersister struct {
	statuses map[string]string
	shas     map[string]string
}

func newFakePersister() *fakePersister {
	return &fakePersister{statuses: map[string]string{}, shas: map[string]string{}}
}

func (f *fakePersister) UpsertStatus(repo string, num int, status string) error {
	f.statuses[key(repo, num)] = status
	return nil
}

func (f *fakePersister) UpdateMergeSHA(repo string, num int, sha string) error {
	f.shas[key(repo, num)] = sha
	return nil
}

func key(repo string, num int) string {
	return fmt.Sprintf("%s#%d", repo, num)
}

type fakeCommenter struct {
	posted []string
}

func (f *fakeCommenter) CreateComment(owner, repo string, number int, body string) error {
	f.posted = append(f.posted, body)
	return nil
}

func TestHeadAdvancedResetsEphemeralFields(t *testing.T) {
	p := New("rust-lang", "rust", 1, "aaaa", StatusPending, nil, nil)
	p.ApprovedBy = "alice"
	p.Try = true
	p.MergeSHA = "deadbeef"
	p.BuildRes = map[string]*bool{"builder-a": nil}
	p.Mergeable = MergeableYes

	p.HeadAdvanced("bbbb")

	want := &PR{
		Owner: "rust-lang", Repo: "rust", Number: 1,
		HeadSHA:   "bbbb",
		Status:    StatusNone,
		Mergeable: MergeableUnknown,
	}
	if diff := deep.Equal(p, want); diff != nil {
		t.Errorf("HeadAdvanced did not reset ephemeral fields: %v", diff)
	}
}

func TestEffectiveStatus(t *testing.T) {
	cases := []struct {
		name       string
		status     string
		approvedBy string
		mergeable  Mergeable
		want       string
	}{
		{"unapproved empty", StatusNone, "", MergeableUnknown, StatusNone},
		{"approved unknown mergeability", StatusNone, "alice", MergeableUnknown, StatusApproved},
		{"approved known mergeable", StatusNone, "alice", MergeableYes, StatusApproved},
		{"approved but conflicting", StatusNone, "alice", MergeableNo, StatusNone},
		{"pending overrides approval", StatusPending, "alice", MergeableYes, StatusPending},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := &PR{Status: c.status, ApprovedBy: c.approvedBy, Mergeable: c.mergeable}
			if got := p.EffectiveStatus(); got != c.want {
				t.Errorf("EffectiveStatus() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestSetStatusPersists(t *testing.T) {
	fp := newFakePersister()
	p := New("o", "r", 5, "aaaa", StatusNone, fp, nil)
	p.SetStatus(StatusPending)
	if fp.statuses[key("o/r", 5)] != StatusPending {
		t.Errorf("persisted status = %q, want pending", fp.statuses[key("o/r", 5)])
	}
}

func TestSetMergeSHASkipsPersistForTry(t *testing.T) {
	fp := newFakePersister()
	p := New("o", "r", 5, "aaaa", StatusNone, fp, nil)
	p.Try = true
	p.SetMergeSHA("deadbeef")
	if _, ok := fp.shas[key("o/r", 5)]; ok {
		t.Errorf("try build's merge_sha should not be persisted")
	}
	if p.MergeSHA != "deadbeef" {
		t.Errorf("in-memory MergeSHA not set")
	}
}

func TestAllBuildsKnownAndAnyFailed(t *testing.T) {
	p := &PR{}
	if p.AllBuildsKnown() {
		t.Errorf("empty BuildRes should not be all-known")
	}
	pass, fail := true, false
	p.BuildRes = map[string]*bool{"a": &pass, "b": nil}
	if p.AllBuildsKnown() {
		t.Errorf("partial BuildRes should not be all-known")
	}
	p.BuildRes["b"] = &fail
	if !p.AllBuildsKnown() {
		t.Errorf("full BuildRes should be all-known")
	}
	if !p.AnyBuildFailed() {
		t.Errorf("expected a failure to be detected")
	}
}

func TestEqual(t *testing.T) {
	a := &PR{Owner: "o", Repo: "r", Number: 1}
	b := &PR{Owner: "o", Repo: "r", Number: 1}
	c := &PR{Owner: "o", Repo: "r", Number: 2}
	if !a.Equal(b) {
		t.Errorf("expected equal PRs")
	}
	if a.Equal(c) {
		t.Errorf("expected different PRs to be unequal")
	}
	if a.Equal(nil) {
		t.Errorf("expected Equal(nil) == false")
	}
}

func TestAddCommentUsesCommenter(t *testing.T) {
	fc := &fakeCommenter{}
	p := New("o", "r", 1, "aaaa", StatusNone, nil, fc)
	if err := p.AddComment("hello"); err != nil {
		t.Fatalf("AddComment() error: %v", err)
	}
	if len(fc.posted) != 1 || fc.posted[0] != "hello" {
		t.Errorf("posted = %v", fc.posted)
	}
}
