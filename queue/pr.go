// Package queue implements the in-memory pull-request state machine: the
// attributes a PR carries while it moves through review and the gated merge
// pipeline, and the total order that decides which PR builds next.
package queue

// Mergeable is a tri-state: the platform hasn't told us yet, or it has and
// the PR either merges cleanly or it doesn't.
type Mergeable int

const (
	// MergeableUnknown means C7 hasn't polled this PR yet.
	MergeableUnknown Mergeable = iota
	// MergeableYes means the PR merges cleanly into its base branch.
	MergeableYes
	// MergeableNo means the PR conflicts with its base branch.
	MergeableNo
)

// Raw persisted status values (§3 of the design).
const (
	StatusNone    = ""
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"

	// StatusApproved is never persisted; it is derived (§3, "effective status").
	StatusApproved = "approved"
)

// Persister is the subset of the state store a PR needs to stay durable.
// Satisfied by *store.Store; split out here so PR has no import-cycle back
// to the store package's concrete type.
type Persister interface {
	UpsertStatus(repo string, num int, status string) error
	UpdateMergeSHA(repo string, num int, mergeSHA string) error
}

// Commenter posts the bot's comments back to the platform. Satisfied by
// *github.Client.
type Commenter interface {
	CreateComment(owner, repo string, number int, body string) error
}

// PR is the in-memory model of one open pull request. It is owned
// exclusively by the scheduler's single event-loop goroutine; nothing else
// may mutate it.
type PR struct {
	Owner  string
	Repo   string
	Number int

	HeadSHA string
	// Status is the raw persisted value; use EffectiveStatus for queue
	// ordering and display.
	Status     string
	ApprovedBy string
	Priority   int
	Rollup     bool
	Try        bool
	MergeSHA   string
	// BuildRes maps builder name to its result: nil means still pending.
	BuildRes  map[string]*bool
	Mergeable Mergeable

	Title, Body, HeadRef, BaseRef, Assignee string

	persister Persister
	commenter Commenter
}

// New constructs a PR freshly observed from the platform (status/head_sha
// come from the platform or, on startup, from the store).
func New(owner, repo string, number int, headSHA, status string, persister Persister, commenter Commenter) *PR {
	p := &PR{
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		persister: persister,
		commenter: commenter,
	}
	// head_advanced with use_db=false in the original: reset ephemeral
	// fields without a redundant persisted write on construction.
	p.reset()
	p.HeadSHA = headSHA
	p.Status = status
	return p
}

func (p *PR) reset() {
	p.ApprovedBy = ""
	p.Status = StatusNone
	p.MergeSHA = ""
	p.BuildRes = nil
	p.Try = false
	p.Mergeable = MergeableUnknown
}

// FullName is "owner/repo", the key this PR's repo is tracked under.
func (p *PR) FullName() string {
	return p.Owner + "/" + p.Repo
}

// HeadAdvanced resets the PR per the push invariant (§3): a new head_sha
// invalidates any approval, in-flight build, and mergeability guess.
func (p *PR) HeadAdvanced(newSHA string) {
	p.HeadSHA = newSHA
	p.reset()
	p.SetStatus(StatusNone)
}

// SetStatus sets the raw persisted status and writes it through.
func (p *PR) SetStatus(status string) {
	p.Status = status
	if p.persister != nil {
		p.persister.UpsertStatus(p.FullName(), p.Number, status)
	}
}

// SetMergeSHA records the speculative merge commit and persists it. Per the
// design, try builds never persist their merge_sha: a crash mid-try loses
// its identity, which is acceptable because try builds aren't load-bearing.
func (p *PR) SetMergeSHA(sha string) {
	p.MergeSHA = sha
	if !p.Try && p.persister != nil {
		p.persister.UpdateMergeSHA(p.FullName(), p.Number, sha)
	}
}

// EffectiveStatus is the derived status used for display and ordering: an
// approved-but-not-yet-building PR reports "approved" rather than "".
func (p *PR) EffectiveStatus() string {
	if p.Status == StatusNone && p.ApprovedBy != "" && p.Mergeable != MergeableNo {
		return StatusApproved
	}
	return p.Status
}

// AddComment posts text to the PR's issue timeline.
func (p *PR) AddComment(text string) error {
	if p.commenter == nil {
		return nil
	}
	return p.commenter.CreateComment(p.Owner, p.Repo, p.Number, text)
}

// AllBuildsKnown reports whether every builder in BuildRes has reported in.
func (p *PR) AllBuildsKnown() bool {
	if len(p.BuildRes) == 0 {
		return false
	}
	for _, res := range p.BuildRes {
		if res == nil {
			return false
		}
	}
	return true
}

// AnyBuildFailed reports whether any reported-in builder failed.
func (p *PR) AnyBuildFailed() bool {
	for _, res := range p.BuildRes {
		if res != nil && !*res {
			return true
		}
	}
	return false
}

// Equal compares PRs by identity, matching the original's equality-by-key
// semantics (two PR objects are "the same PR" iff repo and number match).
func (p *PR) Equal(other *PR) bool {
	if other == nil {
		return false
	}
	return p.FullName() == other.FullName() && p.Number == other.Number
}
