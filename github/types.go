/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package github

// User is a GitHub account, as embedded in issues, comments and refs.
type User struct {
	Login string `json:"login"`
}

// Repo identifies a repository by owner and name.
type Repo struct {
	Owner User  `json:"owner"`
	Name  string `json:"name"`
}

// Branch is one side (head or base) of a pull request.
type Branch struct {
	SHA  string `json:"sha"`
	Ref  string `json:"ref"`
	Repo Repo   `json:"repo"`
}

// PullRequest is the subset of the GitHub pull request resource this bot
// reads.
type PullRequest struct {
	Number    int     `json:"number"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	Mergeable *bool   `json:"mergeable"`
	Assignee  *User   `json:"assignee"`
	Head      Branch  `json:"head"`
	Base      Branch  `json:"base"`
}

// IssueComment is a comment on the PR's issue timeline (what the GitHub UI
// calls the "Conversation" tab).
type IssueComment struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
	User User   `json:"user"`
}

// ReviewComment is a comment anchored to a specific commit in a diff.
type ReviewComment struct {
	ID               int    `json:"id"`
	Body             string `json:"body"`
	User             User   `json:"user"`
	OriginalCommitID string `json:"original_commit_id"`
}

// Status is a single commit status, as posted to or listed from a commit's
// statuses endpoint.
type Status struct {
	State       string `json:"state"`
	TargetURL   string `json:"target_url,omitempty"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context,omitempty"`
}

// IssueCommentEvent is the payload of an "issue_comment" webhook.
type IssueCommentEvent struct {
	Action  string       `json:"action"`
	Issue   IssueRef     `json:"issue"`
	Comment IssueComment `json:"comment"`
	Repo    RepoRef      `json:"repository"`
}

// IssueRef is the issue envelope nested in an issue_comment payload.
type IssueRef struct {
	Number int `json:"number"`
}

// RepoRef is the repository envelope nested in webhook payloads.
type RepoRef struct {
	FullName string `json:"full_name"`
	Owner    User   `json:"owner"`
	Name     string `json:"name"`
}

// ReviewCommentEvent is the payload of a "pull_request_review_comment"
// webhook.
type ReviewCommentEvent struct {
	Action         string        `json:"action"`
	PullRequest    PullRequest   `json:"pull_request"`
	Comment        ReviewComment `json:"comment"`
	Repo           RepoRef       `json:"repository"`
}

// PullRequestEvent is the payload of a "pull_request" webhook.
type PullRequestEvent struct {
	Action      string      `json:"action"`
	Number      int         `json:"number"`
	PullRequest PullRequest `json:"pull_request"`
	Repo        RepoRef     `json:"repository"`
}

// StatusEvent is the payload of a "status" webhook, used by the CI driver to
// report build results for a speculative merge commit.
type StatusEvent struct {
	SHA     string  `json:"sha"`
	State   string  `json:"state"`
	Context string  `json:"context"`
	Repo    RepoRef `json:"repository"`
}

const (
	// StateSuccess is the commit-status / build-result state for a passing build.
	StateSuccess = "success"
	// StateFailure is the commit-status / build-result state for a failing build.
	StateFailure = "failure"
	// StatePending is the commit-status state for a build in flight.
	StatePending = "pending"
	// StateError is the commit-status state for a merge conflict or other
	// condition that isn't a simple pass/fail.
	StateError = "error"

	// StatusContext is the commit-status context this bot owns. Consumers key
	// off this exact string.
	StatusContext = "homu"
)
