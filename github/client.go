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

// Package github is a small, dependency-light client for the hosted
// code-review platform's REST API. It only implements the capabilities this
// bot actually consumes: PR and comment reads, ref mutation, the
// branch-merge endpoint, and commit statuses.
package github

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Logger is satisfied by *logrus.Entry; kept as an interface so the client
// has no hard dependency on the logging package it happens to be wired to.
type Logger interface {
	Printf(s string, v ...interface{})
}

// Client talks to the hosted platform's REST API.
type Client struct {
	// If Logger is non-nil, every method call is logged through it.
	Logger Logger

	client  *http.Client
	base    string
	dry     bool
	fake    bool
	limiter *rate.Limiter
}

const (
	defaultBase = "https://api.github.com"
	maxRetries  = 8
	retryDelay  = 2 * time.Second
)

// NewClient creates a fully operational client authenticated with token.
func NewClient(token, base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		client:  oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})),
		base:    base,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
	}
}

// NewDryRunClient creates a client that performs reads normally but turns
// every mutating call into a no-op. Used when --dry-run is set.
func NewDryRunClient(token, base string) *Client {
	c := NewClient(token, base)
	c.dry = true
	return c
}

// NewFakeClient creates a client that performs no network I/O at all. Used
// in tests that exercise callers of this package without a real server.
func NewFakeClient() *Client {
	return &Client{fake: true, dry: true, limiter: rate.NewLimiter(rate.Inf, 1)}
}

func (c *Client) log(methodName string, args ...interface{}) {
	if c.Logger == nil {
		return
	}
	var as []string
	for _, arg := range args {
		as = append(as, fmt.Sprintf("%v", arg))
	}
	c.Logger.Printf("%s(%s)", methodName, strings.Join(as, ", "))
}

// request retries on transport failures (not on 5xx, which callers interpret
// themselves) and respects the client's outbound rate limit.
func (c *Client) request(method, path string, body interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}
	var resp *http.Response
	var err error
	backoff := retryDelay
	for retries := 0; retries < maxRetries; retries++ {
		resp, err = c.doRequest(method, path, body)
		if err == nil {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return resp, err
}

func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(b)
	}
	req, err := http.NewRequest(method, path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	// Disable keep-alive so we don't get flakes when the platform closes the
	// connection prematurely.
	req.Close = true
	return c.client.Do(req)
}

// ListOpenPRs lists every open pull request in owner/repo.
func (c *Client) ListOpenPRs(owner, repo string) ([]PullRequest, error) {
	c.log("ListOpenPRs", owner, repo)
	if c.fake {
		return nil, nil
	}
	nextURL := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&per_page=100", c.base, owner, repo)
	var prs []PullRequest
	for nextURL != "" {
		resp, err := c.request(http.MethodGet, nextURL, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("response not 200: %s", resp.Status)
		}
		b, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var page []PullRequest
		if err := json.Unmarshal(b, &page); err != nil {
			return nil, err
		}
		prs = append(prs, page...)
		nextURL = parseLinks(resp.Header.Get("Link"))["next"]
	}
	return prs, nil
}

// GetPR fetches a single pull request.
func (c *Client) GetPR(owner, repo string, number int) (*PullRequest, error) {
	c.log("GetPR", owner, repo, number)
	if c.fake {
		return &PullRequest{Number: number}, nil
	}
	resp, err := c.request(http.MethodGet, fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.base, owner, repo, number), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("response not 200: %s", resp.Status)
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var pr PullRequest
	if err := json.Unmarshal(b, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListIssueComments returns every conversation-tab comment on a PR's issue.
func (c *Client) ListIssueComments(owner, repo string, number int) ([]IssueComment, error) {
	c.log("ListIssueComments", owner, repo, number)
	if c.fake {
		return nil, nil
	}
	nextURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=100", c.base, owner, repo, number)
	var comments []IssueComment
	for nextURL != "" {
		resp, err := c.request(http.MethodGet, nextURL, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("response not 200: %s", resp.Status)
		}
		b, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var page []IssueComment
		if err := json.Unmarshal(b, &page); err != nil {
			return nil, err
		}
		comments = append(comments, page...)
		nextURL = parseLinks(resp.Header.Get("Link"))["next"]
	}
	return comments, nil
}

// ListReviewComments returns every diff-anchored review comment on a PR.
func (c *Client) ListReviewComments(owner, repo string, number int) ([]ReviewComment, error) {
	c.log("ListReviewComments", owner, repo, number)
	if c.fake {
		return nil, nil
	}
	nextURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments?per_page=100", c.base, owner, repo, number)
	var comments []ReviewComment
	for nextURL != "" {
		resp, err := c.request(http.MethodGet, nextURL, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("response not 200: %s", resp.Status)
		}
		b, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var page []ReviewComment
		if err := json.Unmarshal(b, &page); err != nil {
			return nil, err
		}
		comments = append(comments, page...)
		nextURL = parseLinks(resp.Header.Get("Link"))["next"]
	}
	return comments, nil
}

// CreateComment posts a comment on the PR's issue timeline.
func (c *Client) CreateComment(owner, repo string, number int, body string) error {
	c.log("CreateComment", owner, repo, number, body)
	if c.dry {
		return nil
	}
	resp, err := c.request(http.MethodPost, fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.base, owner, repo, number), IssueComment{Body: body})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("response not 201: %s", resp.Status)
	}
	return nil
}

// GetRef returns the SHA of the given ref, e.g. "heads/master".
func (c *Client) GetRef(owner, repo, ref string) (string, error) {
	c.log("GetRef", owner, repo, ref)
	if c.fake {
		return "", nil
	}
	resp, err := c.request(http.MethodGet, fmt.Sprintf("%s/repos/%s/%s/git/refs/%s", c.base, owner, repo, ref), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("response not 200: %s", resp.Status)
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var res struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return "", err
	}
	return res.Object.SHA, nil
}

// CreateRef creates a new ref, e.g. "refs/heads/tmp_branch".
func (c *Client) CreateRef(owner, repo, ref, sha string) error {
	c.log("CreateRef", owner, repo, ref, sha)
	if c.dry {
		return nil
	}
	resp, err := c.request(http.MethodPost, fmt.Sprintf("%s/repos/%s/%s/git/refs", c.base, owner, repo), struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}{Ref: ref, SHA: sha})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("response not 201: %s", resp.Status)
	}
	return nil
}

// ForceUpdateRef force-moves an existing ref, e.g. "heads/tmp_branch".
func (c *Client) ForceUpdateRef(owner, repo, ref, sha string) error {
	c.log("ForceUpdateRef", owner, repo, ref, sha)
	if c.dry {
		return nil
	}
	resp, err := c.request(http.MethodPatch, fmt.Sprintf("%s/repos/%s/%s/git/refs/%s", c.base, owner, repo, ref), struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: sha, Force: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("response not 200: %s", resp.Status)
	}
	return nil
}

// Merge merges head into base using the platform's branch-merge endpoint
// (distinct from the PR-merge endpoint: this is what lets the bot merge an
// arbitrary SHA into an arbitrary branch for the speculative build). Returns
// a *MergeConflictError when the platform reports 409.
func (c *Client) Merge(owner, repo, base, head, message string) (string, error) {
	c.log("Merge", owner, repo, base, head)
	if c.dry {
		return "dry-run-merge-sha", nil
	}
	resp, err := c.request(http.MethodPost, fmt.Sprintf("%s/repos/%s/%s/merges", c.base, owner, repo), struct {
		Base          string `json:"base"`
		Head          string `json:"head"`
		CommitMessage string `json:"commit_message"`
	}{Base: base, Head: head, CommitMessage: message})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return "", &MergeConflictError{Base: base, Head: head}
	}
	if resp.StatusCode == http.StatusNoContent {
		// Base already contains head; nothing to do.
		return "", nil
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("response not 201: %s", resp.Status)
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var res struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return "", err
	}
	return res.SHA, nil
}

// ListCommitStatuses returns every status posted against a commit.
func (c *Client) ListCommitStatuses(owner, repo, sha string) ([]Status, error) {
	c.log("ListCommitStatuses", owner, repo, sha)
	if c.fake {
		return nil, nil
	}
	resp, err := c.request(http.MethodGet, fmt.Sprintf("%s/repos/%s/%s/commits/%s/statuses", c.base, owner, repo, sha), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("response not 200: %s", resp.Status)
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var statuses []Status
	if err := json.Unmarshal(b, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// CreateCommitStatus creates or updates the status of a commit.
func (c *Client) CreateCommitStatus(owner, repo, sha string, s Status) error {
	c.log("CreateCommitStatus", owner, repo, sha, s)
	if c.dry {
		return nil
	}
	resp, err := c.request(http.MethodPost, fmt.Sprintf("%s/repos/%s/%s/statuses/%s", c.base, owner, repo, sha), s)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("response not 201: %s", resp.Status)
	}
	return nil
}

// ValidatePayload checks an inbound webhook's HMAC-SHA1 signature
// ("X-Hub-Signature: sha1=...") against secret.
func ValidatePayload(payload []byte, signature string, secret []byte) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(signature, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signature, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}

// parseLinks parses a GitHub "Link" response header into name -> URL.
func parseLinks(h string) map[string]string {
	links := map[string]string{}
	for _, link := range strings.Split(h, ",") {
		parts := strings.Split(strings.TrimSpace(link), ";")
		if len(parts) < 2 {
			continue
		}
		url := strings.Trim(strings.TrimSpace(parts[0]), "<>")
		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "rel=") {
				name := strings.Trim(strings.TrimPrefix(p, "rel="), `"`)
				links[name] = url
			}
		}
	}
	return links
}
