// Package webhook is the inbound HTTP surface (C12): it validates GitHub
// webhook deliveries and turns them into scheduler.Event values. It never
// touches PR state itself; every decision beyond header/signature
// validation and event-type demuxing happens in the scheduler's own
// goroutine.
package webhook

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/homu-ci/homu/github"
	"github.com/homu-ci/homu/scheduler"
)

// Submitter is the one capability this package needs from the scheduler.
type Submitter interface {
	Submit(ev scheduler.Event)
}

// Server implements http.Handler for the webhook endpoint.
type Server struct {
	Scheduler  Submitter
	BotName    string
	HMACSecret []byte
	Metrics    *Metrics
}

// ServeHTTP validates an incoming webhook and submits the event it
// normalizes to, if any, into the scheduler's event loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if r.Method == http.MethodGet {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "405 Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		http.Error(w, "400 Bad Request: Missing X-GitHub-Event Header", http.StatusBadRequest)
		return
	}
	eventGUID := r.Header.Get("X-GitHub-Delivery")
	if eventGUID == "" {
		http.Error(w, "400 Bad Request: Missing X-GitHub-Delivery Header", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("X-Hub-Signature")
	if sig == "" {
		http.Error(w, "403 Forbidden: Missing X-Hub-Signature", http.StatusForbidden)
		return
	}
	contentType := r.Header.Get("content-type")
	if contentType != "application/json" {
		http.Error(w, "400 Bad Request: Hook only accepts content-type: application/json - please reconfigure this hook on GitHub", http.StatusBadRequest)
		return
	}

	payload, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "500 Internal Server Error: Failed to read request body", http.StatusInternalServerError)
		return
	}

	if !github.ValidatePayload(payload, sig, s.HMACSecret) {
		http.Error(w, "403 Forbidden: Invalid X-Hub-Signature", http.StatusForbidden)
		return
	}
	fmt.Fprint(w, "Event received. Have a nice day.")

	s.Metrics.WebhooksTotal.WithLabelValues(eventType).Inc()

	l := logrus.WithFields(logrus.Fields{
		"event-type": eventType,
		"event-GUID": eventGUID,
	})
	if err := s.dispatch(eventType, payload); err != nil {
		l.WithError(err).Error("Error parsing event.")
	}
}

// dispatch demuxes a validated payload into zero or one scheduler.Event.
// Event types the bot doesn't act on are accepted and silently ignored.
func (s *Server) dispatch(eventType string, payload []byte) error {
	switch eventType {
	case "issue_comment":
		var ic github.IssueCommentEvent
		if err := json.Unmarshal(payload, &ic); err != nil {
			return err
		}
		s.Scheduler.Submit(scheduler.CommentEvent{
			Owner:    ic.Repo.Owner.Login,
			Repo:     ic.Repo.Name,
			Number:   ic.Issue.Number,
			Author:   ic.Comment.User.Login,
			Body:     ic.Comment.Body,
			Realtime: true,
		})
	case "pull_request_review_comment":
		var rc github.ReviewCommentEvent
		if err := json.Unmarshal(payload, &rc); err != nil {
			return err
		}
		s.Scheduler.Submit(scheduler.CommentEvent{
			Owner:    rc.Repo.Owner.Login,
			Repo:     rc.Repo.Name,
			Number:   rc.PullRequest.Number,
			Author:   rc.Comment.User.Login,
			Body:     rc.Comment.Body,
			Sha:      rc.Comment.OriginalCommitID,
			Realtime: true,
		})
	case "pull_request":
		var pr github.PullRequestEvent
		if err := json.Unmarshal(payload, &pr); err != nil {
			return err
		}
		switch pr.Action {
		case "opened", "reopened":
			var assignee string
			if pr.PullRequest.Assignee != nil {
				assignee = pr.PullRequest.Assignee.Login
			}
			s.Scheduler.Submit(scheduler.PROpenedEvent{
				Owner:    pr.Repo.Owner.Login,
				Repo:     pr.Repo.Name,
				Number:   pr.Number,
				HeadSHA:  pr.PullRequest.Head.SHA,
				Title:    pr.PullRequest.Title,
				Body:     pr.PullRequest.Body,
				HeadRef:  pr.PullRequest.Head.Ref,
				BaseRef:  pr.PullRequest.Base.Ref,
				Assignee: assignee,
			})
		case "synchronize":
			s.Scheduler.Submit(scheduler.PushEvent{
				Owner:   pr.Repo.Owner.Login,
				Repo:    pr.Repo.Name,
				Number:  pr.Number,
				HeadSHA: pr.PullRequest.Head.SHA,
			})
		case "closed":
			s.Scheduler.Submit(scheduler.PRClosedEvent{
				Owner:  pr.Repo.Owner.Login,
				Repo:   pr.Repo.Name,
				Number: pr.Number,
			})
		}
	case "status":
		var se github.StatusEvent
		if err := json.Unmarshal(payload, &se); err != nil {
			return err
		}
		// Skip our own commit statuses so posting a result doesn't loop back
		// in as a build report, and ignore non-terminal states.
		if se.Context == github.StatusContext {
			return nil
		}
		if se.State != github.StateSuccess && se.State != github.StateFailure && se.State != github.StateError {
			return nil
		}
		s.Scheduler.Submit(scheduler.BuildResultEvent{
			MergeSHA: se.SHA,
			Builder:  se.Context,
			Passed:   se.State == github.StateSuccess,
		})
	}
	return nil
}

// Healthz answers liveness checks.
func Healthz(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}
