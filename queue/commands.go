package queue

import (
	"fmt"
	"strconv"
	"strings"
)

// StopCI aborts the builder(s) currently occupying the build slot for a
// repo, used by the `force` command. Satisfied by ci.Driver.
type StopCI interface {
	Stop(builders []string) error
}

// ParseInput bundles everything ParseCommands needs beyond the PR itself.
type ParseInput struct {
	Body       string
	Author     string
	BotName    string
	Reviewers  []string
	Sha        string // explicit commit context, e.g. from a review comment
	Realtime   bool
	ActiveCI   StopCI   // non-nil only when a build is in flight and force may cancel it
	Builders   []string // builders to stop on `force`
}

// isReviewer reports whether author is in the allow-list.
func isReviewer(author string, reviewers []string) bool {
	for _, r := range reviewers {
		if strings.EqualFold(r, author) {
			return true
		}
	}
	return false
}

// shaMatches implements the 4-char-minimum prefix rule.
func shaMatches(candidate, headSHA string) bool {
	if len(candidate) < 4 {
		return false
	}
	if len(candidate) > len(headSHA) {
		return false
	}
	return strings.EqualFold(headSHA[:len(candidate)], candidate)
}

func shortSHA(sha string) string {
	if len(sha) < 7 {
		return sha
	}
	return sha[:7]
}

// ParseCommands interprets a comment body against a PR, mutating it in
// place. It returns true if the comment was addressed to the bot and
// processed (even if every individual token was a no-op), false if the
// comment was ignored outright (wrong author, or no @mention of the bot).
func ParseCommands(pr *PR, in ParseInput) bool {
	if !isReviewer(in.Author, in.Reviewers) {
		return false
	}
	if !strings.Contains(in.Body, "@"+in.BotName) {
		return false
	}

	tokens := strings.Fields(in.Body)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "r+":
			sha := in.Sha
			if sha == "" && i+1 < len(tokens) {
				sha = tokens[i+1]
			}
			applyApproval(pr, in, sha, in.Author)

		case strings.HasPrefix(tok, "r="):
			user := strings.TrimPrefix(tok, "r=")
			sha := in.Sha
			if sha == "" && i+1 < len(tokens) {
				sha = tokens[i+1]
			}
			applyApproval(pr, in, sha, user)

		case tok == "r-":
			pr.ApprovedBy = ""

		case strings.HasPrefix(tok, "p="):
			if n, err := strconv.Atoi(strings.TrimPrefix(tok, "p=")); err == nil {
				pr.Priority = n
			}

		case tok == "retry":
			if in.Realtime {
				pr.SetStatus(StatusNone)
			}

		case tok == "try":
			if in.Realtime {
				pr.Try = true
				pr.MergeSHA = ""
				pr.BuildRes = nil
			}

		case tok == "try-":
			if in.Realtime {
				pr.Try = false
				pr.MergeSHA = ""
				pr.BuildRes = nil
			}

		case tok == "rollup":
			pr.Rollup = true

		case tok == "rollup-":
			pr.Rollup = false

		case tok == "force":
			if in.Realtime {
				applyForce(pr, in)
			}
		}
	}
	return true
}

// applyApproval records an r+/r= approval if sha matches, else (in realtime
// mode) posts a rejection naming the required prefix.
func applyApproval(pr *PR, in ParseInput, sha, approver string) {
	if shaMatches(sha, pr.HeadSHA) {
		pr.ApprovedBy = approver
		return
	}
	if !in.Realtime {
		return
	}
	msg := "No commit SHA found."
	if sha != "" {
		msg = fmt.Sprintf("`%s` is not a valid commit SHA.", sha)
	}
	pr.AddComment(fmt.Sprintf(":scream_cat: %s Please try again with `%s`.", msg, shortSHA(pr.HeadSHA)))
}

// applyForce cancels the builders currently in flight via the CI control
// API. Only meaningful when the repo uses the control-API backend; with the
// travis backend ActiveCI is a TravisDriver, whose Stop does nothing.
func applyForce(pr *PR, in ParseInput) {
	if in.ActiveCI == nil {
		return
	}
	if err := in.ActiveCI.Stop(in.Builders); err != nil {
		pr.AddComment(fmt.Sprintf(":slightly_frowning_face: Unable to cancel the currently running build (%v).", err))
	}
}
