/*
Copyright 2017 The Kubernetes Authors.

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

// Package config knows how to read and parse the bot's config.yaml.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/ghodss/yaml"
)

// Config is a read-only snapshot of the whole config file.
type Config struct {
	Bot   Bot    `json:"bot"`
	Repos []Repo `json:"repos"`
}

// Bot is the account this process runs as.
type Bot struct {
	// Name is the account login. Comments must mention "@Name" to be seen.
	Name string `json:"name"`
	// Token is the OAuth token for platform API calls. It is parsed but not
	// read: cmd/homu takes the token from --github-token-file.
	Token string `json:"token"`
	// WebhookSecret is the secret for the "X-Hub-Signature" header on inbound
	// events. It is parsed but not read: cmd/homu takes the secret from
	// --hmac-secret-file.
	WebhookSecret string `json:"webhook_secret"`
	// APIBase is the platform's API base URL; empty means the public default.
	// It is parsed but not read: cmd/homu takes the endpoint from
	// --github-endpoint.
	APIBase string `json:"api_base,omitempty"`
}

// Repo is the per-repository configuration block.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"repo"`

	Reviewers []string `json:"reviewers"`

	MasterBranch      string `json:"master_branch"`
	TmpBranch         string `json:"tmp_branch"`
	BuildbotBranch    string `json:"buildbot_branch"`
	BuildbotTryBranch string `json:"buildbot_try_branch"`

	Builders    []string `json:"builders"`
	TryBuilders []string `json:"try_builders"`

	BuildbotURL      string `json:"buildbot_url"`
	BuildbotUsername string `json:"buildbot_username"`
	BuildbotPassword string `json:"buildbot_password"`

	// TravisToken, if set, switches this repo onto the token-authenticated CI
	// back-end: builds always land on BuildbotBranch with the single
	// synthetic builder "travis", and `force` becomes a no-op.
	TravisToken string `json:"travis_token,omitempty"`
}

// FullName is the "owner/repo" identifier used as a map key and in log
// fields throughout the bot.
func (r Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

// IsReviewer reports whether user appears in this repo's allow-list.
func (r Repo) IsReviewer(user string) bool {
	for _, reviewer := range r.Reviewers {
		if reviewer == user {
			return true
		}
	}
	return false
}

// UsesTravis reports whether this repo's CI is the token-authenticated
// back-end rather than the session-authenticated control API.
func (r Repo) UsesTravis() bool {
	return r.TravisToken != ""
}

// BuildersFor returns the builder set and destination branch for a build,
// mirroring the original bot's travis special-case: when a Travis token is
// configured, every build (gated or try) lands on BuildbotBranch and is
// tracked by the single synthetic "travis" builder.
func (r Repo) BuildersFor(try bool) (builders []string, branch string) {
	if r.UsesTravis() {
		return []string{"travis"}, r.BuildbotBranch
	}
	if try {
		return r.TryBuilders, r.BuildbotTryBranch
	}
	return r.Builders, r.BuildbotBranch
}

// Validate checks that the required fields of a repo block are present.
func (r Repo) Validate() error {
	if r.Owner == "" || r.Name == "" {
		return fmt.Errorf("repo block missing owner/repo")
	}
	if r.MasterBranch == "" {
		return fmt.Errorf("%s: master_branch is required", r.FullName())
	}
	if r.TmpBranch == "" {
		return fmt.Errorf("%s: tmp_branch is required", r.FullName())
	}
	if r.BuildbotBranch == "" {
		return fmt.Errorf("%s: buildbot_branch is required", r.FullName())
	}
	if !r.UsesTravis() && r.BuildbotTryBranch == "" {
		return fmt.Errorf("%s: buildbot_try_branch is required unless travis_token is set", r.FullName())
	}
	if !r.UsesTravis() && len(r.Builders) == 0 {
		return fmt.Errorf("%s: builders must be non-empty unless travis_token is set", r.FullName())
	}
	return nil
}

// Load reads and parses the config at path.
func Load(path string) (*Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %v", path, err)
	}
	return Parse(b)
}

// Parse parses raw YAML bytes into a validated Config.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}
	if c.Bot.Name == "" {
		return nil, fmt.Errorf("bot.name is required")
	}
	for _, r := range c.Repos {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RepoByFullName finds a repo block by "owner/repo", or nil.
func (c *Config) RepoByFullName(fullName string) *Repo {
	for i := range c.Repos {
		if c.Repos[i].FullName() == fullName {
			return &c.Repos[i]
		}
	}
	return nil
}
