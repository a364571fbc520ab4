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

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io/ioutil"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/NYTimes/gziphandler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/homu-ci/homu/config"
	"github.com/homu-ci/homu/github"
	"github.com/homu-ci/homu/poller"
	"github.com/homu-ci/homu/scheduler"
	"github.com/homu-ci/homu/store"
	"github.com/homu-ci/homu/webhook"
)

type options struct {
	port int

	configPath string
	dbPath     string

	dryRun bool

	githubEndpoint  string
	githubTokenFile string

	webhookSecretFile string

	pollSchedule string
}

func (o *options) Validate() error {
	if o.configPath == "" {
		return errors.New("--config-path is required")
	}
	return nil
}

func gatherOptions() options {
	o := options{}
	flag.IntVar(&o.port, "port", 8888, "Port to listen on.")

	flag.StringVar(&o.configPath, "config-path", "/etc/config/config.yaml", "Path to config.yaml.")
	flag.StringVar(&o.dbPath, "db-path", "/var/lib/homu/state.db", "Path to the sqlite state database.")

	flag.BoolVar(&o.dryRun, "dry-run", true, "Dry run for testing. Uses API tokens but does not mutate.")

	flag.StringVar(&o.githubEndpoint, "github-endpoint", "https://api.github.com", "GitHub's API endpoint.")
	flag.StringVar(&o.githubTokenFile, "github-token-file", "/etc/github/oauth", "Path to the file containing the GitHub OAuth secret.")

	flag.StringVar(&o.webhookSecretFile, "hmac-secret-file", "/etc/webhook/hmac", "Path to the file containing the GitHub HMAC secret.")

	flag.StringVar(&o.pollSchedule, "poll-schedule", poller.DefaultSchedule, "Cron schedule for the mergeability poller.")
	flag.Parse()
	return o
}

func main() {
	o := gatherOptions()
	if err := o.Validate(); err != nil {
		logrus.Fatalf("Invalid options: %v", err)
	}
	logrus.SetFormatter(&logrus.TextFormatter{})
	log := logrus.WithField("component", "homu")

	configAgent := &config.Agent{}
	if err := configAgent.Start(o.configPath); err != nil {
		log.WithError(err).Fatal("Error starting config agent.")
	}
	cfg := configAgent.Config()

	// Ignore SIGTERM so in-flight webhook handling finishes before the
	// process exits; we rely on SIGKILL after the deployment's grace period.
	signal.Ignore(syscall.SIGTERM)

	webhookSecretRaw, err := ioutil.ReadFile(o.webhookSecretFile)
	if err != nil {
		log.WithError(err).Fatal("Could not read webhook secret file.")
	}
	webhookSecret := bytes.TrimSpace(webhookSecretRaw)

	oauthSecretRaw, err := ioutil.ReadFile(o.githubTokenFile)
	if err != nil {
		log.WithError(err).Fatal("Could not read oauth secret file.")
	}
	oauthSecret := string(bytes.TrimSpace(oauthSecretRaw))

	if _, err := url.Parse(o.githubEndpoint); err != nil {
		log.WithError(err).Fatal("Must specify a valid --github-endpoint URL.")
	}

	var gh *github.Client
	if o.dryRun {
		gh = github.NewDryRunClient(oauthSecret, o.githubEndpoint)
	} else {
		gh = github.NewClient(oauthSecret, o.githubEndpoint)
	}

	st, err := store.Open(o.dbPath)
	if err != nil {
		log.WithError(err).Fatal("Error opening state database.")
	}
	defer st.Close()

	sched := scheduler.New(gh, st, cfg.Bot.Name)
	for _, repoCfg := range cfg.Repos {
		sched.AddRepo(repoCfg)
		if repoCfg.UsesTravis() {
			log.WithField("repo", repoCfg.FullName()).Debug("Configured with the Travis CI driver.")
		} else {
			log.WithField("repo", repoCfg.FullName()).Debug("Configured with the Buildbot CI driver.")
		}
	}
	if err := sched.Bootstrap(); err != nil {
		log.WithError(err).Fatal("Error bootstrapping scheduler state.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	mergePoller := poller.New(gh, sched)
	if err := mergePoller.Start(o.pollSchedule); err != nil {
		log.WithError(err).Fatal("Error starting mergeability poller.")
	}
	defer mergePoller.Stop()

	webhookMetrics := webhook.NewMetrics()
	hookServer := &webhook.Server{
		Scheduler:  sched,
		BotName:    cfg.Bot.Name,
		HMACSecret: webhookSecret,
		Metrics:    webhookMetrics,
	}

	http.HandleFunc("/healthz", webhook.Healthz)
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/hook", gziphandler.GzipHandler(hookServer))

	log.WithField("port", o.port).Info("Listening.")
	log.Fatal(http.ListenAndServe(":"+strconv.Itoa(o.port), nil))
}
