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

package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Agent holds the latest valid Config and keeps it fresh by watching the
// source file for writes. A bad edit is logged and ignored; the previous
// good Config keeps serving until a valid one replaces it.
type Agent struct {
	mu      sync.RWMutex
	c       *Config
	watcher *fsnotify.Watcher
}

// Start loads path once synchronously and then watches it for changes.
func (a *Agent) Start(path string) error {
	c, err := Load(path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.c = c
	a.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	a.watcher = watcher

	go a.watch(path)
	return nil
}

func (a *Agent) watch(path string) {
	log := logrus.WithField("agent", "config")
	for {
		select {
		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c, err := Load(path)
			if err != nil {
				log.WithError(err).Error("Error reloading config, keeping previous version.")
				continue
			}
			a.mu.Lock()
			a.c = c
			a.mu.Unlock()
			log.Info("Reloaded config.")
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("Error watching config file.")
		}
	}
}

// Config returns the most recently loaded valid Config.
func (a *Agent) Config() *Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.c
}

// Stop stops watching the config file.
func (a *Agent) Stop() error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Close()
}
