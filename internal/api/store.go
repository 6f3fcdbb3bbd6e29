package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

// Artifact filenames the API will touch. Anything else in the output dir
// is ignored, which also shuts the door on traversal-style identifiers.
var artifactNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+\.json$`)

// Artifact is one processed call loaded from the output directory.
type Artifact struct {
	File string                  `json:"file"`
	Data types.ProcessedCallData `json:"data"`
}

// Store caches artifacts in memory and invalidates on directory changes.
type Store struct {
	dir string

	mu        sync.RWMutex
	artifacts []Artifact
	stale     bool
}

func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir, stale: true}
	if _, err := s.List(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch invalidates the cache whenever the output directory changes.
// Runs until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	log := logger.Component("api.store")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Write) != 0 {
					s.invalidate()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("watcher error")
			}
		}
	}()
	return watcher.Add(s.dir)
}

func (s *Store) invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// List returns all artifacts, newest first by processedAt.
func (s *Store) List() ([]Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		loaded, err := loadArtifacts(s.dir)
		if err != nil {
			return nil, err
		}
		s.artifacts = loaded
		s.stale = false
	}
	out := make([]Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out, nil
}

// Get loads one artifact by filename. The name must match the allowlist
// pattern and resolve inside the output directory.
func (s *Store) Get(name string) (*Artifact, error) {
	if !artifactNamePattern.MatchString(name) || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	var call types.ProcessedCallData
	if err := json.Unmarshal(data, &call); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", name, err)
	}
	return &Artifact{File: name, Data: call}, nil
}

func loadArtifacts(dir string) ([]Artifact, error) {
	log := logger.Component("api.store")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || !artifactNamePattern.MatchString(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.WithError(err).WithField("file", e.Name()).Warn("unreadable artifact, skipping")
			continue
		}
		var call types.ProcessedCallData
		if err := json.Unmarshal(data, &call); err != nil {
			log.WithError(err).WithField("file", e.Name()).Warn("malformed artifact, skipping")
			continue
		}
		out = append(out, Artifact{File: e.Name(), Data: call})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Data.Metadata.ProcessedAt.After(out[j].Data.Metadata.ProcessedAt)
	})
	return out, nil
}
