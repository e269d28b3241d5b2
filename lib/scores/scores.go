package scores

import (
	"fmt"
	"github.com/fsnotify/fsnotify"
	"github.com/lni/dragonboat/v4/logger"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("scores")

const (
	MinScore = -100
	MaxScore = 100
)

// IRelationshipScorer computes how a viewer stands towards the owner of a claim.
// Scores are never persisted with a claim, they are computed whenever a claim
// is projected for a viewer.
type IRelationshipScorer interface {
	Score(viewer, owner string) int
}

// --------------------------------------------------------------------------
// Table
// --------------------------------------------------------------------------

// Table is the file format of a score table:
//
//	default: 0
//	pairs:
//	  - viewer: alice
//	    target: bob
//	    score: -80
//	  - viewer: "*"
//	    target: carol
//	    score: 90
//
// A pair with viewer "*" applies to every viewer without an own pair for the target.
// Scores are clamped to [MinScore, MaxScore].
type Table struct {
	Default int    `yaml:"default"`
	Pairs   []Pair `yaml:"pairs"`
}

// Pair is the score viewer has towards target
type Pair struct {
	Viewer string `yaml:"viewer"`
	Target string `yaml:"target"`
	Score  int    `yaml:"score"`
}

// Wildcard matches every viewer
const Wildcard = "*"

// compiled is an immutable lookup structure built from a Table
type compiled struct {
	def   int
	pairs map[[2]string]int
}

func compile(t Table) (*compiled, error) {
	c := &compiled{def: clamp(t.Default), pairs: make(map[[2]string]int, len(t.Pairs))}
	for i, p := range t.Pairs {
		if p.Viewer == "" || p.Target == "" {
			return nil, fmt.Errorf("pair %d: viewer and target are required", i)
		}
		c.pairs[[2]string{p.Viewer, p.Target}] = clamp(p.Score)
	}
	return c, nil
}

func (c *compiled) score(viewer, owner string) int {
	if s, ok := c.pairs[[2]string{viewer, owner}]; ok {
		return s
	}
	if s, ok := c.pairs[[2]string{Wildcard, owner}]; ok {
		return s
	}
	return c.def
}

func clamp(v int) int {
	return max(MinScore, min(MaxScore, v))
}

// Parse reads a score table from YAML
func Parse(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse score table: %w", err)
	}
	return t, nil
}

// --------------------------------------------------------------------------
// Scorer
// --------------------------------------------------------------------------

// Scorer implements IRelationshipScorer on top of a Table. The table can be
// replaced at any time, readers never block.
type Scorer struct {
	current atomic.Pointer[compiled]

	path      string
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
	closeOnce sync.Once
}

// NewStaticScorer returns a scorer that gives every pair the same score
func NewStaticScorer(score int) *Scorer {
	s := &Scorer{}
	s.current.Store(&compiled{def: clamp(score), pairs: map[[2]string]int{}})
	return s
}

// NewTableScorer returns a scorer for a fixed table
func NewTableScorer(t Table) (*Scorer, error) {
	c, err := compile(t)
	if err != nil {
		return nil, err
	}
	s := &Scorer{}
	s.current.Store(c)
	return s, nil
}

// LoadFile reads the table at path. Call Watch to pick up later changes.
func LoadFile(path string) (*Scorer, error) {
	s := &Scorer{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scorer) Score(viewer, owner string) int {
	return s.current.Load().score(viewer, owner)
}

// Reload reads the file again. On error the previous table stays active.
func (s *Scorer) Reload() error {
	if s.path == "" {
		return fmt.Errorf("scorer has no file")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read score table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return err
	}
	c, err := compile(t)
	if err != nil {
		return fmt.Errorf("score table %s: %w", s.path, err)
	}
	s.current.Store(c)
	Logger.Infof("Loaded score table %s (%d pairs, default %d)", s.path, len(c.pairs), c.def)
	return nil
}

// Watch reloads the table whenever the file is written or replaced.
// The directory is watched, so editors that save by renaming are covered.
func (s *Scorer) Watch() error {
	if s.path == "" {
		return fmt.Errorf("scorer has no file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = watcher
	s.watchDone = make(chan struct{})

	name := filepath.Base(s.path)
	go func() {
		defer close(s.watchDone)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if err := s.Reload(); err != nil {
					Logger.Warningf("Keeping previous score table: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				Logger.Warningf("Score table watcher error: %v", err)
			}
		}
	}()

	Logger.Infof("Watching score table %s for changes", s.path)
	return nil
}

// Close stops watching
func (s *Scorer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			err = s.watcher.Close()
			<-s.watchDone
		}
	})
	return err
}
