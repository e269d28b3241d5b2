package scores

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testTable = `
default: 5
pairs:
  - viewer: alice
    target: bob
    score: -80
  - viewer: "*"
    target: carol
    score: 90
  - viewer: dave
    target: carol
    score: -500
`

func TestScoreLookup(t *testing.T) {
	table, err := Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	s, err := NewTableScorer(table)
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}

	tests := []struct {
		viewer, owner string
		want          int
	}{
		{"alice", "bob", -80},
		{"bob", "alice", 5},
		{"alice", "carol", 90},
		{"dave", "carol", MinScore},
		{"erin", "frank", 5},
	}
	for _, tt := range tests {
		t.Run(tt.viewer+"->"+tt.owner, func(t *testing.T) {
			if got := s.Score(tt.viewer, tt.owner); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestInvalidTable(t *testing.T) {
	if _, err := Parse([]byte("pairs: [")); err == nil {
		t.Errorf("Expected parse error, got none")
	}
	if _, err := NewTableScorer(Table{Pairs: []Pair{{Viewer: "alice"}}}); err == nil {
		t.Errorf("Expected error for a pair without target, got none")
	}
}

func TestStaticScorer(t *testing.T) {
	s := NewStaticScorer(250)
	if got := s.Score("a", "b"); got != MaxScore {
		t.Errorf("Expected %d, got %d", MaxScore, got)
	}
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.yaml")
	if err := os.WriteFile(path, []byte(testTable), 0o644); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if err := os.WriteFile(path, []byte("default: ["), 0o644); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}
	if err := s.Reload(); err == nil {
		t.Errorf("Expected reload error, got none")
	}
	if got := s.Score("alice", "bob"); got != -80 {
		t.Errorf("Expected previous table to stay active (-80), got %d", got)
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.yaml")
	if err := os.WriteFile(path, []byte("default: 1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if err := s.Watch(); err != nil {
		t.Fatalf("Failed to watch: %v", err)
	}
	defer s.Close()

	if err := os.WriteFile(path, []byte("default: 42\n"), 0o644); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.Score("x", "y") != 42 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected score 42 after file change, got %d", s.Score("x", "y"))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
