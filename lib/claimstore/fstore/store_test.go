package fstore

import (
	"github.com/ValentinKolb/dSync/lib/claimstore"
	claimstoretesting "github.com/ValentinKolb/dSync/lib/claimstore/testing"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	claimstoretesting.RunClaimStoreTests(t, "fstore", func(dir string) (claimstore.IClaimStore, error) {
		return NewFileStore(dir)
	})
}

func TestFileLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()

	if err := s.Add(4200, "alice"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "4200.claim"))
	if err != nil {
		t.Fatalf("Expected claim file, got %v", err)
	}
	if string(data) != `{"location":4200,"owner":"alice"}` {
		t.Errorf("Unexpected file content %s", data)
	}
}

func TestRebuildSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"1.claim":     `{"location":1,"owner":"alice"}`,
		"2.claim":     `not json`,
		"3.claim":     `{"location":4,"owner":"bob"}`,
		"5.claim":     `{"location":5}`,
		"6.claim.tmp": `{"location":6,"owner":"carol"}`,
		"notes.txt":   `hello`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()

	all, _ := s.ListAll()
	if len(all) != 1 || all[0].Location != 1 {
		t.Errorf("Expected only claim 1 to be loaded, got %+v", all)
	}

	if _, err := os.Stat(filepath.Join(dir, "6.claim.tmp")); !os.IsNotExist(err) {
		t.Errorf("Expected leftover temp file to be removed")
	}
}
