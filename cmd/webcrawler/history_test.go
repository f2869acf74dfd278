package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	for _, name := range []string{"list", "list-seeds", "id", "json", "markdown", "db-dir"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if cmd.Args == nil {
		t.Error("expected Args validator")
	}
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	seed := site.URL + "/"
	dbDir := filepath.Join(t.TempDir(), "db")
	cfgPath := writeTestConfig(t, "{}\n")

	for range 2 {
		if _, err := executeRoot(t, "crawl", "--db-dir", dbDir, "-c", cfgPath, seed); err != nil {
			t.Fatalf("crawl error = %v", err)
		}
	}

	t.Run("latest run with comparison", func(t *testing.T) {
		t.Parallel()

		output, err := executeRoot(t, "history", "--db-dir", dbDir, seed)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		for _, want := range []string{"CRAWL REPORT", "CHANGES SINCE PREVIOUS CRAWL", "No changes"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("first run has no previous run", func(t *testing.T) {
		t.Parallel()

		output, err := executeRoot(t, "history", "--db-dir", dbDir, "--id", "1", seed)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if strings.Contains(output, "CHANGES SINCE PREVIOUS CRAWL") {
			t.Errorf("first run should have no comparison\n%s", output)
		}
	})

	t.Run("list runs", func(t *testing.T) {
		t.Parallel()

		output, err := executeRoot(t, "history", "--db-dir", dbDir, "--list", seed)
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(output, "(2 crawls)") {
			t.Errorf("expected two crawls\n%s", output)
		}
	})

	t.Run("list seeds", func(t *testing.T) {
		t.Parallel()

		output, err := executeRoot(t, "history", "--db-dir", dbDir, "--list-seeds")
		if err != nil {
			t.Fatalf("history error = %v", err)
		}
		if !strings.Contains(output, seed) {
			t.Errorf("expected seed in output\n%s", output)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		_, err := executeRoot(t, "history", "--db-dir", dbDir, "--id", "999", seed)
		if !errors.Is(err, errRunNotFound) {
			t.Errorf("expected errRunNotFound, got %v", err)
		}
	})

	t.Run("seed is required", func(t *testing.T) {
		t.Parallel()

		if _, err := executeRoot(t, "history", "--db-dir", dbDir); err == nil {
			t.Error("expected error without seed")
		}
	})
}

func TestHistoryWithoutDatabase(t *testing.T) {
	t.Parallel()

	output, err := executeRoot(t, "history", "--db-dir", filepath.Join(t.TempDir(), "none"), "https://example.com/")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(output, "No crawl history yet") {
		t.Errorf("unexpected output: %q", output)
	}
}
