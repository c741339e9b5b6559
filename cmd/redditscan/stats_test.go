package main

import (
	"strings"
	"testing"
)

// TestNewStatsCmd tests the stats command creation.
func TestNewStatsCmd(t *testing.T) {
	t.Parallel()

	cmd := NewStatsCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "stats [subreddit]" {
			t.Errorf("expected use 'stats [subreddit]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has json flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("json")
		if flag == nil {
			t.Fatal("expected json flag")
		}
		if flag.Shorthand != "j" {
			t.Errorf("expected shorthand 'j', got %q", flag.Shorthand)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
	})

	t.Run("has timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("timeout")
		if flag == nil {
			t.Fatal("expected timeout flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
	})
}

// TestRunStatsCmdValidation tests argument validation before any
// network traffic happens.
func TestRunStatsCmdValidation(t *testing.T) {
	t.Parallel()

	t.Run("requires an argument", func(t *testing.T) {
		t.Parallel()
		cmd := NewStatsCmd()
		cmd.SetArgs([]string{})

		if err := cmd.Execute(); err == nil {
			t.Fatal("expected error without argument")
		}
	})

	t.Run("rejects invalid target", func(t *testing.T) {
		t.Parallel()
		cmd := NewStatsCmd()
		cmd.SetArgs([]string{"x/golang"})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error for invalid target")
		}
		if !strings.Contains(err.Error(), "invalid target") {
			t.Errorf("expected invalid-target error, got %v", err)
		}
	})

	t.Run("rejects user targets", func(t *testing.T) {
		t.Parallel()
		cmd := NewStatsCmd()
		cmd.SetArgs([]string{"u/spez"})

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected error for user target")
		}
		if !strings.Contains(err.Error(), "requires a subreddit") {
			t.Errorf("expected subreddit-required error, got %v", err)
		}
	})
}
