package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "reframe version "+Version) {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestEntriesRequiresUser(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"entries"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--user") {
		t.Fatalf("Execute() error = %v, want --user error", err)
	}
}

func TestServeRejectsMissingSecret(t *testing.T) {
	t.Setenv("REFRAME_SESSION_SECRET", "")

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "REFRAME_SESSION_SECRET") {
		t.Fatalf("Execute() error = %v, want session secret error", err)
	}
}
