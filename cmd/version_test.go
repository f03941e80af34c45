package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommandPrintsInjectedVersion(t *testing.T) {
	SetVersion("9.9.9")

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	if !strings.Contains(buf.String(), "9.9.9") {
		t.Errorf("expected output to contain injected version, got %q", buf.String())
	}
}
