// ABOUTME: Tests for the leveled logging helpers.
// ABOUTME: Captures the standard logger output to check debug gating and level prefixes.
package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(prev)
		SetVerbose(false)
	})
	return &buf
}

func TestDebugfGated(t *testing.T) {
	buf := captureLog(t)

	SetVerbose(false)
	Debugf("hidden n=%d", 1)
	if buf.Len() != 0 {
		t.Fatalf("debug line written while not verbose: %q", buf.String())
	}

	SetVerbose(true)
	if !Verbose() {
		t.Fatal("Verbose() = false after SetVerbose(true)")
	}
	Debugf("shown n=%d", 2)
	if !strings.Contains(buf.String(), "DEBUG shown n=2") {
		t.Errorf("missing debug line in %q", buf.String())
	}
}

func TestLevelPrefixes(t *testing.T) {
	buf := captureLog(t)

	Warnf("careful")
	Errorf("broken err=%v", "boom")

	out := buf.String()
	if !strings.Contains(out, "WARN careful") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "ERROR broken err=boom") {
		t.Errorf("missing error line in %q", out)
	}
}
