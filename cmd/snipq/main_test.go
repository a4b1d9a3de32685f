package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

// writeStateConfig points the state database into a temp dir so settings
// actions do not touch the working directory.
func writeStateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := "state:\n  path: " + filepath.Join(dir, "snipq.db") + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func TestRunCLIRootVersionFlag(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abcdef1234567890", "2026-01-02T03:04:05Z")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"--version"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "snipq 1.2.3") {
		t.Fatalf("version output missing version line: %q", stdout)
	}
	if !strings.Contains(stdout, "abcdef123456") {
		t.Fatalf("version output missing short commit: %q", stdout)
	}
}

func TestRunVersionJSONOutputIncludesMetadata(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abcdef1234567890", "2026-01-02T03:04:05Z")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"--json"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("version JSON did not parse: %v\n%s", err, stdout)
	}
	if info.Version != "1.2.3" {
		t.Fatalf("unexpected version: %q", info.Version)
	}
	if info.Commit != "abcdef123456" {
		t.Fatalf("unexpected commit: %q", info.Commit)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected build time: %q", info.BuildTime)
	}
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Unknown command") {
		t.Fatalf("missing unknown-command error: %q", stderr)
	}
}

func TestRunSystemNounActionHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runSystemNoun([]string{"start", "--help"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "snipq system start") {
		t.Fatalf("missing start usage: %q", stdout)
	}
}

func TestRunSettingsNounHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runSettingsNoun([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	for _, want := range []string{"show", "use", "set-key", "set-model"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("settings help missing %q: %q", want, stdout)
		}
	}
}

func TestSettingsLifecycle(t *testing.T) {
	configPath := writeStateConfig(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runSettingsSetKey([]string{"openai", "sk-test", "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("set-key failed (%d): %s", code, stderr)
	}

	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runSettingsSetModel([]string{"openai", "gpt-4o-mini", "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("set-model failed (%d): %s", code, stderr)
	}

	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runSettingsUse([]string{"openai", "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("use failed (%d): %s", code, stderr)
	}

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runSettingsShow([]string{"--config", configPath, "--json"})
	})
	if code != 0 {
		t.Fatalf("show failed (%d): %s", code, stderr)
	}

	var rows []struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
		HasKey   bool   `json:"has_key"`
		Active   bool   `json:"active"`
	}
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("show JSON did not parse: %v\n%s", err, stdout)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(rows))
	}

	var openai *struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
		HasKey   bool   `json:"has_key"`
		Active   bool   `json:"active"`
	}
	for i := range rows {
		if rows[i].Provider == "openai" {
			openai = &rows[i]
		}
	}
	if openai == nil {
		t.Fatal("openai row missing")
	}
	if !openai.HasKey || openai.Model != "gpt-4o-mini" || !openai.Active {
		t.Fatalf("unexpected openai row: %+v", *openai)
	}
	if strings.Contains(stdout, "sk-test") {
		t.Fatalf("show leaked the API key: %q", stdout)
	}
}

func TestSettingsRejectsUnknownProvider(t *testing.T) {
	configPath := writeStateConfig(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runSettingsUse([]string{"cohere", "--config", configPath})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "unknown provider") {
		t.Fatalf("missing provider error: %q", stderr)
	}
}

func TestQueryRequiresTextAndDestination(t *testing.T) {
	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runQuery([]string{"--to", "tab-1"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1 without text, got %d", code)
	}

	code, _, _ = captureOutputWithExitCode(t, func() int {
		return runQuery([]string{"what is a goroutine"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1 without destination, got %d", code)
	}
}

func TestInspectRequiresDispatchID(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runInspect(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1 without dispatch id, got %d", code)
	}
	if !strings.Contains(stdout, "Usage: snipq inspect") {
		t.Fatalf("missing usage output: %q", stdout)
	}
}

func TestInspectUnknownDispatch(t *testing.T) {
	configPath := writeStateConfig(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runInspect([]string{"no-such-dispatch", "--config", configPath})
	})
	if code != 1 {
		t.Fatalf("expected exit 1 for unknown dispatch, got %d", code)
	}
	if !strings.Contains(stderr, "dispatch not found") {
		t.Fatalf("missing not-found error: %q", stderr)
	}
}
