package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "build_index.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func TestRunCapturesOutput(t *testing.T) {
	requireShell(t)
	script := writeScript(t, "echo \"built $1 $2\"\necho warn >&2\n")
	runner := NewRunner(Config{Interpreter: "/bin/sh", Script: script})

	result, err := runner.Run(context.Background(), []string{"uploads", "--corpus"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if strings.TrimSpace(result.Stdout) != "built uploads --corpus" || strings.TrimSpace(result.Stderr) != "warn" {
		t.Fatalf("unexpected output: %+v", result)
	}
}

func TestRunReportsNonZeroExitAsResult(t *testing.T) {
	requireShell(t)
	script := writeScript(t, "echo partial\necho 'Traceback: boom' >&2\nexit 3\n")
	runner := NewRunner(Config{Interpreter: "/bin/sh", Script: script})

	result, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("non-zero exit must not be an error, got %v", err)
	}
	if result.Success || strings.TrimSpace(result.Stderr) != "Traceback: boom" || strings.TrimSpace(result.Stdout) != "partial" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunMissingInterpreter(t *testing.T) {
	runner := NewRunner(Config{Interpreter: filepath.Join(t.TempDir(), "no-such-python"), Script: "x.py"})

	_, err := runner.Run(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected start error")
	}
}

func TestRunTimeoutIsTemporary(t *testing.T) {
	requireShell(t)
	script := writeScript(t, "exec sleep 5\n")
	runner := NewRunner(Config{Interpreter: "/bin/sh", Script: script, Timeout: 50 * time.Millisecond})

	_, err := runner.Run(context.Background(), nil)
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error on timeout, got %v", err)
	}
}

func TestPipelineAvailable(t *testing.T) {
	workDir := t.TempDir()
	runner := NewRunner(Config{WorkDir: workDir, Script: "scripts/build_index.py"})
	if runner.PipelineAvailable() {
		t.Fatalf("missing script must not be available")
	}
	if runner.Script() != filepath.Join(workDir, "scripts/build_index.py") {
		t.Fatalf("relative script must resolve against workdir, got %q", runner.Script())
	}

	if err := os.MkdirAll(filepath.Join(workDir, "scripts"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(runner.Script(), []byte("print('ok')\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !runner.PipelineAvailable() {
		t.Fatalf("existing script must be available")
	}
}
