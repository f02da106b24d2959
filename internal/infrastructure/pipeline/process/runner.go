package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

const (
	DefaultInterpreter = "python3"
	DefaultScript      = "rag_chatbot/scripts/build_index.py"
	DefaultTimeout     = 10 * time.Minute

	waitDelay = 5 * time.Second
)

type Config struct {
	Interpreter string
	Script      string
	WorkDir     string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Runner executes the index pipeline script as a child process and captures
// its output.
type Runner struct {
	interpreter string
	script      string
	workDir     string
	timeout     time.Duration
	logger      *slog.Logger
}

func NewRunner(cfg Config) *Runner {
	interpreter := strings.TrimSpace(cfg.Interpreter)
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	script := strings.TrimSpace(cfg.Script)
	if script == "" {
		script = DefaultScript
	}
	if !filepath.IsAbs(script) && cfg.WorkDir != "" {
		script = filepath.Join(cfg.WorkDir, script)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		interpreter: interpreter,
		script:      script,
		workDir:     cfg.WorkDir,
		timeout:     timeout,
		logger:      logger,
	}
}

func (r *Runner) Script() string { return r.script }

// PipelineAvailable reports whether the script exists as a regular file.
func (r *Runner) PipelineAvailable() bool {
	info, err := os.Stat(r.script)
	return err == nil && info.Mode().IsRegular()
}

// Run starts interpreter script args... and waits for it. A non-zero exit is a
// result with Success false, not an error; errors mean the process could not
// be started or was cancelled.
func (r *Runner) Run(ctx context.Context, args []string) (domain.ProcessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.interpreter, append([]string{r.script}, args...)...)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	started := time.Now()
	err := cmd.Run()
	result := domain.ProcessResult{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return result, domain.WrapError(domain.ErrTemporary, "index pipeline", ctx.Err())
	case errors.As(err, &exitErr):
		r.logger.Warn("pipeline_exit_nonzero",
			"script", r.script,
			"exit_code", exitErr.ExitCode(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return result, nil
	default:
		return result, fmt.Errorf("start %s: %w", r.interpreter, err)
	}

	r.logger.Info("pipeline_finished", "script", r.script, "duration_ms", time.Since(started).Milliseconds())
	return result, nil
}
