package analysis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// maxLineBytes bounds a single output line. The final result object is
// printed on one line and can be large for long backtests.
const maxLineBytes = 16 * 1024 * 1024

// stderrTailBytes is how much stderr is kept for diagnostics.
const stderrTailBytes = 8 * 1024

// defaultWaitDelay is how long Wait keeps the pipes open after the process
// exited or was killed before forcibly closing them.
const defaultWaitDelay = 5 * time.Second

// LineFunc observes output lines as they are produced.
type LineFunc func(line string)

// Invocation describes one run of the external analysis program.
type Invocation struct {
	Executable string   // interpreter, e.g. python3
	Options    []string // interpreter options, e.g. -u
	Script     string   // script file path
	Args       []string // script arguments
	Dir        string   // working directory; empty means the script's directory
	Env        []string // extra KEY=VALUE entries appended to the parent environment

	// OnLine, when set, receives every stdout line in emission order.
	OnLine LineFunc
}

// argv returns the full argument vector passed to Executable.
func (inv Invocation) argv() []string {
	argv := make([]string, 0, len(inv.Options)+1+len(inv.Args))
	argv = append(argv, inv.Options...)
	argv = append(argv, inv.Script)
	argv = append(argv, inv.Args...)
	return argv
}

// Invoker runs an Invocation to completion and returns its stdout lines.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) ([]string, error)
}

// ExecutionFailure reports that the program could not be spawned, exited
// abnormally, was cancelled, or printed nothing.
type ExecutionFailure struct {
	Program  string
	ExitCode int    // -1 when the process never ran or was killed
	Stderr   string // tail of stderr
	Err      error
}

func (e *ExecutionFailure) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("execute %s: exit status %d: %v", e.Program, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("execute %s: %v", e.Program, e.Err)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }

// ErrNoOutput is the cause of an ExecutionFailure when the program exited
// cleanly without printing a single line.
var ErrNoOutput = errors.New("program produced no output")

// ProcessInvoker runs invocations as OS processes.
// Safe for concurrent use; every call owns its own process and buffers.
type ProcessInvoker struct {
	// Timeout bounds each invocation. Zero leaves the caller's context as
	// the only deadline.
	Timeout time.Duration

	// WaitDelay bounds how long stdout may stay open after the program
	// exits, e.g. held by a background child. Zero means 5s.
	WaitDelay time.Duration
}

// NewProcessInvoker creates a ProcessInvoker.
func NewProcessInvoker(timeout time.Duration) *ProcessInvoker {
	return &ProcessInvoker{Timeout: timeout}
}

// Invoke spawns the program, streams stdout line by line and waits for it to
// exit. On failure no lines are returned.
func (p *ProcessInvoker) Invoke(ctx context.Context, inv Invocation) ([]string, error) {
	program := filepath.Base(inv.Script)
	if program == "." || program == "" {
		program = inv.Executable
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	// The working directory changes below, so relative paths are pinned to ours.
	inv.Script = absPath(inv.Script)
	if strings.ContainsRune(inv.Executable, filepath.Separator) {
		inv.Executable = absPath(inv.Executable)
	}

	cmd := exec.CommandContext(ctx, inv.Executable, inv.argv()...)
	cmd.Dir = inv.Dir
	if cmd.Dir == "" && inv.Script != "" {
		cmd.Dir = filepath.Dir(inv.Script)
	}
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	cmd.Env = append(cmd.Env, inv.Env...)
	cmd.WaitDelay = p.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	// Wait owns the OS pipe behind pw, so WaitDelay also bounds a grandchild
	// that keeps stdout open after the interpreter died.
	pr, pw := io.Pipe()
	cmd.Stdout = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, &ExecutionFailure{Program: program, ExitCode: -1, Err: err}
	}

	waitCh := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitCh <- err
	}()

	lines, scanErr := readLines(pr, inv.OnLine)
	if scanErr != nil {
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}

	waitErr := <-waitCh
	// ErrWaitDelay only follows a clean exit; a leftover child kept the pipe open.
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		waitErr = nil
	}

	switch {
	case ctx.Err() != nil:
		return nil, &ExecutionFailure{Program: program, ExitCode: -1, Stderr: stderr.String(), Err: ctx.Err()}
	case waitErr != nil:
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &ExecutionFailure{Program: program, ExitCode: code, Stderr: stderr.String(), Err: waitErr}
	case scanErr != nil:
		return nil, &ExecutionFailure{Program: program, ExitCode: 0, Stderr: stderr.String(), Err: fmt.Errorf("read output: %w", scanErr)}
	case len(lines) == 0:
		return nil, &ExecutionFailure{Program: program, ExitCode: 0, Stderr: stderr.String(), Err: ErrNoOutput}
	}

	return lines, nil
}

func absPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func readLines(r io.Reader, onLine LineFunc) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lines = append(lines, line)
		if onLine != nil {
			onLine(line)
		}
	}
	return lines, scanner.Err()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
