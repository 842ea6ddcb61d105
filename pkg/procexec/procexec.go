// Package procexec spawns external commands and surfaces their outcome as a
// typed result: argv slices, not shell strings, and a bounded grace period
// before a forceful kill on cancellation.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/localai-packaged/orchestrator/pkg/log"
	"github.com/localai-packaged/orchestrator/pkg/orcherr"
)

// GracePeriod is how long a signaled child is given to exit before SIGKILL.
const GracePeriod = 5 * time.Second

// signalCtxKey carries the os.Signal that triggered a context's
// cancellation, set via ContextWithSignal, so Run can forward the actual
// signal the orchestrator received instead of always assuming SIGTERM.
type signalCtxKey struct{}

// ContextWithSignal returns a copy of ctx that Run will consult for which
// signal to forward to a running child on cancellation. sig is read at
// cancellation time, so the caller's signal handler can point it at the
// signal actually received after ctx is created.
func ContextWithSignal(ctx context.Context, sig *os.Signal) context.Context {
	return context.WithValue(ctx, signalCtxKey{}, sig)
}

// signalToForward reports which signal a canceled child should receive:
// whatever ContextWithSignal recorded, or SIGTERM if the context carries
// none.
func signalToForward(ctx context.Context) os.Signal {
	if sig, ok := ctx.Value(signalCtxKey{}).(*os.Signal); ok && sig != nil && *sig != nil {
		return *sig
	}
	return syscall.SIGTERM
}

// Options configures a single invocation of Run.
type Options struct {
	Dir     string            // working directory; empty means inherit
	Env     map[string]string // overrides applied to the child's environment only
	Capture bool              // if true, stdout/stderr are captured instead of inherited
	Check   bool              // if true, a non-zero exit returns *orcherr.ExternalCommandError
}

// Result is what Run returns: the captured output (if requested) and the
// exit code observed.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Run spawns argv[0] (resolved via PATH) with the given options, streaming
// output to the caller's stdout/stderr unless Capture is set. It blocks
// until the child exits or ctx is canceled. On cancellation the child is
// forwarded the same signal the orchestrator received (via
// ContextWithSignal; SIGTERM if the context carries none), then SIGKILL
// after GracePeriod.
func Run(ctx context.Context, argv []string, opts Options) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("procexec: empty argv")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnv(opts.Env)
	// Let the subprocess die by itself on ctx cancellation with a grace
	// period rather than the default immediate SIGKILL.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(signalToForward(ctx))
	}
	cmd.WaitDelay = GracePeriod

	var stdout, stderr, combined bytes.Buffer
	if opts.Capture {
		cmd.Stdout = io.MultiWriter(&stdout, &combined)
		cmd.Stderr = io.MultiWriter(&stderr, &combined)
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	log.WithComponent("procexec").Debug().Strs("argv", argv).Str("dir", opts.Dir).Msg("spawning subprocess")

	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}

	if ctx.Err() == context.Canceled {
		return res, &orcherr.Interrupted{}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else if err == nil {
		res.ExitCode = 0
	} else {
		return res, fmt.Errorf("procexec: failed to run %v: %w", argv, err)
	}

	if res.ExitCode != 0 && opts.Check {
		tail := res.Combined
		if len(tail) > 4096 {
			tail = tail[len(tail)-4096:]
		}
		return res, &orcherr.ExternalCommandError{Argv: argv, ExitCode: res.ExitCode, Tail: tail}
	}

	return res, nil
}

// buildEnv returns the current process environment with overrides applied,
// without mutating the parent's os.Environ().
func buildEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil // nil means "inherit os.Environ() unchanged"
	}
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
