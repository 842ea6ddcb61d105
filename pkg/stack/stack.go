/*
Package stack drives the container engine through compose invocations: a
mandatory tear-down followed by the infra stack and then the AI stack, with
a fixed pause between them so the infra stack's initializer containers can
create the schema the AI stack expects on first connect. Every invocation
goes through procexec so cancellation and output capture are uniform with
the rest of the orchestrator.
*/
package stack

import (
	"context"
	"time"

	"github.com/localai-packaged/orchestrator/pkg/fsutil"
	"github.com/localai-packaged/orchestrator/pkg/log"
	"github.com/localai-packaged/orchestrator/pkg/orcherr"
	"github.com/localai-packaged/orchestrator/pkg/orchestrator"
	"github.com/localai-packaged/orchestrator/pkg/procexec"
)

// DefaultPauseBetween is the time given to the infra stack's initializer
// containers to finish schema creation before the AI stack connects.
const DefaultPauseBetween = 10 * time.Second

// ComposeBinary is the executable invoked for every stack operation.
// Overridable in tests.
var ComposeBinary = "docker"

// Sleep is overridable in tests so the inter-stack pause doesn't slow the
// suite down.
var Sleep = time.Sleep

// PathExists is overridable in tests; defaults to a real stat.
var PathExists = fsutil.Exists

// Launcher brings up an ordered list of stacks for one project.
type Launcher struct {
	Project      string
	Stacks       []orchestrator.Stack
	Profile      orchestrator.Profile
	PauseBetween time.Duration
}

// StackDurations maps a stack's Name to the wall-clock duration of its own
// `compose up` invocation (tear-down and the inter-stack pause are excluded,
// so the numbers reflect only the work each stack itself did).
type StackDurations map[string]time.Duration

// BringUp tears the project down unconditionally, then starts each stack in
// order, pausing PauseBetween (DefaultPauseBetween if zero) after the first
// stack. The first stack failure aborts the remaining stacks and is
// returned alongside the durations recorded for any stacks that did start:
// a non-zero compose exit comes back as a *StageError wrapping the
// *orcherr.ExternalCommandError, any other procexec error (such as
// *orcherr.Interrupted) unchanged.
func (l Launcher) BringUp(ctx context.Context) (StackDurations, error) {
	logger := log.WithComponent("stack")
	pause := l.PauseBetween
	if pause <= 0 {
		pause = DefaultPauseBetween
	}
	durations := StackDurations{}

	// Tear-down is best-effort: a non-zero exit here (e.g. nothing was
	// running, or a leftover container refuses removal) must not block the
	// up sequence that follows. A signal interruption is the one exception.
	if err := l.tearDown(ctx); err != nil {
		if _, interrupted := err.(*orcherr.Interrupted); interrupted {
			return durations, err
		}
		logger.Warn().Err(err).Msg("tear-down reported an error, continuing")
	}

	for i, s := range l.Stacks {
		logger.Info().Str("stack", s.Name).Msg("starting stack")
		start := time.Now()
		err := l.up(ctx, s)
		durations[s.Name] = time.Since(start)
		if err != nil {
			logger.Error().Str("stack", s.Name).Err(err).Msg("stack failed to start")
			return durations, err
		}
		logger.Info().Str("stack", s.Name).Msg("stack up")

		if i == 0 && len(l.Stacks) > 1 {
			logger.Info().Dur("pause", pause).Msg("pausing for infra initializers")
			Sleep(pause)
		}
	}
	return durations, nil
}

// tearDown invokes `compose down` once against the union of every stack's
// compose files. Idempotent: absent containers produce no error.
func (l Launcher) tearDown(ctx context.Context) error {
	args := []string{"compose", "-p", l.Project}
	for _, s := range l.Stacks {
		args = append(args, s.ComposeFileArgs(PathExists)...)
	}
	args = append(args, "down")

	_, err := procexec.Run(ctx, append([]string{ComposeBinary}, args...), procexec.Options{
		Check: true,
	})
	return err
}

func (l Launcher) up(ctx context.Context, s orchestrator.Stack) error {
	args := []string{"compose", "-p", l.Project}
	args = append(args, s.ComposeFileArgs(PathExists)...)
	args = append(args, "up", "-d")

	if s.ProfileAware && l.Profile != orchestrator.ProfileNone && l.Profile != "" {
		args = append(args, "--profile", string(l.Profile))
	}
	args = append(args, "--build")

	_, err := procexec.Run(ctx, append([]string{ComposeBinary}, args...), procexec.Options{
		Env:   map[string]string{"DOCKER_BUILDKIT": "1"},
		Check: true,
	})
	if err != nil {
		return wrapStageFailure(s.Name, err)
	}
	return nil
}

// wrapStageFailure annotates a failure with which stage (infra/ai) it came
// from so callers can map to the right exit code without string-matching.
func wrapStageFailure(stackName string, err error) error {
	var extErr *orcherr.ExternalCommandError
	if asExternalCommandError(err, &extErr) {
		return &StageError{Stack: stackName, Err: extErr}
	}
	return err
}

func asExternalCommandError(err error, target **orcherr.ExternalCommandError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*orcherr.ExternalCommandError); ok {
			*target = e
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// StageError identifies which stack (infra or ai) a compose up failure came
// from, so the entry point can map it to exit code 20 vs 21.
type StageError struct {
	Stack string
	Err   *orcherr.ExternalCommandError
}

func (e *StageError) Error() string { return e.Stack + " stack: " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }
