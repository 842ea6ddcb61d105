package procexec

import (
	"context"
	"errors"
	"testing"

	"github.com/localai-packaged/orchestrator/pkg/orcherr"
)

func TestRunCaptureSuccess(t *testing.T) {
	res, err := Run(context.Background(), []string{"echo", "hello"}, Options{Capture: true, Check: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
}

func TestRunCheckFailure(t *testing.T) {
	_, err := Run(context.Background(), []string{"sh", "-c", "exit 7"}, Options{Capture: true, Check: true})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	var cmdErr *orcherr.ExternalCommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *orcherr.ExternalCommandError, got %T: %v", err, err)
	}
	if cmdErr.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", cmdErr.ExitCode)
	}
}

func TestRunNoCheckDoesNotError(t *testing.T) {
	res, err := Run(context.Background(), []string{"sh", "-c", "exit 3"}, Options{Capture: true, Check: false})
	if err != nil {
		t.Fatalf("unexpected error with Check=false: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestRunEmptyArgv(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected error for empty argv")
	}
}
