package main

import (
	"testing"

	"github.com/localai-packaged/orchestrator/pkg/orcherr"
	"github.com/localai-packaged/orchestrator/pkg/stack"
)

func TestExitCodeForMapsKnownErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want orcherr.ExitCode
	}{
		{"nil", nil, orcherr.ExitOK},
		{"usage", &usageError{"bad flag"}, orcherr.ExitUsage},
		{"config", &orcherr.ConfigParseError{Path: ".env", Line: 3}, orcherr.ExitConfigInvalid},
		{"certificate", &orcherr.CertificateError{}, orcherr.ExitCertificateFailed},
		{"subrepo", &orcherr.SubRepoError{}, orcherr.ExitSubRepoFailed},
		{"hosts", &orcherr.HostsFileError{}, orcherr.ExitHostsFileUnwritable},
		{"interrupted", &orcherr.Interrupted{}, orcherr.ExitInterrupted},
		{"infra stage", &stack.StageError{Stack: "infra", Err: &orcherr.ExternalCommandError{}}, orcherr.ExitInfraStackFailed},
		{"ai stage", &stack.StageError{Stack: "ai", Err: &orcherr.ExternalCommandError{}}, orcherr.ExitAIStackFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeFor(tc.err); got != tc.want {
				t.Fatalf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
