/*
Package subrepo ensures the external sub-stack checkout (the third-party
compose repository this orchestrator merges with) is present at a pinned
path, shelling out to the git binary through procexec: argv slices, not a
vendored git implementation.
*/
package subrepo

import (
	"context"
	"os"
	"path/filepath"

	"github.com/localai-packaged/orchestrator/pkg/log"
	"github.com/localai-packaged/orchestrator/pkg/orcherr"
	"github.com/localai-packaged/orchestrator/pkg/procexec"
)

// EnsureSubrepo makes sure targetDir contains a checkout of url pinned at
// ref, sparse to subtreePath. If targetDir/.git already exists, it fetches
// ref and hard-resets the working tree (never merges); otherwise it performs
// a shallow, sparse clone.
func EnsureSubrepo(ctx context.Context, url, targetDir, subtreePath, ref string) error {
	logger := log.WithComponent("subrepo")

	if gitDirExists(targetDir) {
		logger.Info().Str("dir", targetDir).Str("ref", ref).Msg("sub-repo present, fetching pinned ref")
		return fetchAndReset(ctx, targetDir, ref)
	}

	logger.Info().Str("url", url).Str("dir", targetDir).Str("subtree", subtreePath).Msg("cloning sub-repo")
	return sparseClone(ctx, url, targetDir, subtreePath, ref)
}

func gitDirExists(targetDir string) bool {
	info, err := os.Stat(filepath.Join(targetDir, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

func fetchAndReset(ctx context.Context, targetDir, ref string) error {
	if _, err := run(ctx, targetDir, "fetch", "--depth", "1", "origin", ref); err != nil {
		return &orcherr.SubRepoError{Op: "fetch", URL: "origin", Ref: ref, Err: err}
	}
	if _, err := run(ctx, targetDir, "reset", "--hard", "FETCH_HEAD"); err != nil {
		return &orcherr.SubRepoError{Op: "ref", Ref: ref, Err: err}
	}
	return nil
}

func sparseClone(ctx context.Context, url, targetDir, subtreePath, ref string) error {
	if err := os.MkdirAll(filepath.Dir(targetDir), 0o755); err != nil {
		return &orcherr.SubRepoError{Op: "fetch", URL: url, Ref: ref, Err: err}
	}

	if _, err := runIn(ctx, "", "clone", "--filter=blob:none", "--no-checkout", "--depth", "1", "--branch", ref, url, targetDir); err != nil {
		return &orcherr.SubRepoError{Op: "fetch", URL: url, Ref: ref, Err: err}
	}
	if _, err := run(ctx, targetDir, "sparse-checkout", "set", "--cone", subtreePath); err != nil {
		return &orcherr.SubRepoError{Op: "fetch", URL: url, Ref: ref, Err: err}
	}
	if _, err := run(ctx, targetDir, "checkout", ref); err != nil {
		return &orcherr.SubRepoError{Op: "ref", URL: url, Ref: ref, Err: err}
	}
	return nil
}

func run(ctx context.Context, dir string, args ...string) (procexec.Result, error) {
	return runIn(ctx, dir, args...)
}

func runIn(ctx context.Context, dir string, args ...string) (procexec.Result, error) {
	argv := append([]string{"git"}, args...)
	return procexec.Run(ctx, argv, procexec.Options{Dir: dir, Capture: true, Check: true})
}
