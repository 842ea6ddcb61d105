// Package orchestrator holds the small set of types shared across the
// launch pipeline: the acceleration Profile, the Stack descriptor, and the
// host-capability predicate used to validate --profile at parse time.
package orchestrator

import "runtime"

// Profile is the hardware acceleration profile selected for a launch.
type Profile string

const (
	ProfileGPUNvidia Profile = "gpu-nvidia"
	ProfileGPUAMD    Profile = "gpu-amd"
	ProfileCPU       Profile = "cpu"
	ProfileNone      Profile = "none"
)

// Valid reports whether p is one of the closed enumeration's members.
func (p Profile) Valid() bool {
	switch p {
	case ProfileGPUNvidia, ProfileGPUAMD, ProfileCPU, ProfileNone:
		return true
	}
	return false
}

// HostSupportsAMDGPU reports whether the current host can run gpu-amd
// containers. AMD GPU passthrough is only wired up on Linux-family hosts;
// confined here so no other component needs a runtime.GOOS branch.
func HostSupportsAMDGPU() bool {
	return runtime.GOOS == "linux"
}

// Stack describes one of the two container stacks the launcher brings up.
type Stack struct {
	Name string // human-readable label: "infra" or "ai"

	// ComposeFiles is the ordered list of compose file paths; later files
	// overlay earlier ones.
	ComposeFiles []string

	// Project is the compose project identity. Both stacks share the same
	// value so `compose down` tears down both.
	Project string

	// ProfileAware is true if this stack accepts a --profile flag when the
	// selected Profile isn't ProfileNone. The infra stack does not.
	ProfileAware bool

	// OverlayIfPresent is an extra compose file included only when it
	// exists on disk (the host-cache overlay).
	OverlayIfPresent string
}

// ComposeFileArgs returns the "-f" arguments for this stack, including
// OverlayIfPresent only when checkExists reports it's on disk.
func (s Stack) ComposeFileArgs(checkExists func(string) bool) []string {
	args := make([]string, 0, 2*(len(s.ComposeFiles)+1))
	for _, f := range s.ComposeFiles {
		args = append(args, "-f", f)
	}
	if s.OverlayIfPresent != "" && checkExists(s.OverlayIfPresent) {
		args = append(args, "-f", s.OverlayIfPresent)
	}
	return args
}
