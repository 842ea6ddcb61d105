/*
Package hostsfile reconciles the host OS's name-resolution file with a
single sentinel-delimited block mapping the orchestrator's canonical
service host names to one address — a lightweight stand-in for a real DNS
resolver, reconciled once per run instead of served live.
*/
package hostsfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/localai-packaged/orchestrator/pkg/fsutil"
	"github.com/localai-packaged/orchestrator/pkg/log"
	"github.com/localai-packaged/orchestrator/pkg/orcherr"
)

const (
	openSentinel  = "# >>> local-ai-packaged"
	closeSentinel = "# <<< local-ai-packaged"
)

// CanonicalHostnames is the fixed set of service host names the
// orchestrator maps. Order here is irrelevant; Reconcile always emits them
// sorted.
func CanonicalHostnames() []string {
	return []string{
		"raven.lan", "n8n.lan", "openwebui.lan", "studio.lan", "comfyui.lan",
		"whisper.lan", "va.lan", "nocodb.lan", "crawl4ai.lan", "qdrant.lan",
		"lmstudio.lan", "kokoro.lan", "traefik.lan", "flowise.lan",
	}
}

// Reconcile ensures hostsPath contains exactly one sentinel-delimited block
// mapping every canonical hostname to address, replacing any existing block
// wholesale and leaving every other line untouched and in order.
//
// A missing file is treated as empty. Unbalanced sentinels (one marker
// without its pair) fail with *orcherr.HostsFileError{Corrupt: true} rather
// than guessing what the operator intended. A write failure — almost always
// a permissions problem — is reported as *orcherr.HostsFileError{Unwritable: true};
// callers decide for themselves whether that's fatal (see cmd/orchestrator).
func Reconcile(hostsPath string, address string) error {
	logger := log.WithComponent("hostsfile")

	original, err := fsutil.ReadText(hostsPath)
	if err != nil {
		original = ""
	}

	before, after, err := excise(hostsPath, original)
	if err != nil {
		return err
	}

	block := renderBlock(address)
	rendered := assemble(before, block, after)

	if rendered == original {
		logger.Debug().Str("path", hostsPath).Msg("hosts file already reconciled")
		return nil
	}

	if err := fsutil.ReplaceAtomically(hostsPath, []byte(rendered)); err != nil {
		return &orcherr.HostsFileError{Path: hostsPath, Unwritable: true, Err: err}
	}

	logger.Info().Str("path", hostsPath).Str("address", address).Int("hosts", len(CanonicalHostnames())).Msg("hosts file reconciled")
	return nil
}

// excise splits content into the lines before and after any existing
// sentinel block (the block itself is dropped). It fails if the sentinels
// are unbalanced.
func excise(path, content string) (before, after []string, err error) {
	lines := strings.Split(content, "\n")
	// strings.Split on "" yields [""]; normalize to no lines.
	if content == "" {
		lines = nil
	}

	openIdx, closeIdx := -1, -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case openSentinel:
			if openIdx != -1 {
				return nil, nil, &orcherr.HostsFileError{Path: path, Corrupt: true}
			}
			openIdx = i
		case closeSentinel:
			if closeIdx != -1 || openIdx == -1 {
				return nil, nil, &orcherr.HostsFileError{Path: path, Corrupt: true}
			}
			closeIdx = i
		}
	}
	if (openIdx == -1) != (closeIdx == -1) {
		return nil, nil, &orcherr.HostsFileError{Path: path, Corrupt: true}
	}

	if openIdx == -1 {
		return lines, nil, nil
	}
	return lines[:openIdx], lines[closeIdx+1:], nil
}

func renderBlock(address string) []string {
	hostnames := append([]string(nil), CanonicalHostnames()...)
	sort.Strings(hostnames)

	block := make([]string, 0, len(hostnames)+2)
	block = append(block, openSentinel)
	for _, h := range hostnames {
		block = append(block, fmt.Sprintf("%s\t%s", address, h))
	}
	block = append(block, closeSentinel)
	return block
}

func assemble(before, block, after []string) string {
	lines := append([]string(nil), before...)
	lines = append(lines, block...)
	lines = append(lines, after...)
	return strings.Join(lines, "\n")
}
