/*
Package compose propagates the canonical .env file into the sub-stack
checkout and patches the sub-stack's compose document to publish the
database pooler's port. The patch walks a yaml.Node tree instead of
regexing the file, so unknown keys, comments, and key order outside the
patched path survive untouched.
*/
package compose

import (
	"bytes"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/localai-packaged/orchestrator/pkg/fsutil"
	"github.com/localai-packaged/orchestrator/pkg/log"
)

// PoolerServiceKey is the sub-stack compose service that fronts the
// database connection pooler (conventionally named "supavisor").
const PoolerServiceKey = "supavisor"

// PoolerPort is the well-known port the pooler listens on; it must be
// published so sibling containers in the AI stack can reach it.
const PoolerPort = 6543

// CopyEnvToSubrepo copies envPath into subrepoDockerDir/.env, overwriting
// any prior copy and mirroring the source file's permissions.
func CopyEnvToSubrepo(envPath, subrepoDockerDir string) error {
	dst := filepath.Join(subrepoDockerDir, ".env")
	if err := fsutil.CopyFile(envPath, dst); err != nil {
		return fmt.Errorf("compose: copy env to sub-repo: %w", err)
	}
	log.WithComponent("compose").Info().Str("dst", dst).Msg("propagated canonical .env into sub-repo")
	return nil
}

// PatchSubrepoCompose ensures the pooler service in the compose document at
// composePath publishes PoolerPort:PoolerPort, inserting it only if
// absent. The file is rewritten (atomically) only when a change was made;
// every other key, comment, and ordering in the document is preserved.
func PatchSubrepoCompose(composePath string) error {
	logger := log.WithComponent("compose")

	original, err := fsutil.ReadText(composePath)
	if err != nil {
		return fmt.Errorf("compose: read %s: %w", composePath, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(original), &doc); err != nil {
		return fmt.Errorf("compose: parse %s: %w", composePath, err)
	}

	changed, err := ensurePoolerPort(&doc)
	if err != nil {
		return fmt.Errorf("compose: patch %s: %w", composePath, err)
	}
	if !changed {
		logger.Debug().Str("path", composePath).Msg("pooler port already published, no patch needed")
		return nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("compose: re-encode %s: %w", composePath, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("compose: re-encode %s: %w", composePath, err)
	}

	if err := fsutil.ReplaceAtomically(composePath, buf.Bytes()); err != nil {
		return fmt.Errorf("compose: write %s: %w", composePath, err)
	}
	logger.Info().Str("path", composePath).Str("service", PoolerServiceKey).Int("port", PoolerPort).Msg("published pooler port")
	return nil
}

// ensurePoolerPort walks the document for services.<PoolerServiceKey>.ports
// and appends "PORT:PORT" if that exact mapping is not already listed. It
// creates the ports sequence if the service has none.
func ensurePoolerPort(doc *yaml.Node) (bool, error) {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return false, fmt.Errorf("empty document")
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return false, fmt.Errorf("compose document root is not a mapping")
	}

	services := mappingValue(root, "services")
	if services == nil || services.Kind != yaml.MappingNode {
		return false, fmt.Errorf("compose document has no services mapping")
	}

	service := mappingValue(services, PoolerServiceKey)
	if service == nil || service.Kind != yaml.MappingNode {
		return false, fmt.Errorf("compose document has no %s service", PoolerServiceKey)
	}

	mapping := fmt.Sprintf("%d:%d", PoolerPort, PoolerPort)

	ports := mappingValue(service, "ports")
	if ports == nil {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		seq.Content = append(seq.Content, scalar(mapping))
		service.Content = append(service.Content, scalar("ports"), seq)
		return true, nil
	}
	if ports.Kind != yaml.SequenceNode {
		return false, fmt.Errorf("%s.ports is not a sequence", PoolerServiceKey)
	}
	for _, entry := range ports.Content {
		if entry.Value == mapping {
			return false, nil
		}
	}
	ports.Content = append(ports.Content, scalar(mapping))
	return true, nil
}

// mappingValue returns the value node for key in a MappingNode, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
