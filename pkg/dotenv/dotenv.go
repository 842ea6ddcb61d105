/*
Package dotenv implements a round-trip-preserving store for the
orchestrator's .env configuration file.

A Config is a sequence of entries — comments, blank lines, and KEY=VALUE
assignments — loaded once, edited in place, and serialized back out
byte-stable except for the specific edits the caller made. This avoids
reordering the operator's file or stripping their comments, both of which
would make the file's git history unreviewable, the way a regex-and-replace
pass over the raw lines would.
*/
package dotenv

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/localai-packaged/orchestrator/pkg/fsutil"
	"github.com/localai-packaged/orchestrator/pkg/log"
	"github.com/localai-packaged/orchestrator/pkg/orcherr"
)

var assignmentRE = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=(.*)$`)

// EntryKind discriminates the three line shapes a Config can hold.
type EntryKind int

const (
	KindComment EntryKind = iota
	KindBlank
	KindAssignment
)

// Entry is one line of the configuration file.
type Entry struct {
	Kind  EntryKind
	Raw   string // the line as rendered, without its trailing newline (rebuilt as KEY=VALUE when SetOrAppend changes an assignment)
	Key   string // set when Kind == KindAssignment
	Value string // set when Kind == KindAssignment
}

// Config is the ordered sequence of entries parsed from a dotenv file, plus
// the original newline style so Save can reproduce it.
type Config struct {
	Entries      []Entry
	newline      string // "\n" or "\r\n", detected from the source file
	finalNewline bool   // whether the source file ended with a line terminator
}

// Load parses path into a Config. A line is an Assignment if it matches
// ^\s*[A-Za-z_][A-Za-z0-9_]*\s*=; quoting is not interpreted, the raw value
// (minus the line terminator) is kept verbatim. Any other non-blank,
// non-comment line is a ConfigParseError.
func Load(path string) (*Config, error) {
	text, err := fsutil.ReadText(path)
	if err != nil {
		return nil, &orcherr.ConfigParseError{Path: path, Line: 0}
	}
	return Parse(path, text)
}

// Parse parses raw dotenv text (exposed separately from Load so callers, and
// tests, can feed content that never touched disk).
func Parse(path, text string) (*Config, error) {
	cfg := &Config{newline: detectNewline(text), finalNewline: strings.HasSuffix(text, "\n")}
	if text == "" {
		cfg.finalNewline = true // an empty file round-trips to an empty file either way
		return cfg, nil
	}

	lines := splitLinesKeepEmpty(text, cfg.newline)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			cfg.Entries = append(cfg.Entries, Entry{Kind: KindBlank, Raw: line})
		case strings.HasPrefix(trimmed, "#"):
			cfg.Entries = append(cfg.Entries, Entry{Kind: KindComment, Raw: line})
		default:
			m := assignmentRE.FindStringSubmatch(line)
			if m == nil {
				return nil, &orcherr.ConfigParseError{Path: path, Line: i + 1}
			}
			cfg.Entries = append(cfg.Entries, Entry{
				Kind:  KindAssignment,
				Raw:   line,
				Key:   m[1],
				Value: m[2],
			})
		}
	}
	return cfg, nil
}

// Get returns the value for key and whether it was present.
func (c *Config) Get(key string) (string, bool) {
	for _, e := range c.Entries {
		if e.Kind == KindAssignment && e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// SetOrAppend sets key to value, mutating the existing Assignment in place
// if one exists, or appending a new Assignment (preceded by leadingComment,
// if non-empty) at end-of-file otherwise. Returns true iff the file content
// changed as a result.
func (c *Config) SetOrAppend(key, value, leadingComment string) bool {
	for i, e := range c.Entries {
		if e.Kind == KindAssignment && e.Key == key {
			if e.Value == value {
				return false
			}
			c.Entries[i].Value = value
			c.Entries[i].Raw = key + "=" + value
			return true
		}
	}

	if leadingComment != "" {
		c.Entries = append(c.Entries, Entry{Kind: KindComment, Raw: leadingComment})
	}
	c.Entries = append(c.Entries, Entry{Kind: KindAssignment, Key: key, Value: value, Raw: key + "=" + value})
	return true
}

// EnsureDefault appends key=default (with leadingComment, if any) only if
// key is not already present. Returns true iff the file changed.
func (c *Config) EnsureDefault(key, value, leadingComment string) bool {
	if _, ok := c.Get(key); ok {
		return false
	}
	changed := c.SetOrAppend(key, value, leadingComment)
	if changed {
		log.Info(fmt.Sprintf("dotenv: inserted missing default %s=%s", key, value))
	}
	return changed
}

// Render serializes the Config back to text, preserving the original
// newline style.
func (c *Config) Render() string {
	var b strings.Builder
	for i, e := range c.Entries {
		b.WriteString(e.Raw)
		if i < len(c.Entries)-1 || c.finalNewline {
			b.WriteString(c.newline)
		}
	}
	return b.String()
}

// Save writes the Config to path via fsutil.ReplaceAtomically, but only if
// the rendered content differs from what's on disk (or the file is absent).
func (c *Config) Save(path string) error {
	rendered := c.Render()
	if existing, err := fsutil.ReadText(path); err == nil && existing == rendered {
		return nil
	}
	return fsutil.ReplaceAtomically(path, []byte(rendered))
}

func detectNewline(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// splitLinesKeepEmpty splits text on newline while dropping exactly one
// trailing terminator-induced empty element, so a file ending in a final
// newline doesn't grow a spurious blank Entry on every round trip.
func splitLinesKeepEmpty(text, newline string) []string {
	trimmed := strings.TrimSuffix(text, newline)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, newline)
}
