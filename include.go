// include.go — abstract source provider for `include("path");`.
//
// The resolution strategy (directory-relative filesystem lookup, and a
// logical-name lookup against an in-memory map for embedded scripts) is
// grounded on the teacher's modules.go ImportFile, simplified to this
// spec's narrower include syntax: a single quoted path argument, no URL
// imports (those are a host-language extension outside this front end's
// scope).
package hostjs

import (
	"fmt"
	"os"
	"path/filepath"
)

// IncludeLoader maps a quoted include argument to its text and a canonical
// reference name used both for duplicate detection and for error
// reporting against the included file.
type IncludeLoader interface {
	Load(includeArgument string) (text, canonicalName string, err error)
}

// ProjectIncludeLoader resolves include arguments as paths under a single
// project root directory.
type ProjectIncludeLoader struct {
	Root string
}

func (p *ProjectIncludeLoader) Load(arg string) (string, string, error) {
	full := filepath.Join(p.Root, arg)
	data, err := os.ReadFile(full)
	if err != nil {
		return "", "", fmt.Errorf("include %q not found under %q: %w", arg, p.Root, err)
	}
	canonical := filepath.Clean(full)
	return string(data), canonical, nil
}

// EmbeddedIncludeLoader looks up include arguments by logical name in an
// in-memory map, for hosts that ship scripts baked into the binary.
type EmbeddedIncludeLoader struct {
	Files map[string]string
}

func (e *EmbeddedIncludeLoader) Load(arg string) (string, string, error) {
	text, ok := e.Files[arg]
	if !ok {
		return "", "", fmt.Errorf("no embedded include named %q", arg)
	}
	return text, arg, nil
}

// ChainIncludeLoader tries each loader in order and returns the first
// success, letting a host combine an embedded manifest with a filesystem
// fallback.
type ChainIncludeLoader struct {
	Loaders []IncludeLoader
}

func (c *ChainIncludeLoader) Load(arg string) (string, string, error) {
	var lastErr error
	for _, l := range c.Loaders {
		text, canonical, err := l.Load(arg)
		if err == nil {
			return text, canonical, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no include loader configured")
	}
	return "", "", lastErr
}
