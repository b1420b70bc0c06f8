package media

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/shelf/internal/catalog"
)

//go:embed openers.toml
var openersTOML []byte

// OpenerDefinition describes how an opener program is invoked.
type OpenerDefinition struct {
	Description string   `toml:"description"`
	Platforms   []string `toml:"platforms"`
	// Command is the executable; empty means the opener's own name
	Command string   `toml:"command,omitempty"`
	Args    []string `toml:"args,omitempty"`
	// Kinds restricts the opener to these rendition kinds; empty means any
	Kinds []string `toml:"kinds,omitempty"`
}

type openersFile struct {
	Openers map[string]OpenerDefinition `toml:"openers"`
}

// OpenerRegistry maps opener names to their definitions.
type OpenerRegistry struct {
	openers map[string]OpenerDefinition
	goos    string
}

// NewOpenerRegistry loads the built-in definitions, then any user overrides
// from ~/.config/shelf/openers.toml.
func NewOpenerRegistry() (*OpenerRegistry, error) {
	defs, err := parseOpeners(openersTOML)
	if err != nil {
		return nil, fmt.Errorf("parsing openers.toml: %w", err)
	}
	r := &OpenerRegistry{openers: defs, goos: runtime.GOOS}

	if home, err := os.UserHomeDir(); err == nil {
		r.loadFile(filepath.Join(home, ".config", "shelf", "openers.toml"))
	}
	return r, nil
}

func parseOpeners(data []byte) (map[string]OpenerDefinition, error) {
	var f openersFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Openers == nil {
		f.Openers = make(map[string]OpenerDefinition)
	}
	return f.Openers, nil
}

func (r *OpenerRegistry) loadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	defs, err := parseOpeners(data)
	if err != nil {
		return
	}
	for name, def := range defs {
		r.openers[name] = def
	}
}

// Executable returns the program that has to be on PATH for name.
func (r *OpenerRegistry) Executable(name string) string {
	if def, ok := r.openers[name]; ok && def.Command != "" {
		return def.Command
	}
	return name
}

// Supports reports whether name can open kind on the current platform.
// Unknown openers are assumed to handle anything.
func (r *OpenerRegistry) Supports(name string, kind catalog.RenditionKind) bool {
	def, ok := r.openers[name]
	if !ok {
		return true
	}
	if len(def.Platforms) > 0 && !slices.Contains(def.Platforms, r.goos) {
		return false
	}
	return len(def.Kinds) == 0 || slices.Contains(def.Kinds, string(kind))
}

// Command builds the invocation of name for url.
func (r *OpenerRegistry) Command(name string, kind catalog.RenditionKind, url string) (*exec.Cmd, error) {
	def, ok := r.openers[name]
	if !ok {
		return exec.Command(name, url), nil
	}
	if !r.Supports(name, kind) {
		return nil, fmt.Errorf("%s cannot open %s on %s", name, kind, r.goos)
	}
	args := append(slices.Clone(def.Args), url)
	return exec.Command(r.Executable(name), args...), nil
}
