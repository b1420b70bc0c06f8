// Package media hands book renditions to external programs.
package media

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/debuglog"
	"github.com/pders01/shelf/internal/validation"
)

// Opener opens a rendition outside the terminal.
type Opener interface {
	Open(r catalog.Rendition) error
}

type Launcher struct {
	openers       map[catalog.RenditionKind]string
	defaultOpener string
	registry      *OpenerRegistry
	validator     *validation.URLValidator

	lookPath func(string) (string, error)
	start    func(*exec.Cmd) error
}

func NewLauncher(cfg *config.Config) *Launcher {
	registry, err := NewOpenerRegistry()
	if err != nil {
		debuglog.Warnf("opener definitions unavailable: %v", err)
		registry = &OpenerRegistry{openers: make(map[string]OpenerDefinition), goos: runtime.GOOS}
	}

	validator := validation.NewLinkValidator()
	validator.AllowedHosts = cfg.Media.AllowedHosts

	l := &Launcher{
		openers:       make(map[catalog.RenditionKind]string),
		defaultOpener: cfg.Media.DefaultOpener,
		registry:      registry,
		validator:     validator,
		lookPath:      exec.LookPath,
		start:         startDetached,
	}
	l.resolve(openerSet(cfg.Media, runtime.GOOS))
	return l
}

func openerSet(m config.MediaConfig, goos string) config.OpenerSet {
	switch goos {
	case "linux":
		return m.Linux
	case "windows":
		return m.Windows
	default:
		return m.Darwin
	}
}

func (l *Launcher) resolve(set config.OpenerSet) {
	if l.defaultOpener == "" {
		l.defaultOpener = defaultOpenerFor(l.registry.goos)
	}
	candidates := map[catalog.RenditionKind][]string{
		catalog.RenditionHTML: set.HTML,
		catalog.RenditionPDF:  set.PDF,
		catalog.RenditionText: set.Text,
	}
	for kind, names := range candidates {
		opener := l.findOpener(kind, names)
		if opener == "" {
			opener = l.defaultOpener
		}
		l.openers[kind] = opener
	}
}

func (l *Launcher) findOpener(kind catalog.RenditionKind, names []string) string {
	for _, name := range names {
		if !l.registry.Supports(name, kind) {
			continue
		}
		if _, err := l.lookPath(l.registry.Executable(name)); err == nil {
			return name
		}
	}
	return ""
}

// OpenerFor returns the opener chosen for kind.
func (l *Launcher) OpenerFor(kind catalog.RenditionKind) string {
	if name, ok := l.openers[kind]; ok {
		return name
	}
	return l.defaultOpener
}

// Command validates the rendition URL and builds the opener invocation.
func (l *Launcher) Command(r catalog.Rendition) (*exec.Cmd, error) {
	url, err := l.validator.ValidateAndNormalize(r.URL)
	if err != nil {
		return nil, fmt.Errorf("refusing to open %q: %w", r.URL, err)
	}

	name := l.OpenerFor(r.Kind)
	if name == "" {
		return nil, fmt.Errorf("no application found to open %s", r.Kind)
	}

	cmd, err := l.registry.Command(name, r.Kind, url)
	if err != nil {
		debuglog.Debugf("falling back to plain %s invocation: %v", name, err)
		cmd = exec.Command(l.registry.Executable(name), url)
	}
	return cmd, nil
}

func (l *Launcher) Open(r catalog.Rendition) error {
	cmd, err := l.Command(r)
	if err != nil {
		return err
	}
	debuglog.Infof("opening %s rendition with %s", r.Kind, cmd.Path)
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	return nil
}

// Start GUI applications detached
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func defaultOpenerFor(goos string) string {
	switch goos {
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}
