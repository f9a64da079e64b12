// Package project inspects and prepares PHP project directories.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/bassemshaker/phpsrv/internal/catalog"
	"github.com/bassemshaker/phpsrv/internal/detector"
	"github.com/bassemshaker/phpsrv/internal/git"
	"github.com/bassemshaker/phpsrv/internal/manifest"
	"github.com/bassemshaker/phpsrv/internal/phpbin"
	"github.com/bassemshaker/phpsrv/internal/platform"
	"github.com/bassemshaker/phpsrv/internal/types"
)

var (
	// ErrManifestMissing is returned by Setup when a framework needs composer.json
	ErrManifestMissing = errors.New("composer.json not found")
	// ErrProjectNotFound is returned by Remove for a name with no directory
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidProjectName rejects names that are not a single path element
	ErrInvalidProjectName = errors.New("invalid project name")
)

// Orchestrator inspects projects and runs framework setup
type Orchestrator struct {
	installer Installer
	resolver  *phpbin.Resolver
	logger    *zap.Logger
}

// Option configures the Orchestrator
type Option func(*Orchestrator)

// WithInstaller sets the dependency installer
func WithInstaller(i Installer) Option {
	return func(o *Orchestrator) {
		if i != nil {
			o.installer = i
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRuntimeResolver sets the resolver used to pick a PHP version
func WithRuntimeResolver(r *phpbin.Resolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		installer: ComposerInstaller{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Inspect classifies the project at path and gathers its metadata
func (o *Orchestrator) Inspect(path string) (*types.ProjectInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	fw, err := detector.Classify(abs)
	if err != nil {
		return nil, err
	}
	return o.inspect(abs, fw), nil
}

func (o *Orchestrator) inspect(abs string, fw types.Framework) *types.ProjectInfo {
	info := &types.ProjectInfo{
		Name:       filepath.Base(abs),
		Path:       abs,
		Framework:  fw,
		EntryPoint: EntryPoint(abs, fw),
	}

	m, err := manifest.Read(abs)
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		o.logger.Debug("ignoring unreadable manifest", zap.String("path", abs), zap.Error(err))
	}
	info.PHPConstraint = m.PHPConstraint()

	if info.PHPConstraint != "" && o.resolver != nil {
		version, err := o.resolver.Match(info.PHPConstraint)
		if err != nil {
			o.logger.Debug("no installed php matches",
				zap.String("path", abs),
				zap.String("constraint", info.PHPConstraint),
				zap.Error(err),
			)
		}
		info.PHPVersion = version
	}

	g := git.GetInfo(abs)
	info.GitURL = g.RemoteURL
	info.Branch = g.Branch
	return info
}

// EntryPoint returns the front controller of the project at path relative to
// path. The catalog default is returned when no candidate exists.
func EntryPoint(path string, fw types.Framework) string {
	exists := func(rel string) bool {
		return platform.FileExists(filepath.Join(path, filepath.FromSlash(rel)))
	}

	switch fw {
	case types.FrameworkLaravel, types.FrameworkSymfony:
		return "public/index.php"
	case types.FrameworkCodeIgniter:
		return "index.php"
	case types.FrameworkCakePHP:
		return "webroot/index.php"
	case types.FrameworkThinkPHP:
		if exists("public/index.php") {
			return "public/index.php"
		}
		if exists("index.php") {
			return "index.php"
		}
	default:
		if exists("index.php") {
			return "index.php"
		}
		if exists("public/index.php") {
			return "public/index.php"
		}
	}
	return catalog.Describe(fw).EntryPoint
}

// DocumentRoot returns the directory the entry point lives in
func DocumentRoot(path string, fw types.Framework) string {
	return filepath.Join(path, filepath.Dir(filepath.FromSlash(EntryPoint(path, fw))))
}

// List inspects every non-hidden subdirectory of projectsDir, sorted by name.
// A missing directory yields an empty list.
func (o *Orchestrator) List(projectsDir string) ([]types.ProjectInfo, error) {
	entries, err := os.ReadDir(projectsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading projects dir %s: %w", projectsDir, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(projectsDir, e.Name()))
		if err != nil {
			continue
		}
		dirs = append(dirs, abs)
	}

	var projects []types.ProjectInfo
	for _, res := range detector.ClassifyAll(dirs) {
		if res.Err != nil {
			o.logger.Warn("skipping project", zap.String("path", res.Dir), zap.Error(res.Err))
			continue
		}
		projects = append(projects, *o.inspect(res.Dir, res.Framework))
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// Remove deletes the project directory name under projectsDir. name must be
// a single path element; anything reaching outside projectsDir is rejected.
func (o *Orchestrator) Remove(projectsDir, name string) error {
	if name == "" || name == "." || name == ".." ||
		!filepath.IsLocal(name) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}

	path := filepath.Join(projectsDir, name)
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("checking project %s: %w", name, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrProjectNotFound, name)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing project %s: %w", name, err)
	}
	o.logger.Info("project removed", zap.String("path", path))
	return nil
}
