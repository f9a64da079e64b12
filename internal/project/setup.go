package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/otiai10/copy"
	"go.uber.org/zap"

	"github.com/bassemshaker/phpsrv/internal/detector"
	"github.com/bassemshaker/phpsrv/internal/manifest"
	"github.com/bassemshaker/phpsrv/internal/platform"
	"github.com/bassemshaker/phpsrv/internal/types"
)

// StepStatus is the outcome of one setup step
type StepStatus string

const (
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// Step records one setup action
type Step struct {
	Name    string
	Status  StepStatus
	Message string
}

// SetupReport is the result of preparing a project
type SetupReport struct {
	Path       string
	Framework  types.Framework
	EntryPoint string
	Steps      []Step
}

func (r *SetupReport) add(name string, status StepStatus, format string, args ...any) {
	r.Steps = append(r.Steps, Step{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

// Failed reports whether any step failed
func (r *SetupReport) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// thinkCacheDirs matches the writable cache directories across ThinkPHP versions
const thinkCacheDirs = "{runtime,Application/Runtime,app/runtime}"

// Setup classifies the project at path and runs its framework's preparation.
// Step failures are recorded in the report rather than returned.
func (o *Orchestrator) Setup(ctx context.Context, path string) (*SetupReport, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	fw, err := detector.Classify(abs)
	if err != nil {
		return nil, err
	}

	report := &SetupReport{
		Path:       abs,
		Framework:  fw,
		EntryPoint: EntryPoint(abs, fw),
	}
	logger := o.logger.With(zap.String("path", abs), zap.String("framework", string(fw)))
	hasManifest := platform.FileExists(filepath.Join(abs, manifest.FileName))

	switch fw {
	case types.FrameworkLaravel:
		if !hasManifest {
			return nil, fmt.Errorf("%w in Laravel project %s", ErrManifestMissing, abs)
		}
		o.install(ctx, abs, report)
		copyEnv(abs, ".env.example", report)
		checkAppKey(abs, report)
	case types.FrameworkSymfony:
		if !hasManifest {
			return nil, fmt.Errorf("%w in Symfony project %s", ErrManifestMissing, abs)
		}
		o.install(ctx, abs, report)
	case types.FrameworkThinkPHP:
		if hasManifest {
			o.install(ctx, abs, report)
		} else {
			report.add("composer install", StepSkipped, "no %s", manifest.FileName)
		}
		setupThinkPHP(abs, report)
	default:
		logger.Debug("no setup needed")
	}

	for _, s := range report.Steps {
		logger.Info("setup step",
			zap.String("step", s.Name),
			zap.String("status", string(s.Status)),
			zap.String("message", s.Message),
		)
	}
	return report, nil
}

func (o *Orchestrator) install(ctx context.Context, dir string, report *SetupReport) {
	const name = "composer install"
	err := o.installer.Install(ctx, dir)
	switch {
	case err == nil:
		report.add(name, StepDone, "dependencies installed")
	case errors.Is(err, ErrInstallerUnavailable):
		report.add(name, StepSkipped, "%v", err)
	default:
		report.add(name, StepFailed, "%v", err)
	}
}

// copyEnv creates .env from template when it does not exist yet
func copyEnv(dir, template string, report *SetupReport) {
	name := "create .env"
	src := filepath.Join(dir, template)
	dst := filepath.Join(dir, ".env")

	switch {
	case platform.FileExists(dst):
		report.add(name, StepSkipped, ".env already exists")
	case !platform.FileExists(src):
		report.add(name, StepSkipped, "no %s", template)
	default:
		if err := copy.Copy(src, dst); err != nil {
			report.add(name, StepFailed, "copying %s: %v", template, err)
			return
		}
		report.add(name, StepDone, "copied from %s", template)
	}
}

// checkAppKey notes when a Laravel .env still needs an application key
func checkAppKey(dir string, report *SetupReport) {
	name := "application key"
	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		report.add(name, StepSkipped, "no readable .env")
		return
	}
	if strings.HasPrefix(env["APP_KEY"], "base64:") {
		report.add(name, StepDone, "APP_KEY is set")
		return
	}
	report.add(name, StepSkipped, "APP_KEY not set, run php artisan key:generate")
}

func setupThinkPHP(dir string, report *SetupReport) {
	switch {
	// 6.x ships an .example.env template next to config/app.php
	case platform.FileExists(filepath.Join(dir, ".example.env")),
		platform.FileExists(filepath.Join(dir, "config", "app.php")):
		copyEnv(dir, ".example.env", report)
	case platform.FileExists(filepath.Join(dir, "application", "config.php")):
		ensureDir(dir, "runtime", report)
	case platform.DirExists(filepath.Join(dir, "Application")):
		ensureDir(dir, "Application/Runtime", report)
	}

	if runtime.GOOS == "windows" {
		return
	}

	matches, err := doublestar.Glob(os.DirFS(dir), thinkCacheDirs)
	if err != nil {
		report.add("cache permissions", StepFailed, "%v", err)
		return
	}
	for _, rel := range matches {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if !platform.DirExists(path) {
			continue
		}
		if err := os.Chmod(path, 0o755); err != nil {
			report.add("cache permissions", StepFailed, "%s: %v", rel, err)
			continue
		}
		report.add("cache permissions", StepDone, "%s set to 0755", rel)
	}
}

func ensureDir(dir, rel string, report *SetupReport) {
	name := "create " + rel
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if platform.DirExists(path) {
		report.add(name, StepSkipped, "already exists")
		return
	}
	if err := os.MkdirAll(path, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		report.add(name, StepFailed, "%v", err)
		return
	}
	report.add(name, StepDone, "created")
}
