// Package cli provides the phpsrv command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/felixge/fgprof"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bassemshaker/phpsrv/internal/config"
	"github.com/bassemshaker/phpsrv/internal/logging"
	"github.com/bassemshaker/phpsrv/internal/phpbin"
	"github.com/bassemshaker/phpsrv/internal/project"
)

// app holds state shared by every command
type app struct {
	configPath  string
	logLevel    string
	profilePath string

	cfg         *config.Config
	logger      *zap.Logger
	stopProfile func() error
	profileFile *os.File
}

func (a *app) resolver() *phpbin.Resolver {
	return phpbin.NewResolver(a.cfg.Runtime.Dir)
}

func (a *app) orchestrator() *project.Orchestrator {
	return project.NewOrchestrator(
		project.WithLogger(a.logger),
		project.WithRuntimeResolver(a.resolver()),
	)
}

// NewRootCommand builds the command tree
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "phpsrv",
		Short: "Detect PHP frameworks and run their development servers",
		Long: `phpsrv inspects PHP project directories, recognises the framework they use
and runs the PHP built-in development server for them.

Supported frameworks:
  Laravel, Symfony, CodeIgniter, CakePHP, Zend/Laminas, Yii, ThinkPHP,
  Phalcon, Slim, Lumen, WordPress and plain PHP`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $HOME/.phpsrv/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.profilePath, "profile", "", "write fgprof profile to file (e.g., --profile=phpsrv.prof)")

	rootCmd.AddCommand(
		newDetectCommand(a),
		newInfoCommand(a),
		newPortCommand(a),
		newServeCommand(a),
		newSetupCommand(a),
		newProjectsCommand(a),
		newRuntimesCommand(a),
		newConfigCommand(a),
	)
	return rootCmd
}

// setup loads configuration, builds the logger and starts profiling
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.logger = logger
	zap.ReplaceGlobals(logger)

	if a.profilePath != "" {
		f, err := os.Create(a.profilePath)
		if err != nil {
			return fmt.Errorf("could not create profile file: %w", err)
		}
		a.profileFile = f
		// fgprof captures wall-clock time including I/O waits
		a.stopProfile = fgprof.Start(f, fgprof.FormatPprof)
		fmt.Fprintf(os.Stderr, "Profiling enabled, writing to %s\n", a.profilePath)
	}
	return nil
}

func (a *app) teardown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.stopProfile == nil {
		return nil
	}

	err := a.stopProfile()
	a.stopProfile = nil
	if cerr := a.profileFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Profile written to %s\n", a.profilePath)
	fmt.Fprintf(os.Stderr, "Analyze with: go tool pprof -http=:8080 %s\n", a.profilePath)
	return nil
}

// Execute runs the command tree and returns the process exit code
func Execute(version string) int {
	rootCmd := NewRootCommand(version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
