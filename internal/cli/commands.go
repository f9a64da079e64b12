package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bassemshaker/phpsrv/internal/catalog"
	"github.com/bassemshaker/phpsrv/internal/config"
	"github.com/bassemshaker/phpsrv/internal/detector"
	"github.com/bassemshaker/phpsrv/internal/formatter"
	"github.com/bassemshaker/phpsrv/internal/portalloc"
	"github.com/bassemshaker/phpsrv/internal/types"
)

func pathArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func newDetectCommand(a *app) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "detect [path]",
		Short: "Detect the framework of a project directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.orchestrator().Inspect(pathArg(args))
			if err != nil {
				return err
			}
			formatter.PrintProject(info)

			if explain {
				matched := detector.Explain(info.Path, info.Framework)
				if len(matched) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No framework markers matched.")
				}
				for _, m := range matched {
					fmt.Fprintf(cmd.OutOrStdout(), "  matched: %s\n", m)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "list the markers that identified the framework")
	return cmd
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <framework>",
		Short: "Show a framework's conventions and detection markers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fw, err := types.ParseFramework(args[0])
			if err != nil {
				return err
			}
			formatter.PrintDescriptor(fw, catalog.Describe(fw), detector.Rules())
			return nil
		},
	}
}

func newPortCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "port [start]",
		Short: "Find a free TCP port",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := a.cfg.Server.Port
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid port %q: %w", args[0], err)
				}
				start = n
			}

			port, err := portalloc.New(portalloc.WithProbeHost(a.cfg.Server.Host)).FindAvailable(start)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), port)
			return nil
		},
	}
}

func newSetupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup [path]",
		Short: "Install dependencies and prepare a project for serving",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.orchestrator().Setup(cmd.Context(), pathArg(args))
			if err != nil {
				return err
			}
			formatter.PrintSetupReport(report)
			if report.Failed() {
				return fmt.Errorf("setup of %s finished with failures", report.Path)
			}
			return nil
		},
	}
}

func newProjectsCommand(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects in the projects directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Projects.Dir
			}
			projects, err := a.orchestrator().List(dir)
			if err != nil {
				return err
			}
			formatter.PrintProjects(projects)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "projects directory (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a project directory from the projects directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Projects.Dir
			}
			if err := a.orchestrator().Remove(dir, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newRuntimesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runtimes",
		Short: "List installed PHP versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.resolver()
			bins, err := r.Installed()
			if err != nil {
				return err
			}
			formatter.PrintRuntimes(bins)

			if v, err := r.Version(cmd.Context(), a.cfg.Runtime.DefaultVersion); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "default (%s): %s\n", a.cfg.Runtime.DefaultVersion, v)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "default (%s): not available\n", a.cfg.Runtime.DefaultVersion)
			}
			return nil
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c := a.cfg
			fmt.Fprintf(out, "runtime.dir: %s\n", c.Runtime.Dir)
			fmt.Fprintf(out, "runtime.default_version: %s\n", c.Runtime.DefaultVersion)
			fmt.Fprintf(out, "server.host: %s\n", c.Server.Host)
			fmt.Fprintf(out, "server.port: %d\n", c.Server.Port)
			fmt.Fprintf(out, "server.grace_period: %s\n", c.Server.GracePeriod)
			fmt.Fprintf(out, "server.stop_timeout: %s\n", c.Server.StopTimeout)
			fmt.Fprintf(out, "projects.dir: %s\n", c.Projects.Dir)
			fmt.Fprintf(out, "log.level: %s\n", c.Log.Level)
			fmt.Fprintf(out, "log.development: %t\n", c.Log.Development)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.Save(a.cfg, path); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", abs)
			return nil
		},
	})
	return cmd
}
