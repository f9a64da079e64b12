package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bassemshaker/phpsrv/internal/formatter"
	"github.com/bassemshaker/phpsrv/internal/phpbin"
	"github.com/bassemshaker/phpsrv/internal/project"
	"github.com/bassemshaker/phpsrv/internal/server"
	"github.com/bassemshaker/phpsrv/internal/types"
)

const (
	readyAttempts = 30
	readyInterval = 100 * time.Millisecond
	watchInterval = time.Second
)

type serveOptions struct {
	host        string
	port        int
	php         string
	docroot     string
	findPort    bool
	metricsAddr string
}

func newServeCommand(a *app) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Run the PHP development server for a project",
		Long: `Run the PHP built-in development server for a project until interrupted.

The document root defaults to the directory holding the framework's entry
point. A server.php router in the document root is used when present.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd, pathArg(args), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "host", "", "address to listen on (default from config)")
	f.IntVar(&opts.port, "port", 0, "port to listen on (default from config)")
	f.StringVar(&opts.php, "php", "", "PHP version to use (default: best match for composer.json, then config)")
	f.StringVar(&opts.docroot, "docroot", "", "document root (default: derived from the framework)")
	f.BoolVar(&opts.findPort, "find-port", false, "use the next free port when the requested one is busy")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9100)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command, path string, opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := a.orchestrator().Inspect(path)
	if err != nil {
		return err
	}

	version := opts.php
	if version == "" {
		version = info.PHPVersion
	}
	if version == "" {
		version = a.cfg.Runtime.DefaultVersion
	}
	resolver := a.resolver()
	if version != phpbin.SystemVersion {
		if err := resolver.EnsureExecutable(version); err != nil {
			a.logger.Warn("php binary not executable", zap.String("version", version), zap.Error(err))
		}
	}
	executable := resolver.ExecutablePath(version)

	docroot := opts.docroot
	if docroot == "" {
		docroot = project.DocumentRoot(info.Path, info.Framework)
	}

	metrics := server.NewPrometheusMetricsCollector("")
	mgr := server.NewManager(
		server.WithLogger(a.logger),
		server.WithGracePeriod(a.cfg.Server.GracePeriod),
		server.WithStopTimeout(a.cfg.Server.StopTimeout),
		server.WithDefaults(a.cfg.Server.Host, a.cfg.Server.Port),
		server.WithMetricsCollector(metrics),
	)
	defer mgr.Close()

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, metrics, a.logger)
		defer srv.Close()
	}

	port := opts.port
	if port == 0 {
		port = a.cfg.Server.Port
	}
	if opts.findPort {
		free, err := mgr.FindAvailablePort(port)
		if err != nil {
			return err
		}
		if free != port {
			a.logger.Info("requested port busy, using next free port", zap.Int("requested", port), zap.Int("port", free))
		}
		port = free
	}

	req := types.StartRequest{
		ProjectPath:  info.Path,
		Host:         opts.host,
		Port:         port,
		PHPVersion:   version,
		DocumentRoot: docroot,
	}
	id, err := mgr.Start(ctx, req, executable)
	if err != nil {
		explainStartError(cmd.ErrOrStderr(), err, port)
		return err
	}

	status := mgr.Status(id)
	if err := waitReady(ctx, status); err != nil {
		a.logger.Warn("server not accepting connections yet", zap.String("url", status.URL()), zap.Error(err))
	}

	formatter.PrintProject(info)
	formatter.PrintServers(mgr.List())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return watch(ctx, mgr, id)
}

// waitReady polls until the server accepts TCP connections
func waitReady(ctx context.Context, status types.ServerStatus) error {
	host := status.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(status.Port))

	backoff := retry.WithMaxRetries(readyAttempts, retry.NewConstant(readyInterval))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := net.DialTimeout("tcp", addr, readyInterval)
		if err != nil {
			return retry.RetryableError(err)
		}
		return conn.Close()
	})
}

// watch blocks until ctx is cancelled or the server exits on its own
func watch(ctx context.Context, mgr *server.Manager, id string) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nStopping server...")
			return mgr.Stop(id)
		case <-ticker.C:
			if mgr.Status(id).IsRunning {
				continue
			}
			lines, _ := mgr.Logs(id)
			for _, l := range lines {
				fmt.Fprintln(os.Stderr, l)
			}
			_ = mgr.Stop(id)
			return errors.New("server exited unexpectedly")
		}
	}
}

func serveMetrics(addr string, metrics *server.PrometheusMetricsCollector, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
