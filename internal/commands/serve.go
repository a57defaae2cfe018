package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scscodes/flsd/internal/config"
	"github.com/scscodes/flsd/internal/scheduler"
	"github.com/scscodes/flsd/internal/supervisor"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one service in the foreground",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "api",
			Short: "Serve the upload and data API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serveOne(cmd, opts, "api")
			},
		},
		&cobra.Command{
			Use:   "dashboard",
			Short: "Serve the dashboard",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serveOne(cmd, opts, "dashboard")
			},
		},
	)

	return cmd
}

func serveOne(cmd *cobra.Command, opts *globalOptions, service string) error {
	env, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	var srv *http.Server
	if service == "api" {
		srv = env.app.APIServer()
	} else if srv, err = env.app.DashboardServer(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	sup := supervisor.New(env.cfg.Supervisor.ShutdownGrace, env.logger)
	sup.Add(supervisor.HTTPTask(service, srv, sup.Grace(), env.logger))
	return sup.Run(ctx)
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the API, the dashboard and the nightly scheduler together",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			dashboard, err := env.app.DashboardServer()
			if err != nil {
				return err
			}

			cfg := env.cfg
			sup := supervisor.New(cfg.Supervisor.ShutdownGrace, env.logger)
			sup.Add(supervisor.HTTPTask("api", env.app.APIServer(), sup.Grace(), env.logger))

			dashboardTask := supervisor.HTTPTask("dashboard", dashboard, sup.Grace(), env.logger)
			dashboardTask.Delay = cfg.Supervisor.StartupDelay
			sup.Add(dashboardTask)

			nightly := scheduler.New(env.app.IngestService, cfg.Nightly.Interval, cfg.Nightly.RunOnStart, env.logger)
			if nightly.Enabled() {
				sup.Add(supervisor.Task{Name: "scheduler", Run: nightly.Run})
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			printBanner(cmd, cfg)
			err = sup.Run(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "All services stopped.")
			return err
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, " %s %s running! Access it at:\n", config.AppName, config.AppVersion)
	fmt.Fprintf(out, " - API: %s\n", accessURL(cfg.Server.Host, cfg.Server.Port))
	fmt.Fprintf(out, " - Dashboard: %s\n", accessURL(cfg.Dashboard.Host, cfg.Dashboard.Port))
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out)
}

// accessURL turns a listen address into something a browser can open.
func accessURL(host string, port int) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
