package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bearops/shepherd/pkg/api"
	"github.com/bearops/shepherd/pkg/config"
	"github.com/bearops/shepherd/pkg/events"
	"github.com/bearops/shepherd/pkg/health"
	"github.com/bearops/shepherd/pkg/launch"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/reconcile"
	"github.com/bearops/shepherd/pkg/registry"
	"github.com/bearops/shepherd/pkg/runtime"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
	"github.com/bearops/shepherd/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shepherd",
	Short: "Shepherd - Docker fleet reconciliation worker",
	Long: `Shepherd keeps a central database in step with a fleet of docker
hosts: it syncs registry images, reconciles per-host container state,
probes deployment health, and rolls deployments out to their hosts.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Shepherd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/shepherd/config.yaml", "Path to config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(logsCmd)
}

// core bundles everything the commands build from a config: the store and
// the collaborators around it.
type core struct {
	cfg      *config.Config
	store    *storage.BoltStore
	broker   *events.Broker
	rec      *reconcile.Reconciler
	dialer   *runtime.DockerDialer
	worker   *worker.Worker
	launcher *launch.Launcher
}

func buildCore() (*core, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	broker := events.NewBroker()
	prober := health.NewProber(health.Policy{
		Attempts: cfg.Probe.Attempts,
		Timeout:  cfg.Probe.Timeout.Std(),
		Pause:    cfg.Probe.Pause.Std(),
	})
	rec := reconcile.New(cfg.Registry.Username, registry.NewClient(cfg.Registry), prober, broker)
	dialer := runtime.NewDockerDialer(cfg.Docker, cfg.Registry)

	return &core{
		cfg:      cfg,
		store:    store,
		broker:   broker,
		rec:      rec,
		dialer:   dialer,
		worker:   worker.New(store, dialer, rec, broker, cfg.Sync.Interval.Std()),
		launcher: launch.NewLauncher(store, dialer, rec, broker, cfg.Registry.Username, cfg.Launcher),
	}, nil
}

func (c *core) close() {
	if err := c.store.Close(); err != nil {
		log.Errorf("failed to close store", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run periodic reconciliation passes and the trigger API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildCore()
		if err != nil {
			return err
		}
		defer c.close()

		c.broker.Start()
		c.launcher.Start()
		c.worker.Start()

		// Log fleet events as they happen.
		sub := c.broker.Subscribe()
		go func() {
			eventLogger := log.WithComponent("events")
			for event := range sub {
				eventLogger.Info().
					Str("type", string(event.Type)).
					Fields(map[string]interface{}{"metadata": event.Metadata}).
					Msg(event.Message)
			}
		}()

		server := api.NewServer(c.worker, c.launcher)
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(c.cfg.API.Listen); err != nil {
				errCh <- fmt.Errorf("API server error: %w", err)
			}
		}()

		mainLogger := log.WithComponent("main")
		mainLogger.Info().
			Str("interval", c.cfg.Sync.Interval.Std().String()).
			Msg("shepherd is running")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("shutting down")
		case err := <-errCh:
			log.Errorf("server failed", err)
		}

		c.worker.Stop()
		c.launcher.Stop()
		if err := server.Stop(); err != nil {
			log.Errorf("failed to stop API server", err)
		}
		c.broker.Stop()
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single reconciliation pass and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildCore()
		if err != nil {
			return err
		}
		defer c.close()

		report := c.worker.SyncAll(context.Background())
		printReport(report)

		if report.Fatal != "" {
			return fmt.Errorf("pass aborted: %s", report.Fatal)
		}
		return nil
	},
}

func printReport(report *worker.Report) {
	fmt.Printf("Pass finished in %s: %d units, %d failed\n",
		report.Duration.Round(time.Millisecond), len(report.Units), len(report.Failures()))
	for _, unit := range report.Units {
		mark := "✓"
		detail := ""
		if unit.Failed() {
			mark = "✗"
			detail = " " + unit.Error
		}
		fmt.Printf("  %s %s %s (%s)%s\n", mark, unit.Kind, unit.Name,
			unit.Duration.Round(time.Millisecond), detail)
	}
}

var deployCmd = &cobra.Command{
	Use:   "deploy APP TAG ENVIRONMENT",
	Short: "Launch a deployment on its target hosts",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")

		c, err := buildCore()
		if err != nil {
			return err
		}
		defer c.close()

		c.launcher.Start()
		defer c.launcher.Stop()

		dep := types.Deployment{AppName: args[0], ImageTag: args[1], Environment: args[2]}
		handle, err := c.launcher.Launch(dep.ID())
		if err != nil {
			return err
		}
		fmt.Printf("Launch queued: %s\n", handle.ID())

		if !wait {
			return nil
		}

		<-handle.Done()
		status := handle.Status()
		for _, host := range status.Hosts {
			if host.Error != "" {
				fmt.Printf("  ✗ %s: %s\n", host.HostID, host.Error)
			} else {
				fmt.Printf("  ✓ %s\n", host.HostID)
			}
		}
		if err := handle.Err(); err != nil {
			return fmt.Errorf("launch failed: %w", err)
		}
		fmt.Println("✓ Launch complete")
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs CONTAINER",
	Short: "Fetch a container's logs from its host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")

		c, err := buildCore()
		if err != nil {
			return err
		}
		defer c.close()

		container, err := c.store.GetContainer(args[0])
		if err != nil {
			return err
		}
		host, err := c.store.GetHost(container.HostID)
		if err != nil {
			return err
		}

		rt, err := c.dialer.Dial(host)
		if err != nil {
			return fmt.Errorf("dial %s: %w", host.ID(), err)
		}
		defer rt.Close()

		logs, err := rt.Logs(context.Background(), container.ID, tail)
		if err != nil {
			return err
		}
		defer logs.Close()

		_, err = io.Copy(os.Stdout, logs)
		return err
	},
}

func init() {
	deployCmd.Flags().Bool("wait", false, "Block until the launch finishes")
	logsCmd.Flags().Int("tail", 100, "Number of log lines to fetch")
}

