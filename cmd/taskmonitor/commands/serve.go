package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/taskmonitor/internal/api"
	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/plugin"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start tracking and serve the API",
	Long: `Start tracking windows and processes and serve the HTTP API.

Events are written to the log, streamed to WebSocket clients on
/api/events/stream and, when dbus.enabled is set, broadcast as signals on
the D-Bus session bus.`,
	Example: `  # Start server on default port (8080)
  taskmonitor serve

  # Start server on custom port
  taskmonitor serve --port 9090

  # Start with specific config file
  taskmonitor serve --config /path/to/config.yaml

  # Start with debug logging
  taskmonitor serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	d := plugin.TaskMonitorPlus("")
	fmt.Printf("🎯 %s %s\n", d.Name, d.Version)
	fmt.Println("==================================")

	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")
	log.Info().
		Str("path", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	sess, err := openSession(cfg, sessionOptions{logEvents: true, dbus: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	server := api.NewServer(sess.tracker, sess.backend, sess.hub, cfg.EventPrefix)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(cfg.ServerPort)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	snap, _ := sess.tracker.Snapshot()
	fmt.Println()
	log.Info().
		Int("processes", len(snap.Processes)).
		Int("windows", snap.WindowCount()).
		Msg("✅ TaskMonitor is running")
	log.Info().Msgf("   - API: http://localhost:%d/api", cfg.ServerPort)
	log.Info().Msgf("   - Events: ws://localhost:%d/api/events/stream", cfg.ServerPort)
	log.Info().Msg("   - Press Ctrl+C to stop")
	fmt.Println()

	select {
	case <-sigChan:
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Println()
	log.Info().Msg("Shutting down gracefully...")
	return nil
}
