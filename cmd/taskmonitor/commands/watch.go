package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/taskmonitor/internal/events"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print lifecycle events as they happen",
	Long: `Track windows and processes and print every lifecycle event until
interrupted. No API server is started.`,
	Example: `  # Print events as text
  taskmonitor watch

  # Print one JSON object per event
  taskmonitor watch --format json`,
	RunE: runWatch,
}

var watchFormat string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "text", "output format (text or json)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchFormat != "text" && watchFormat != "json" {
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", watchFormat)
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := openSession(cfg, sessionOptions{dbus: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	updates := sess.hub.Subscribe()
	defer sess.hub.Unsubscribe(updates)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	out := cmd.OutOrStdout()
	for {
		select {
		case <-sigChan:
			return nil
		case ev, ok := <-updates:
			if !ok {
				return nil
			}
			if err := printEvent(out, cfg.EventPrefix, ev); err != nil {
				return err
			}
		}
	}
}

func printEvent(out io.Writer, prefix string, ev tracker.Event) error {
	name := events.Qualified(prefix, ev.Name)
	if watchFormat == "json" {
		return encodeLine(out, map[string]interface{}{
			"event":   name,
			"pid":     ev.PID,
			"payload": ev.Window,
			"time":    ev.Time,
		})
	}

	if ev.Window == nil {
		_, err := fmt.Fprintf(out, "%s %s pid=%d\n", ev.Time.Format("15:04:05.000"), name, ev.PID)
		return err
	}
	_, err := fmt.Fprintf(out, "%s %s pid=%d hwnd=0x%08x %s\n",
		ev.Time.Format("15:04:05.000"), name, ev.PID, uint64(ev.Window.Handle), ev.Window)
	return err
}
