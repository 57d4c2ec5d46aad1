package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/taskmonitor/internal/process"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked processes and windows",
	Long: `List the processes and top-level windows TaskMonitor would track.

This command connects to the X11 server, enumerates the current windows
the same way serve does at startup and prints the result.`,
	Example: `  # List windows in table format (default)
  taskmonitor list

  # List windows in JSON format
  taskmonitor list --format json

  # Show the currently focused window
  taskmonitor list --active`,
	RunE: runList,
}

var (
	listFormat string
	listActive bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, json or yaml)")
	listCmd.Flags().BoolVarP(&listActive, "active", "a", false, "show the focused window")
}

func runList(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := openSession(cfg, sessionOptions{})
	if err != nil {
		return err
	}
	defer sess.Close()

	if listActive {
		return showActiveWindow(cmd.OutOrStdout(), sess)
	}

	snap, ok := sess.tracker.Snapshot()
	if !ok {
		return fmt.Errorf("tracking stopped")
	}
	if listFormat == "table" {
		return printSnapshotTable(cmd.OutOrStdout(), snap)
	}
	return encode(cmd.OutOrStdout(), listFormat, snap)
}

func printSnapshotTable(out io.Writer, snap tracker.Snapshot) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "PROCESS\tPID\tHWND\tCLASS\tTITLE\tFLAGS")
	fmt.Fprintln(w, "-------\t---\t----\t-----\t-----\t-----")

	flashing := make(map[uint64]bool, len(snap.Flashing))
	for _, h := range snap.Flashing {
		flashing[uint64(h)] = true
	}

	for _, p := range snap.Processes {
		for _, win := range p.Windows {
			var flags []string
			if win.Handle == snap.LastActivated {
				flags = append(flags, "active")
			}
			if flashing[uint64(win.Handle)] {
				flags = append(flags, "flashing")
			}
			fmt.Fprintf(w, "%s\t%d\t0x%08x\t%s\t%s\t%s\n",
				p.Name, p.PID, uint64(win.Handle), win.WindowClass, win.Title, strings.Join(flags, ","))
		}
	}

	return nil
}

func showActiveWindow(out io.Writer, sess *session) error {
	h := sess.backend.ActiveWindow()
	if h == 0 {
		fmt.Fprintln(out, "No window is currently focused")
		return nil
	}

	entry, ok := sess.tracker.Lookup(h)
	if !ok {
		pid := sess.backend.OwningProcessID(h)
		entry = tracker.NewWindowEntry(sess.backend, h, pid, process.NewResolver().ProcessName(pid))
	}
	info := entry.Info()

	if listFormat != "table" {
		return encode(out, listFormat, info)
	}

	fmt.Fprintf(out, "Title:   %s\n", info.Title)
	fmt.Fprintf(out, "Class:   %s\n", info.WindowClass)
	fmt.Fprintf(out, "Process: %s\n", info.Name)
	fmt.Fprintf(out, "PID:     %d\n", info.PID)
	fmt.Fprintf(out, "HWND:    0x%08x\n", uint64(info.Handle))
	if rect, err := sess.backend.Rect(h); err == nil {
		fmt.Fprintf(out, "Geometry: %dx%d at (%d, %d)\n", rect.Width, rect.Height, rect.X, rect.Y)
	}

	return nil
}
