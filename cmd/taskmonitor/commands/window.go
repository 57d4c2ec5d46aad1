package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/taskmonitor/internal/control"
	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/process"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

var windowCmd = &cobra.Command{
	Use:   "window [HWND ACTION]",
	Short: "Query or control a window",
	Long: `Run a named action against any window, tracked or not. Without
arguments the available actions are listed.

HWND is a window id in decimal or 0x-prefixed hex, as printed by list.
Arguments beyond the simple flags are passed as a JSON request with --data.`,
	Example: `  # List actions
  taskmonitor window

  # Query a window
  taskmonitor window 0x03a00007 rect

  # Bring a window forward and focus it
  taskmonitor window 0x03a00007 show --activate

  # Type into a window
  taskmonitor window 0x03a00007 send_keys --keys "hello{Enter}"

  # Move and resize
  taskmonitor window 0x03a00007 set_rect --data '{"rect":{"x":0,"y":0,"width":800,"height":600}}'

  # Flash the taskbar entry until the window is activated
  taskmonitor window 0x03a00007 flash --data '{"flash":{"tray":true,"mode":"until_active"}}'`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected HWND and ACTION, got %d argument(s)", len(args))
		}
		return nil
	},
	RunE: runWindow,
}

var (
	windowData     string
	windowKeys     string
	windowActivate bool
	windowDefault  bool
	windowForce    bool
	windowFormat   string
)

func init() {
	rootCmd.AddCommand(windowCmd)

	windowCmd.Flags().StringVarP(&windowData, "data", "d", "", "JSON request with action arguments")
	windowCmd.Flags().StringVarP(&windowKeys, "keys", "k", "", "keys for send_keys")
	windowCmd.Flags().BoolVar(&windowActivate, "activate", false, "activate the window (show, minimize)")
	windowCmd.Flags().BoolVar(&windowDefault, "default", false, "use the default placement (show, restore)")
	windowCmd.Flags().BoolVar(&windowForce, "force", false, "force the operation (minimize)")
	windowCmd.Flags().StringVarP(&windowFormat, "format", "f", "yaml", "output format (yaml or json)")
}

// parseHandle accepts decimal and 0x-prefixed hex window ids
func parseHandle(s string) (window.Handle, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", control.ErrInvalidHandle, s)
	}
	return window.Handle(n), nil
}

// buildRequest merges --data with the simple flags
func buildRequest(action string) (control.Request, error) {
	var req control.Request
	if windowData != "" {
		if err := json.Unmarshal([]byte(windowData), &req); err != nil {
			return req, fmt.Errorf("invalid --data: %w", err)
		}
	}
	req.Action = action
	if windowKeys != "" {
		req.Keys = windowKeys
	}
	req.Activate = req.Activate || windowActivate
	req.Default = req.Default || windowDefault
	req.Force = req.Force || windowForce
	return req, nil
}

func runWindow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, name := range control.Actions() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	req, err := buildRequest(args[1])
	if err != nil {
		return err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	backend, err := window.NewX11Backend(cfg.Display)
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer backend.Close()

	win, err := control.Resolve(backend, h, process.NewResolver())
	if err != nil {
		return err
	}

	res, err := control.Invoke(win, req)
	if err != nil {
		return err
	}
	logger.WithComponent("window").Debug().
		Uint64("hwnd", uint64(h)).
		Str("action", req.Action).
		Msg("Action completed")

	return encode(out, windowFormat, res)
}
