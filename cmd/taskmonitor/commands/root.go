package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/taskmonitor/internal/config"
	"github.com/bryanchriswhite/taskmonitor/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "taskmonitor",
		Short: "TaskMonitor - window and process lifecycle events",
		Long: `TaskMonitor tracks the processes and top-level windows of a desktop
session and turns raw window manager notifications into lifecycle events
such as Created.firefox, NewWindow.firefox, Activated.firefox and
ClosedWindow.firefox.

Features:
  • Track processes and their top-level windows via X11/EWMH
  • Emit Created, Destroyed, NewWindow, ClosedWindow, Activated,
    Deactivated, Flashed and TitleChanged events
  • Stream events over WebSocket and the D-Bus session bus
  • Query and control any window (move, resize, flash, send keys, ...)
  • Persistent configuration`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/taskmonitor/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("display", "", "X display to connect to (default is $DISPLAY)")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("display", rootCmd.PersistentFlags().Lookup("display"))
}

func initConfig() {
	// TASKMONITOR_LOG_LEVEL, TASKMONITOR_DBUS_ENABLED, ...
	viper.SetEnvPrefix("taskmonitor")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig reads the config file, applies flag and environment
// overrides without persisting them and configures logging
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := applyOverrides(configMgr.Get())

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return configMgr, cfg, nil
}

func applyOverrides(cfg *config.Config) *config.Config {
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			cfg.ServerPort = port
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); logger.ValidLevel(level) {
			cfg.LogLevel = level
		}
	}
	if viper.IsSet("display") {
		if display := viper.GetString("display"); display != "" {
			cfg.Display = display
		}
	}
	if viper.IsSet("dbus.enabled") {
		cfg.DBus.Enabled = viper.GetBool("dbus.enabled")
	}
	return cfg
}
