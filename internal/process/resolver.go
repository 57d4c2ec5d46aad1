package process

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"

	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/window"
)

// Unknown names a process whose executable cannot be determined
const Unknown = "unknown"

// Resolver looks up executable names with gopsutil
type Resolver struct {
	log *zerolog.Logger
}

// NewResolver creates a Resolver
func NewResolver() *Resolver {
	return &Resolver{log: logger.WithComponent("process")}
}

// ProcessName returns the executable name of pid without its extension,
// e.g. "notepad" for notepad.exe. It falls back to the base name of the
// executable path and finally to Unknown.
func (r *Resolver) ProcessName(pid window.PID) string {
	if pid <= 0 {
		return Unknown
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		r.log.Debug().Int("pid", int(pid)).Err(err).Msg("Process not found")
		return Unknown
	}

	name, err := proc.Name()
	if err != nil || name == "" {
		exe, exeErr := proc.Exe()
		if exeErr != nil || exe == "" {
			r.log.Debug().Int("pid", int(pid)).Err(err).Msg("Failed to get process name")
			return Unknown
		}
		name = filepath.Base(exe)
	}
	return StripExtension(name)
}

// StripExtension drops the final extension of an executable name
func StripExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}
