// Package deps reports whether the external binaries dualsub shells out to
// can be found.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"dualsub/internal/config"
)

// Requirement names one external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the lookup outcome for one requirement.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries the configured pipeline invokes. ffsubsync
// is optional: without it the engine falls back to the offset estimator.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Extracts embedded subtitle streams"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Probes video duration and subtitle streams"},
	}
	if cfg.Sync.Enabled {
		reqs = append(reqs, Requirement{
			Name:        "ffsubsync",
			Command:     cfg.Sync.FFSubsyncBinary,
			Description: "Aligns subtitles against audio or a reference track",
			Optional:    true,
		})
	}
	return reqs
}

// Check resolves the configured requirements.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}

// CheckBinaries looks each requirement up on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch path, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the names of unavailable required binaries.
func Missing(statuses []Status) []string {
	var names []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			names = append(names, s.Name)
		}
	}
	return names
}
