// Package deps reports which of the external programs holdtype drives are
// installed.
package deps

import (
	"os/exec"
	"strings"

	"github.com/leonardotrapani/holdtype/internal/config"
)

// Status represents the installation status of a dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// Tool is an external program and why it is needed.
type Tool struct {
	Name        string
	Package     string // distro package that usually provides it
	Purpose     string
	Required    bool
	VersionArgs []string // nil skips the version probe
}

// Report pairs a tool with its status.
type Report struct {
	Tool
	Status
}

var (
	lookPath = exec.LookPath
	output   = func(path string, args ...string) ([]byte, error) {
		return exec.Command(path, args...).Output()
	}
)

// Check looks tool up in PATH and probes its version.
func Check(tool Tool) Status {
	path, err := lookPath(tool.Name)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}
	if tool.VersionArgs == nil {
		return status
	}

	out, err := output(path, tool.VersionArgs...)
	if err == nil {
		// first non-empty line is the version
		for _, line := range strings.Split(string(out), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				status.Version = line
				break
			}
		}
	}

	return status
}

// ToolsFor lists the programs cfg makes use of. Required marks the ones
// without which dictation cannot work at all.
func ToolsFor(cfg *config.Config) []Tool {
	tools := []Tool{
		{Name: "pw-record", Package: "pipewire", Purpose: "microphone capture", Required: true, VersionArgs: []string{"--version"}},
		{Name: "pw-cli", Package: "pipewire", Purpose: "PipeWire availability check", Required: true},
	}

	wayland := cfg.Injection.Clipboard == "wayland" || cfg.Injection.Clipboard == ""
	tools = append(tools,
		Tool{Name: "wl-copy", Package: "wl-clipboard", Purpose: "clipboard write", Required: wayland},
		Tool{Name: "wl-paste", Package: "wl-clipboard", Purpose: "clipboard read", Required: wayland},
	)

	// any one paste backend is enough
	for _, b := range cfg.Injection.PasteBackends {
		switch b {
		case "ydotool":
			tools = append(tools,
				Tool{Name: "ydotool", Package: "ydotool", Purpose: "paste keystroke"},
				Tool{Name: "ydotoold", Package: "ydotool", Purpose: "ydotool input daemon"},
			)
		case "wtype":
			tools = append(tools, Tool{Name: "wtype", Package: "wtype", Purpose: "paste keystroke"})
		}
	}

	if cfg.NotificationType() == "desktop" {
		tools = append(tools, Tool{Name: "notify-send", Package: "libnotify", Purpose: "desktop notifications"})
	}
	tools = append(tools, Tool{Name: "hyprctl", Package: "hyprland", Purpose: "restore focus before pasting", VersionArgs: []string{"version"}})
	return tools
}

// CheckAll checks every tool cfg uses.
func CheckAll(cfg *config.Config) []Report {
	tools := ToolsFor(cfg)
	reports := make([]Report, 0, len(tools))
	for _, t := range tools {
		reports = append(reports, Report{Tool: t, Status: Check(t)})
	}
	return reports
}

// Problems returns one line per missing requirement. No installed paste
// backend counts as a single problem.
func Problems(reports []Report) []string {
	var problems []string
	pasteWanted, pasteFound := false, false
	for _, r := range reports {
		if r.Purpose == "paste keystroke" {
			pasteWanted = true
			pasteFound = pasteFound || r.Installed
			continue
		}
		if r.Required && !r.Installed {
			problems = append(problems, r.Name+" not found (install "+r.Package+")")
		}
	}
	if pasteWanted && !pasteFound {
		problems = append(problems, "no paste backend found (install ydotool or wtype)")
	}
	return problems
}
