package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/leonardotrapani/holdtype/internal/bus"
	"github.com/leonardotrapani/holdtype/internal/config"
	"github.com/leonardotrapani/holdtype/internal/daemon"
	"github.com/leonardotrapani/holdtype/internal/deps"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
	"github.com/leonardotrapani/holdtype/internal/tui"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "holdtype",
	Short:         "Hold a hotkey, speak, release: the text is typed where you were",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/holdtype/config.toml)")

	rootCmd.AddCommand(
		serveCmd(),
		pressCmd(),
		releaseCmd(),
		statusCmd(),
		watchCmd(),
		versionCmd(),
		stopCmd(),
		styleCmd(),
		hotkeyCmd(),
		dictCmd(),
		snippetCmd(),
		historyCmd(),
		configureCmd(),
		modelCmd(),
		depsCmd(),
		transcribeCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemon.Version = version
			d, err := daemon.New(configPath)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run(cmd.Context())
		},
	}
}

// send runs one request against the running daemon and prints the reply.
func send(ctx context.Context, verb string, args ...string) error {
	client, err := bus.NewClient()
	if err != nil {
		return err
	}
	resp, err := client.Send(ctx, verb, args...)
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}

func call(ctx context.Context, v any, verb string, args ...string) error {
	client, err := bus.NewClient()
	if err != nil {
		return err
	}
	return client.Call(ctx, v, verb, args...)
}

func pressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "press",
		Short: "Start dictating, as if the hotkey went down",
		Long: `Start dictating, as if the hotkey went down.
Bind this and "holdtype release" in your compositor when the global
hotkey cannot be read, e.g. in hyprland.conf:

  bind = SUPER, V, exec, holdtype press
  bindr = SUPER, V, exec, holdtype release`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.Context(), bus.VerbPress)
		},
	}
}

func releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Stop dictating and type the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.Context(), bus.VerbRelease)
		},
	}
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Get the current dictation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return send(cmd.Context(), bus.VerbStatus)
			}
			var st bus.Status
			if err := call(cmd.Context(), &st, bus.VerbStatus); err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Print(formatStatus(st))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status JSON")

	return cmd
}

func formatStatus(st bus.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state:   %s\n", st.State)
	fmt.Fprintf(&b, "user:    %s\n", st.User)
	hk := st.Hotkey
	if !st.HotkeyAvailable {
		hk += " (unavailable, use holdtype press/release)"
	}
	fmt.Fprintf(&b, "hotkey:  %s\n", hk)
	model := "loaded"
	if !st.ModelLoaded {
		model = "loading"
	}
	fmt.Fprintf(&b, "model:   %s\n", model)
	if st.Preview != "" {
		fmt.Fprintf(&b, "preview: %s\n", st.Preview)
	}
	if st.Notice != "" {
		fmt.Fprintf(&b, "notice:  %s\n", st.Notice)
	}
	return b.String()
}

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the live dictation state and preview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := bus.NewClient()
			if err != nil {
				return err
			}
			return tui.Watch(func(ctx context.Context) (bus.Status, error) {
				var st bus.Status
				err := client.Call(ctx, &st, bus.VerbStatus)
				return st, err
			}, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "poll interval")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and daemon versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("client: version=%s proto=%s\n", version, bus.ProtoVer)
			client, err := bus.NewClient()
			if err != nil {
				return err
			}
			resp, err := client.Send(cmd.Context(), bus.VerbVersion)
			if errors.Is(err, bus.ErrDaemonNotRunning) {
				fmt.Println("daemon: not running")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Printf("daemon: %s\n", resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := send(cmd.Context(), bus.VerbQuit); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			return nil
		},
	}
}

func styleCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "style [formal|casual|very_casual]",
		Short:     "Show or set the output style",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"formal", "casual", "very_casual"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.Context(), bus.VerbStyle, args...)
		},
	}
}

func hotkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hotkey [combo]",
		Short: "Show or set the hotkey, e.g. ctrl+win or alt+f9",
		Long: `Show or set the push-to-talk combination. The new combination is
saved for the current user and takes effect immediately; it overrides
the [hotkey] section of the config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.Context(), bus.VerbHotkey, args...)
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration menu for holdtype.
This lets you change:
- The user and default style
- The hotkey
- The recognition strategy, model and language
- Text injection and notification preferences`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	path := configPath
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry, err := whisper.DefaultRegistry()
	if err != nil {
		return err
	}

	result, err := tui.Run(cfg, registry)
	if err != nil {
		return fmt.Errorf("configuration menu error: %w", err)
	}
	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if path == "" {
		err = config.Save(result.Config)
	} else {
		err = config.SaveFile(result.Config, path)
	}
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()

	showNextSteps(result.Config, registry)

	return nil
}

func showNextSteps(cfg *config.Config, registry *whisper.Registry) {
	serviceRunning := false
	if err := exec.Command("systemctl", "--user", "is-active", "--quiet", "holdtype.service").Run(); err == nil {
		serviceRunning = true
	}

	fmt.Println("Next Steps:")
	step := 1
	if cfg.Recognition.ModelPath == "" && !registry.IsInstalled(cfg.Recognition.Model) {
		fmt.Printf("%d. Download the model: holdtype model download %s\n", step, cfg.Recognition.Model)
		step++
	}
	for _, b := range cfg.Injection.PasteBackends {
		if b == "ydotool" {
			fmt.Printf("%d. Ensure ydotoold is running\n", step)
			step++
			break
		}
	}
	if !serviceRunning {
		fmt.Printf("%d. Start the daemon: systemctl --user start holdtype.service (or holdtype serve)\n", step)
	} else {
		fmt.Printf("%d. Most changes apply live; restart for recognition or storage changes: systemctl --user restart holdtype.service\n", step)
	}
	step++
	if combo, err := cfg.ToHotkeyConfiguration(); err == nil {
		fmt.Printf("%d. Hold %s, speak, and release\n", step, combo)
	}
	fmt.Println()

	if configPath != "" {
		fmt.Printf("Config file location: %s\n", configPath)
		return
	}
	p, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", p)
}

func depsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external programs holdtype needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if configPath == "" {
				cfg, err = config.Load()
			} else {
				cfg, err = config.LoadFile(configPath)
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			reports := deps.CheckAll(cfg)
			for _, r := range reports {
				fmt.Println(formatDepLine(r))
			}
			problems := deps.Problems(reports)
			if len(problems) == 0 {
				fmt.Println("\nall required programs found")
				return nil
			}
			fmt.Println()
			for _, p := range problems {
				fmt.Println("missing: " + p)
			}
			return fmt.Errorf("%d problem(s) found", len(problems))
		},
	}
}

func formatDepLine(r deps.Report) string {
	prefix := "  [ ]"
	if r.Installed {
		prefix = "  [x]"
	}
	line := fmt.Sprintf("%s %-12s %s", prefix, r.Name, r.Purpose)
	if r.Required {
		line += " (required)"
	}
	if r.Version != "" {
		line += " - " + r.Version
	}
	return line
}

// confirm asks a yes/no question in the configure theme.
func confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().Title(title).Value(&ok).Run()
	return ok, err
}
