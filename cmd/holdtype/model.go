package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/leonardotrapani/holdtype/internal/models/whisper"
	"github.com/spf13/cobra"
)

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage local speech models",
	}

	cmd.AddCommand(modelListCmd())
	cmd.AddCommand(modelDownloadCmd())
	cmd.AddCommand(modelRemoveCmd())

	return cmd
}

func modelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available models; [x] marks installed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := whisper.DefaultRegistry()
			if err != nil {
				return err
			}
			for _, m := range whisper.ListModels() {
				fmt.Println(formatModelLine(m, registry.IsInstalled(m.ID)))
			}
			fmt.Printf("\nmodels directory: %s\n", registry.Dir)
			return nil
		},
	}
}

func formatModelLine(m whisper.ModelInfo, installed bool) string {
	prefix := "  [ ]"
	if installed {
		prefix = "  [x]"
	}

	parts := []string{m.Size()}
	if m.Multilingual() {
		parts = append(parts, "multilingual")
	} else {
		parts = append(parts, "english")
	}

	return fmt.Sprintf("%s %-10s - %s [%s]", prefix, m.ID, m.Name, strings.Join(parts, ", "))
}

func modelDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <model-id>",
		Short: "Download a model, e.g. base.en",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID := args[0]
			info := whisper.GetModel(modelID)
			if info == nil {
				return fmt.Errorf("unknown model: %s (see holdtype model list)", modelID)
			}

			registry, err := whisper.DefaultRegistry()
			if err != nil {
				return err
			}
			if registry.IsInstalled(modelID) {
				fmt.Printf("model '%s' is already installed at %s\n", modelID, registry.Path(modelID))
				return nil
			}

			fmt.Printf("downloading %s (%s)...\n", modelID, info.Size())
			progress := &progressPrinter{}
			if err := registry.Download(cmd.Context(), modelID, progress.update); err != nil {
				fmt.Println()
				return fmt.Errorf("download failed: %w", err)
			}

			fmt.Printf("\ndownload complete: %s\n", registry.Path(modelID))
			return nil
		},
	}
}

// progressPrinter prints a line every 10 percent.
type progressPrinter struct {
	lastPercent int
}

func (p *progressPrinter) update(downloaded, total int64) {
	if line, ok := p.next(downloaded, total); ok {
		fmt.Print(line)
	}
}

func (p *progressPrinter) next(downloaded, total int64) (string, bool) {
	if total <= 0 {
		return "", false
	}
	percent := int(downloaded * 100 / total)
	if percent < p.lastPercent+10 {
		return "", false
	}
	p.lastPercent = percent - percent%10
	return fmt.Sprintf("\r  %3d%%  %s / %s", percent, humanize.Bytes(uint64(downloaded)), humanize.Bytes(uint64(total))), true
}

func modelRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <model-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a downloaded model",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID := args[0]
			registry, err := whisper.DefaultRegistry()
			if err != nil {
				return err
			}
			if !yes && registry.IsInstalled(modelID) {
				ok, err := confirm(fmt.Sprintf("Remove %s?", registry.Path(modelID)))
				if err != nil || !ok {
					return err
				}
			}
			if err := registry.Remove(modelID); err != nil {
				if errors.Is(err, whisper.ErrNotInstalled) {
					return fmt.Errorf("model '%s' is not installed", modelID)
				}
				return err
			}
			fmt.Printf("model '%s' removed successfully\n", modelID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
