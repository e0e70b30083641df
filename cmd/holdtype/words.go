package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/leonardotrapani/holdtype/internal/bus"
	"github.com/leonardotrapani/holdtype/internal/storage"
	"github.com/spf13/cobra"
)

func dictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dict",
		Aliases: []string{"dictionary"},
		Short:   "Manage custom words the recognizer should spell your way",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <word>",
			Short: "Add a word, e.g. ShadCN or Kubernetes",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var e storage.DictionaryEntry
				if err := call(cmd.Context(), &e, bus.VerbDictAdd, args[0]); err != nil {
					return err
				}
				fmt.Printf("added %q (%s)\n", e.Word, e.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List dictionary words",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				var entries []storage.DictionaryEntry
				if err := call(cmd.Context(), &entries, bus.VerbDictList); err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("dictionary is empty")
					return nil
				}
				for _, e := range entries {
					fmt.Printf("  %s  %s\n", e.ID, e.Word)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm <word|id>",
			Aliases: []string{"remove"},
			Short:   "Remove a word by spelling or ID",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var e storage.DictionaryEntry
				if err := call(cmd.Context(), &e, bus.VerbDictRemove, args[0]); err != nil {
					return err
				}
				fmt.Printf("removed %q\n", e.Word)
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <file.yaml>",
			Short: "Import words and snippets from a YAML file",
			Long: `Import words and snippets from a YAML file of the form:

  dictionary:
    - ShadCN
    - Kubernetes
  snippets:
    - shortcut: brb
      replacement: be right back

Entries that already exist are skipped.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				// the daemon opens the file, so it needs an absolute path
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				var res storage.ImportResult
				if err := call(cmd.Context(), &res, bus.VerbDictImport, path); err != nil {
					return err
				}
				fmt.Printf("imported %d word(s) and %d snippet(s), skipped %d\n", res.Words, res.Snippets, res.Skipped)
				return nil
			},
		},
	)

	return cmd
}

func snippetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snippet",
		Aliases: []string{"snip"},
		Short:   "Manage spoken shortcuts that expand to longer text",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <shortcut> <replacement>",
			Short: "Add a snippet, e.g. add brb \"be right back\"",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				var e storage.SnippetEntry
				if err := call(cmd.Context(), &e, bus.VerbSnipAdd, args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("added %q -> %q (%s)\n", e.Shortcut, e.Replacement, e.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List snippets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				var entries []storage.SnippetEntry
				if err := call(cmd.Context(), &entries, bus.VerbSnipList); err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("no snippets")
					return nil
				}
				for _, e := range entries {
					fmt.Printf("  %s  %s -> %s\n", e.ID, e.Shortcut, e.Replacement)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm <shortcut|id>",
			Aliases: []string{"remove"},
			Short:   "Remove a snippet by shortcut or ID",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var e storage.SnippetEntry
				if err := call(cmd.Context(), &e, bus.VerbSnipRemove, args[0]); err != nil {
					return err
				}
				fmt.Printf("removed %q\n", e.Shortcut)
				return nil
			},
		},
	)

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent dictations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []storage.Speech
			if err := call(cmd.Context(), &rows, bus.VerbHistory, strconv.Itoa(limit)); err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("no dictations yet")
				return nil
			}
			now := time.Now()
			for _, r := range rows {
				fmt.Println(formatSpeech(r, now))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to show")

	return cmd
}

func formatSpeech(s storage.Speech, now time.Time) string {
	when := humanize.RelTime(s.CreatedAt, now, "ago", "from now")
	dur := (time.Duration(s.DurationMs) * time.Millisecond).Round(100 * time.Millisecond)
	return fmt.Sprintf("  %-16s %6s  %s", when, dur, s.Text)
}
