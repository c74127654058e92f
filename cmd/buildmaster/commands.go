package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/buildmaster/internal/config"
	"github.com/mattjoyce/buildmaster/internal/doctor"
	"github.com/mattjoyce/buildmaster/internal/scripts"
	"github.com/mattjoyce/buildmaster/internal/tui/watch"
)

const defaultWatchURL = "http://localhost:8016"

func newStartCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the supervisor and HTTP API in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: discovered)")
	return cmd
}

// scriptEntry is one line of the scripts listing.
type scriptEntry struct {
	Name        string `json:"name"`
	Summary     string `json:"summary,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

func newScriptsCmd() *cobra.Command {
	var (
		configPath string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List the scripts that can be deployed as builders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			dir, err := scripts.Open(cfg.Scripts.Dir)
			if err != nil {
				return err
			}
			names, err := dir.List()
			if err != nil {
				return err
			}

			entries := make([]scriptEntry, 0, len(names))
			for _, name := range names {
				e := scriptEntry{Name: name}
				if fp, err := dir.Fingerprint(name); err == nil {
					e.Fingerprint = fp
				}
				if path, err := dir.Resolve(name); err == nil {
					if desc, err := scripts.Describe(path); err == nil {
						e.Summary = desc.Summary
					}
				}
				entries = append(entries, e)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "No executable scripts in %s\n", dir.Root())
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFINGERPRINT\tSUMMARY")
			for _, e := range entries {
				fp := e.Fingerprint
				if len(fp) > 12 {
					fp = fp[:12]
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, fp, e.Summary)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: discovered)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var (
		configPath string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"doctor"},
		Short:   "Validate the configuration and the scripts directory",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}

			result := doctor.New(cfg).Validate()
			out := cmd.OutOrStdout()
			if jsonOut {
				s, err := doctor.FormatJSON(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
			} else {
				fmt.Fprint(out, doctor.FormatHuman(result))
			}
			if !result.Valid {
				return errCheckFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: discovered)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of builders, their output and lifecycle events",
		Long: `Live view of builders, their output and lifecycle events.

Keybindings:
  q, Ctrl+C        Quit
  ↑/↓, k/j         Select builder
  r                Redeploy selected builder
  x                Terminate selected builder
  PgUp/PgDn        Scroll output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(watch.New(apiURL))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}
	def := os.Getenv("BUILDMASTER_URL")
	if def == "" {
		def = defaultWatchURL
	}
	cmd.Flags().StringVar(&apiURL, "url", def, "buildmaster API URL (or BUILDMASTER_URL)")
	return cmd
}
