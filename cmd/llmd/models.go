package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"llmd/internal/registry"
	"llmd/pkg/types"
)

func newModelsCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Short:   "List configured and discovered models after validation",
		Example: "  llmd models --models-dir ~/models/llm\n  llmd models --config llmd.toml --json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(v)
			if err != nil {
				return err
			}
			models, err := registry.Build(cfg.ApplyModelDefaults(cfg.Models), cfg.ModelsDir)
			if err != nil {
				return err
			}
			if asJSON {
				return writeModelsJSON(cmd.OutOrStdout(), models)
			}
			return writeModelsTable(cmd.OutOrStdout(), models)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func writeModelsJSON(w io.Writer, models []types.Model) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(models)
}

func writeModelsTable(w io.Writer, models []types.Model) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBACKEND\tPRIORITY\tLOAD AFTER\tSOURCE")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", m.ID, m.Backend, m.Priority, dash(m.LoadAfter), source(m))
	}
	return tw.Flush()
}

// source is where the model's weights or API live.
func source(m types.Model) string {
	switch m.Backend {
	case types.BackendLocal:
		return m.Path
	case types.BackendHub:
		return m.RemoteModel + "/" + m.File
	}
	if m.Endpoint != "" {
		return m.Endpoint
	}
	return "-"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
