package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"llmd/internal/manager"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Short:   "Probe engines and every model backend without loading anything",
		Example: "  llmd check --config llmd.yaml --llama-bin /usr/local/bin/llama-server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(v)
			if err != nil {
				return err
			}
			log := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			mgr, err := newManager(cfg, log, nil)
			if err != nil {
				return err
			}
			defer mgr.Cleanup()
			rep := mgr.SanityCheck(cmd.Context(), providerOptions(cfg))
			if err := writeReport(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if rep.Error != "" {
				return errors.New(rep.Error)
			}
			return nil
		},
	}
}

func writeReport(w io.Writer, rep manager.SanityReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
