package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the command tree. Running the root without a
// subcommand serves.
func newRootCmd() *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:           "llmd",
		Short:         "Model lifecycle daemon: switch backends and stream inference over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}
	bindFlags(root, v)

	root.AddCommand(
		&cobra.Command{
			Use:     "serve",
			Short:   "Run the HTTP API, the background loader and the status reporter",
			Example: "  llmd serve --config llmd.yaml\n  PORT=8082 DEFAULT_MODEL=tiny llmd serve --startup default",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), v)
			},
		},
		newModelsCmd(v),
		newCheckCmd(v),
	)
	return root
}

// bindFlags registers the persistent flags and binds each to v, so flags
// win over env vars which win over the config file.
func bindFlags(root *cobra.Command, v *viper.Viper) {
	f := root.PersistentFlags()
	f.String("config", "", "Config file (.yaml, .yml, .toml or .json)")
	f.String("addr", "", "HTTP listen address (default :8082)")
	f.String("models-dir", "", "Directory scanned for *.gguf files")
	f.String("default-model", "", "Model used when a request names none")
	f.String("startup", "", "What to load at startup: bring-up|default|none")
	f.String("cache-dir", "", "Directory for downloaded hub weights")
	f.String("llama-bin", "", "llama-server binary; runs local models out of process")
	f.String("llama-host", "", "Host the spawned llama-server binds to")
	f.Int("threads", 0, "Default threads for local models")
	f.Int("gpu-layers", 0, "Default GPU layers for local models")
	f.Int("max-queue-depth", 0, "Queued requests per model before 429")
	f.Int("max-inflight", 0, "Concurrent streams per model")
	f.Int("max-wait-ms", 0, "Max time a request waits for a generation slot")
	f.Int("drain-timeout-ms", 0, "Max time unload waits for open streams")
	f.Int64("max-body-bytes", 0, "Max JSON request body size")
	f.Int64("infer-timeout-seconds", 0, "Per-request inference timeout (0 = none)")
	f.Bool("cors-enabled", false, "Enable CORS")
	f.String("cors-origins", "", "Comma-separated allowed CORS origins")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: console|json")
	f.String("status-sink", "", "Base URL of the service status sink")
	f.Int("status-interval", 0, "Seconds between status reports")
	_ = v.BindPFlags(f)
}
