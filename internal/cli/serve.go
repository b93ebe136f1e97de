package cli

import (
	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/api"
)

// newServeCommand creates the "serve" subcommand that exposes the engine over HTTP.
func newServeCommand(opts *Options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configuration, lifecycle and container API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			if !cmd.Flags().Changed("listen") && envPresent("LOCALAICTL_LISTEN") {
				var se serveEnv
				if err := parseEnv(&se); err != nil {
					return err
				}
				listen = se.Listen
			}

			a, err := openApp(cmd, opts, appNeeds{monitor: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if listen == "" {
				listen = a.cfg.API.Listen
			}
			logger.Info("starting api server", "listen", listen, "project", a.cfg.Project)
			return api.NewServer(a.engine, a.metrics, logger).Run(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, defaults to api.listen from the config")
	return cmd
}
