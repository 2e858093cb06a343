package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/services/server"
	"github.com/temirov/repoview/internal/viewer"
)

// createServeCommand returns the serve subcommand.
func createServeCommand(env environment, flags *booleanFlags, global *globalOptions) *cobra.Command {
	var options viewerOptions
	var address string

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, err := resolveSettings(command, global, &options)
			if err != nil {
				return err
			}
			if command.Flags().Changed(addressFlagName) {
				settings.ServeAddress = address
			}
			runtime, err := newViewerRuntime(env, settings)
			if err != nil {
				return err
			}
			defer runtime.sync()

			var defaults *viewer.Parameters
			parameters, parameterErr := runtime.parameters(arguments)
			var missing *viewer.MissingConfigurationError
			switch {
			case parameterErr == nil:
				defaults = &parameters
			case errors.As(parameterErr, &missing):
				runtime.logger.Warn("no default repository configured; requests must name one", zap.String("parameter", missing.Parameter))
			default:
				return parameterErr
			}

			viewerServer := server.NewServer(server.Config{
				Address:    settings.ServeAddress,
				Defaults:   defaults,
				NewSession: runtime.newSession,
				Logger:     runtime.logger,
			})
			return viewerServer.Run(command.Context(), func(boundAddress string) {
				runtime.logger.Info("viewer server listening", zap.String("address", boundAddress))
				fmt.Fprintf(env.Stdout, listeningMessageFormat, boundAddress)
			})
		},
	}

	addViewerFlags(serveCommand, flags, &options)
	serveCommand.Flags().StringVar(&address, addressFlagName, "", addressFlagDescription)
	return serveCommand
}
