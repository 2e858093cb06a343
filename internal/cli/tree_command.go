package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/repoview/internal/output"
	"github.com/temirov/repoview/internal/tree"
	"github.com/temirov/repoview/internal/types"
)

// createTreeCommand returns the tree subcommand.
func createTreeCommand(env environment, flags *booleanFlags, global *globalOptions) *cobra.Command {
	var options viewerOptions
	var outputFormat string
	var summaryEnabled bool
	var expandPaths []string

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, err := resolveSettings(command, global, &options)
			if err != nil {
				return err
			}
			format, err := resolveFormat(command, outputFormat, settings)
			if err != nil {
				return err
			}
			if command.Flags().Changed(summaryFlagName) {
				settings.Summary = summaryEnabled
			}
			runtime, err := newViewerRuntime(env, settings)
			if err != nil {
				return err
			}
			defer runtime.sync()

			parameters, err := runtime.parameters(arguments)
			if err != nil {
				return err
			}
			session := runtime.newSession(parameters)
			ctx := command.Context()
			if err := session.Initialize(ctx); err != nil {
				return err
			}
			for _, path := range expandPaths {
				if err := session.Reveal(ctx, path); err != nil {
					return err
				}
			}

			snapshot := session.Snapshot()
			var summary *types.OutputSummary
			if settings.Summary {
				computed := tree.Summarize(snapshot)
				summary = &computed
			}
			if err := output.RenderTree(env.Stdout, format, snapshot, summary); err != nil {
				return fmt.Errorf("render tree: %w", err)
			}
			return nil
		},
	}

	addViewerFlags(treeCommand, flags, &options)
	treeCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	treeCommand.Flags().StringArrayVar(&expandPaths, expandFlagName, nil, expandFlagDescription)
	flags.register(treeCommand.Flags(), &summaryEnabled, summaryFlagName, false, summaryFlagDescription)
	return treeCommand
}
