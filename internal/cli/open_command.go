package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/output"
	"github.com/temirov/repoview/internal/services/clipboard"
	"github.com/temirov/repoview/internal/tokenizer"
	"github.com/temirov/repoview/internal/types"
	"github.com/temirov/repoview/internal/utils"
	"github.com/temirov/repoview/internal/viewer"
)

const errorNoPathFormat = "no path given and no default file configured (set --%s or default_file)"

type tokenOptions struct {
	enabled bool
	model   string
}

type openCommandOptions struct {
	Path             string
	Format           string
	Render           bool
	Tokens           tokenOptions
	ClipboardEnabled bool
	CopyOnly         bool
	Clipboard        clipboard.Copier
	Writer           io.Writer
	Logger           *zap.Logger
}

// createOpenCommand returns the open subcommand.
func createOpenCommand(env environment, flags *booleanFlags, global *globalOptions) *cobra.Command {
	var options viewerOptions
	var outputFormat string
	var renderEnabled bool
	var copyEnabled bool
	var copyOnly bool
	var tokenConfiguration tokenOptions

	openCommand := &cobra.Command{
		Use:     openUse,
		Aliases: []string{openAlias},
		Short:   openShortDescription,
		Long:    openLongDescription,
		Example: openUsageExample,
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
			if !command.Flags().Changed(modelFlagName) {
				tokenConfiguration.model = settings.TokenModel
			}
			targetPath := settings.DefaultFile
			if len(arguments) > 0 {
				targetPath = strings.Trim(strings.TrimSpace(arguments[0]), "/")
			}
			if targetPath == "" {
				return fmt.Errorf(errorNoPathFormat, defaultFileFlagName)
			}

			runtime, err := newViewerRuntime(env, settings)
			if err != nil {
				return err
			}
			defer runtime.sync()
			parameters, err := runtime.parameters(nil)
			if err != nil {
				return err
			}
			// The default file is not opened on load; the navigator walks to targetPath instead.
			session := runtime.sessionWithDefault(parameters, "")
			return runOpenCommand(command.Context(), session, openCommandOptions{
				Path:             targetPath,
				Format:           format,
				Render:           renderEnabled,
				Tokens:           tokenConfiguration,
				ClipboardEnabled: copyEnabled,
				CopyOnly:         copyOnly,
				Clipboard:        env.Clipboard,
				Writer:           env.Stdout,
				Logger:           runtime.logger,
			})
		},
	}

	addViewerFlags(openCommand, flags, &options)
	openCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	openCommand.Flags().StringVar(&tokenConfiguration.model, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)
	flags.register(openCommand.Flags(), &tokenConfiguration.enabled, tokensFlagName, false, tokensFlagDescription)
	flags.register(openCommand.Flags(), &renderEnabled, renderFlagName, false, renderFlagDescription)
	flags.register(openCommand.Flags(), &copyEnabled, copyFlagName, false, copyFlagDescription)
	flags.register(openCommand.Flags(), &copyOnly, copyOnlyFlagName, false, copyOnlyFlagDescription)
	return openCommand
}

func runOpenCommand(ctx context.Context, session *viewer.Session, options openCommandOptions) error {
	if err := session.Initialize(ctx); err != nil {
		return err
	}
	view, err := session.Navigate(ctx, options.Path)
	if err != nil {
		return err
	}

	outputWriter := options.Writer
	copyRequested := options.ClipboardEnabled || options.CopyOnly
	var clipboardBuffer *bytes.Buffer
	if copyRequested {
		if options.Clipboard == nil {
			return errors.New(clipboardServiceMissingMessage)
		}
		clipboardBuffer = &bytes.Buffer{}
		if options.CopyOnly {
			outputWriter = clipboardBuffer
		} else {
			outputWriter = io.MultiWriter(outputWriter, clipboardBuffer)
		}
	}

	if options.Render {
		markup, renderErr := session.Render(ctx, view.Path)
		if renderErr != nil {
			return renderErr
		}
		if _, writeErr := fmt.Fprintln(outputWriter, markup); writeErr != nil {
			return writeErr
		}
	} else {
		if !view.Media {
			view.Size = utils.FormatContentSize(view.Content)
		}
		if options.Tokens.enabled && !view.Media {
			if countErr := countTokens(&view, options.Tokens); countErr != nil {
				options.Logger.Warn("failed to count tokens", zap.String("path", view.Path), zap.Error(countErr))
			}
		}
		if renderErr := output.RenderFile(outputWriter, options.Format, view); renderErr != nil {
			return renderErr
		}
	}

	if copyRequested && clipboardBuffer != nil {
		if copyErr := options.Clipboard.Copy(clipboardBuffer.String()); copyErr != nil {
			return fmt.Errorf(clipboardCopyErrorFormat, copyErr)
		}
	}
	return nil
}

func countTokens(view *types.FileView, options tokenOptions) error {
	counter, model, err := tokenizer.NewCounter(tokenizer.Config{Model: options.model})
	if err != nil {
		return err
	}
	result, err := tokenizer.CountText(counter, view.Content)
	if err != nil {
		return err
	}
	if result.Counted {
		view.Tokens = result.Tokens
		view.Model = model
	}
	return nil
}
