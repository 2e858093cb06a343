// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/config"
	"github.com/temirov/repoview/internal/services/clipboard"
	"github.com/temirov/repoview/internal/types"
	"github.com/temirov/repoview/internal/utils"
)

const (
	configFlagName       = "config"
	logLevelFlagName     = "log-level"
	apiBaseFlagName      = "api-base"
	versionFlagName      = "version"
	repositoryFlagName   = "github"
	previewFlagName      = "preview"
	tabFlagName          = "tab"
	hideToolbarFlagName  = "hide-toolbar"
	defaultFileFlagName  = "default-file"
	ignoreFileFlagName   = "ignore-file"
	exclusionFlagName    = "e"
	noCacheFlagName      = "no-cache"
	formatFlagName       = "format"
	summaryFlagName      = "summary"
	expandFlagName       = "expand"
	tokensFlagName       = "tokens"
	modelFlagName        = "model"
	copyFlagName         = "copy"
	copyOnlyFlagName     = "copy-only"
	renderFlagName       = "render"
	addressFlagName      = "address"
	globalFlagName       = "global"
	forceFlagName        = "force"
	versionTemplate      = "repoview version: %s\n"
	rootUse              = "repoview"
	rootShortDescription = "repoview command line interface"
	rootLongDescription  = `repoview browses a GitHub repository through the contents API.
It materializes the filtered file tree, opens files along a default path, and serves a browser viewer.
Use --format to select raw, json, or xml output and --version to print the application version.`

	treeUse                    = "tree [repository]"
	openUse                    = "open [path]"
	serveUse                   = "serve [repository]"
	configUse                  = "config"
	configInitUse              = "init"
	treeAlias                  = "t"
	openAlias                  = "o"
	treeShortDescription       = "display the filtered repository tree (" + treeAlias + ")"
	openShortDescription       = "open a repository file (" + openAlias + ")"
	serveShortDescription      = "serve the browser viewer API"
	configShortDescription     = "manage repoview configuration"
	configInitShortDescription = "write the default configuration file"

	treeLongDescription = `List the repository root with ignore rules applied and reveal the default file.
Use --expand to load additional directories and --format to select raw, json, or xml output.`
	treeUsageExample = `  # Render the tree of a repository
  repoview tree https://github.com/owner/repo

  # Expand a directory and print JSON with a summary
  repoview tree owner/repo --expand src --format json --summary`

	openLongDescription = `Open a file of the repository, revealing every directory along its path.
Without a path the configured default file is opened.`
	openUsageExample = `  # Show a file with its token count
  repoview open src/main.go --github owner/repo --tokens

  # Print highlighted markup and copy it to the clipboard
  repoview open README.md --github owner/repo --render --copy`

	serveLongDescription = `Serve the viewer JSON API and Prometheus metrics.
Requests may name a repository with the github query parameter, otherwise the configured repository is used.`

	configFlagDescription      = "path to a configuration file"
	logLevelFlagDescription    = "log level (debug, info, warn, error)"
	apiBaseFlagDescription     = "contents API base URL"
	versionFlagDescription     = "display application version"
	repositoryFlagDescription  = "repository URL or owner/repo"
	previewFlagDescription     = "preview page URL"
	tabFlagDescription         = "selected pane (Code or Preview)"
	hideToolbarFlagDescription = "hide the viewer toolbar"
	defaultFileFlagDescription = "file opened after the tree loads (empty disables)"
	ignoreFileFlagDescription  = "read additional ignore rules from a file"
	exclusionFlagDescription   = "add an ignore rule"
	noCacheFlagDescription     = "keep fetched payloads in memory only"
	formatFlagDescription      = "output format"
	summaryFlagDescription     = "include summary of directories and files"
	expandFlagDescription      = "expand a directory after loading"
	tokensFlagDescription      = "include token count"
	modelFlagDescription       = "tokenizer model to use for token counting"
	copyFlagDescription        = "copy output to the clipboard"
	copyOnlyFlagDescription    = "copy output to the clipboard without printing"
	renderFlagDescription      = "print rendered markup instead of the file"
	addressFlagDescription     = "listen address"
	globalFlagDescription      = "write the global configuration"
	forceFlagDescription       = "overwrite an existing configuration"

	invalidFormatMessage           = "invalid format value '%s'"
	clipboardServiceMissingMessage = "clipboard service is not configured"
	clipboardCopyErrorFormat       = "copy output to clipboard: %w"
	configurationWrittenFormat     = "Configuration written to %s\n"
	listeningMessageFormat         = "Listening on http://%s\n"
)

// isSupportedFormat reports whether the provided format is recognized.
func isSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON, types.FormatXML:
		return true
	default:
		return false
	}
}

// environment carries the process-level collaborators of the commands.
type environment struct {
	Stdout     io.Writer
	Clipboard  clipboard.Copier
	HTTPClient *http.Client
	// Logger replaces the logger built from --log-level when set.
	Logger *zap.Logger
}

// Execute runs the repoview application.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	flags := newBooleanFlags()
	rootCommand := createRootCommand(environment{
		Stdout:    os.Stdout,
		Clipboard: clipboard.NewService(),
	}, flags)
	rootCommand.SetArgs(flags.normalize(os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// globalOptions stores the persistent flags of the root command.
type globalOptions struct {
	configPath  string
	logLevel    string
	apiBase     string
	showVersion bool
}

// viewerOptions stores flags shared by commands that open a repository.
type viewerOptions struct {
	repository  string
	preview     string
	tab         string
	hideToolbar bool
	defaultFile string
	ignoreFiles []string
	exclusions  []string
	noCache     bool
}

// createRootCommand builds the root Cobra command.
func createRootCommand(env environment, flags *booleanFlags) *cobra.Command {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	var global globalOptions

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if global.showVersion {
				fmt.Fprintf(env.Stdout, versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.SetOut(env.Stdout)
	rootCommand.PersistentFlags().StringVar(&global.configPath, configFlagName, "", configFlagDescription)
	rootCommand.PersistentFlags().StringVar(&global.logLevel, logLevelFlagName, "", logLevelFlagDescription)
	rootCommand.PersistentFlags().StringVar(&global.apiBase, apiBaseFlagName, "", apiBaseFlagDescription)
	rootCommand.PersistentFlags().BoolVar(&global.showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.AddCommand(
		createTreeCommand(env, flags, &global),
		createOpenCommand(env, flags, &global),
		createServeCommand(env, flags, &global),
		createConfigCommand(env, flags),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// addViewerFlags registers repository-related flags on the command.
func addViewerFlags(command *cobra.Command, flags *booleanFlags, options *viewerOptions) {
	command.Flags().StringVar(&options.repository, repositoryFlagName, "", repositoryFlagDescription)
	command.Flags().StringVar(&options.preview, previewFlagName, "", previewFlagDescription)
	command.Flags().StringVar(&options.tab, tabFlagName, "", tabFlagDescription)
	command.Flags().StringVar(&options.defaultFile, defaultFileFlagName, "", defaultFileFlagDescription)
	command.Flags().StringArrayVar(&options.ignoreFiles, ignoreFileFlagName, nil, ignoreFileFlagDescription)
	command.Flags().StringArrayVarP(&options.exclusions, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	flags.register(command.Flags(), &options.hideToolbar, hideToolbarFlagName, false, hideToolbarFlagDescription)
	flags.register(command.Flags(), &options.noCache, noCacheFlagName, false, noCacheFlagDescription)
}

// resolveSettings loads configuration files and applies the flags the user set.
func resolveSettings(command *cobra.Command, global *globalOptions, options *viewerOptions) (config.Settings, error) {
	loaded, err := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: global.configPath})
	if err != nil {
		return config.Settings{}, err
	}
	settings, err := loaded.Resolve()
	if err != nil {
		return config.Settings{}, err
	}
	if global.logLevel != "" {
		settings.LogLevel = global.logLevel
	}
	if global.apiBase != "" {
		settings.APIBase = global.apiBase
	}
	if options == nil {
		return settings, nil
	}
	changed := command.Flags().Changed
	if changed(repositoryFlagName) {
		settings.Repository = options.repository
	}
	if changed(previewFlagName) {
		settings.Preview = options.preview
	}
	if changed(tabFlagName) {
		settings.Tab = options.tab
	}
	if changed(hideToolbarFlagName) {
		settings.HideToolbar = options.hideToolbar
	}
	if changed(defaultFileFlagName) {
		settings.DefaultFile = strings.TrimSpace(options.defaultFile)
	}
	if changed(noCacheFlagName) && options.noCache {
		settings.CacheDisabled = true
	}
	additional := append([]string{}, options.exclusions...)
	for _, ignoreFilePath := range options.ignoreFiles {
		patterns, loadErr := config.LoadIgnoreFilePatterns(ignoreFilePath)
		if loadErr != nil {
			return config.Settings{}, loadErr
		}
		additional = append(additional, patterns...)
	}
	settings.IgnoreFiles = config.CombineIgnorePatterns(settings.IgnoreFiles, additional)
	return settings, nil
}

// resolveFormat lower-cases and validates the output format.
func resolveFormat(command *cobra.Command, flagValue string, settings config.Settings) (string, error) {
	format := settings.Format
	if command.Flags().Changed(formatFlagName) {
		format = flagValue
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if !isSupportedFormat(format) {
		return "", fmt.Errorf(invalidFormatMessage, format)
	}
	return format, nil
}

// createConfigCommand returns the config command group.
func createConfigCommand(env environment, flags *booleanFlags) *cobra.Command {
	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:   configInitUse,
		Short: configInitShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, err := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(env.Stdout, configurationWrittenFormat, path)
			return err
		},
	}
	flags.register(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	flags.register(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	configCommand.AddCommand(initCommand)
	return configCommand
}
