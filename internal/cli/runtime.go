package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/cache"
	"github.com/temirov/repoview/internal/config"
	"github.com/temirov/repoview/internal/ignore"
	"github.com/temirov/repoview/internal/navigator"
	"github.com/temirov/repoview/internal/remote"
	"github.com/temirov/repoview/internal/render"
	"github.com/temirov/repoview/internal/utils"
	"github.com/temirov/repoview/internal/viewer"
)

// viewerRuntime holds the collaborators shared by every session of one command.
type viewerRuntime struct {
	settings  config.Settings
	logger    *zap.Logger
	store     cache.Store
	client    *remote.Client
	rules     ignore.RuleSet
	navigator *navigator.Navigator
	renderer  *render.Renderer
}

func newViewerRuntime(env environment, settings config.Settings) (*viewerRuntime, error) {
	logger := env.Logger
	if logger == nil {
		created, err := utils.NewApplicationLoggerWithLevel(settings.LogLevel)
		if err != nil {
			return nil, err
		}
		logger = created
	}

	var store cache.Store
	if settings.CacheDisabled {
		store = cache.NewMemoryStore()
	} else {
		fileStore, err := cache.NewFileStore(settings.CacheDirectory, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("using cache directory", zap.String("directory", fileStore.Directory()))
		store = fileStore
	}

	rules, err := ignore.NewRuleSet(settings.IgnoreFiles)
	if err != nil {
		// Invalid full-path patterns never match; the remaining rules still apply.
		logger.Warn("invalid ignore rule", zap.Error(err))
	}

	var client *remote.Client
	if env.HTTPClient != nil {
		client = remote.NewClient(env.HTTPClient, store, logger)
	} else {
		client = remote.NewClient(nil, store, logger).WithTimeout(settings.Timeout)
	}
	client = client.WithAPIBase(settings.APIBase).WithUserAgent(rootUse + "/" + utils.GetApplicationVersion())

	return &viewerRuntime{
		settings:  settings,
		logger:    logger,
		store:     store,
		client:    client,
		rules:     rules,
		navigator: navigator.New(settings.OpenDelay, logger),
		renderer:  render.New(store, logger),
	}, nil
}

// newSession builds an uninitialized session that opens the configured default file.
func (runtime *viewerRuntime) newSession(parameters viewer.Parameters) *viewer.Session {
	return runtime.sessionWithDefault(parameters, runtime.settings.DefaultFile)
}

func (runtime *viewerRuntime) sessionWithDefault(parameters viewer.Parameters, defaultFile string) *viewer.Session {
	return viewer.NewSession(parameters, viewer.Options{
		Source:      runtime.client,
		Rules:       runtime.rules,
		Navigator:   runtime.navigator,
		Renderer:    runtime.renderer,
		DefaultFile: defaultFile,
		Logger:      runtime.logger,
	})
}

// parameters builds viewer parameters from the resolved settings. A positional
// repository argument takes precedence over the flag and the configuration.
func (runtime *viewerRuntime) parameters(positional []string) (viewer.Parameters, error) {
	identifier := runtime.settings.Repository
	if len(positional) > 0 && positional[0] != "" {
		identifier = positional[0]
	}
	owner, repo, err := viewer.ParseRepository(identifier)
	if err != nil {
		return viewer.Parameters{}, fmt.Errorf("resolve repository: %w", err)
	}
	tab, err := viewer.ParseTab(runtime.settings.Tab)
	if err != nil {
		return viewer.Parameters{}, err
	}
	return viewer.Parameters{
		RepositoryIdentifier: identifier,
		Owner:                owner,
		Repo:                 repo,
		PreviewURL:           runtime.settings.Preview,
		HideToolbar:          runtime.settings.HideToolbar,
		SelectedTab:          tab,
	}, nil
}

func (runtime *viewerRuntime) sync() {
	_ = runtime.logger.Sync()
}
