// Package viewer owns the state of one repository viewer instance.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/ignore"
	"github.com/temirov/repoview/internal/navigator"
	"github.com/temirov/repoview/internal/render"
	"github.com/temirov/repoview/internal/tree"
	"github.com/temirov/repoview/internal/types"
)

const (
	errorInitializeFormat = "initialize %s/%s: %w"
	errorPathFormat       = "%s: %w"
)

// State is the presentation state of a viewer.
type State struct {
	Owner        string `json:"owner"`
	Repo         string `json:"repo"`
	PreviewURL   string `json:"previewUrl,omitempty"`
	HideToolbar  bool   `json:"hideToolbar"`
	SelectedTab  Tab    `json:"selectedTab"`
	OpenPath     string `json:"openPath,omitempty"`
	VisibleNodes int    `json:"visibleNodes"`
}

// Options configures a Session.
type Options struct {
	Source      tree.Source
	Rules       ignore.RuleSet
	Navigator   *navigator.Navigator
	Renderer    *render.Renderer
	DefaultFile string
	Logger      *zap.Logger
}

// Session ties the materialized tree, the navigator and the renderer to the
// pane state of one viewer.
type Session struct {
	tree        *tree.Tree
	navigator   *navigator.Navigator
	renderer    *render.Renderer
	defaultFile string
	logger      *zap.Logger

	mutex sync.RWMutex
	state State
}

// NewSession returns a Session for the repository named by parameters.
func NewSession(parameters Parameters, options Options) *Session {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileNavigator := options.Navigator
	if fileNavigator == nil {
		fileNavigator = navigator.New(navigator.DefaultOpenDelay, logger)
	}
	renderer := options.Renderer
	if renderer == nil {
		renderer = render.New(nil, logger)
	}
	selectedTab := parameters.SelectedTab
	if selectedTab == "" {
		selectedTab = TabPreview
	}
	if parameters.PreviewURL == "" {
		logger.Warn("no preview url configured", zap.String("parameter", ParameterPreview))
	}
	return &Session{
		tree:        tree.New(options.Source, parameters.Owner, parameters.Repo, options.Rules, logger),
		navigator:   fileNavigator,
		renderer:    renderer,
		defaultFile: options.DefaultFile,
		logger:      logger,
		state: State{
			Owner:       parameters.Owner,
			Repo:        parameters.Repo,
			PreviewURL:  parameters.PreviewURL,
			HideToolbar: parameters.HideToolbar,
			SelectedTab: selectedTab,
		},
	}
}

// Initialize loads the repository root and opens the default file when one is
// configured. A default file that cannot be found is logged and ignored.
func (session *Session) Initialize(ctx context.Context) error {
	if err := session.tree.Load(ctx); err != nil {
		return fmt.Errorf(errorInitializeFormat, session.tree.Owner(), session.tree.Repo(), err)
	}
	if session.defaultFile == "" {
		return nil
	}
	_, err := session.Navigate(ctx, session.defaultFile)
	var notFound *navigator.NotFoundError
	if errors.As(err, &notFound) {
		session.logger.Warn("default file unavailable", zap.String("path", session.defaultFile), zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf(errorInitializeFormat, session.tree.Owner(), session.tree.Repo(), err)
	}
	return nil
}

// Tree returns the materialized tree.
func (session *Session) Tree() *tree.Tree {
	return session.tree
}

// State returns a copy of the presentation state.
func (session *Session) State() State {
	session.mutex.RLock()
	state := session.state
	session.mutex.RUnlock()
	state.OpenPath = session.tree.OpenPath()
	state.VisibleNodes = session.tree.VisibleNodes()
	return state
}

// ShowPreview selects the preview pane.
func (session *Session) ShowPreview() State {
	return session.selectTab(TabPreview)
}

// ShowCode selects the code pane.
func (session *Session) ShowCode() State {
	return session.selectTab(TabCode)
}

func (session *Session) selectTab(tab Tab) State {
	session.mutex.Lock()
	session.state.SelectedTab = tab
	session.mutex.Unlock()
	return session.State()
}

// ApplyPresentation updates the pane state from the preview, hideToolbar and
// tab values present in values. Absent values keep the current state and
// nothing changes when any present value is invalid.
func (session *Session) ApplyPresentation(values url.Values) (State, error) {
	session.mutex.RLock()
	updated := session.state
	session.mutex.RUnlock()

	if values.Has(ParameterPreview) {
		updated.PreviewURL = strings.TrimSpace(values.Get(ParameterPreview))
	}
	if values.Has(ParameterHideToolbar) {
		hide, err := parseHideToolbar(strings.TrimSpace(values.Get(ParameterHideToolbar)))
		if err != nil {
			return State{}, err
		}
		updated.HideToolbar = hide
	}
	if values.Has(ParameterTab) {
		tab, err := ParseTab(values.Get(ParameterTab))
		if err != nil {
			return State{}, err
		}
		updated.SelectedTab = tab
	}

	session.mutex.Lock()
	session.state.PreviewURL = updated.PreviewURL
	session.state.HideToolbar = updated.HideToolbar
	session.state.SelectedTab = updated.SelectedTab
	session.mutex.Unlock()
	return session.State(), nil
}

// Expand toggles the materialized directory at path.
func (session *Session) Expand(ctx context.Context, path string) (tree.State, error) {
	node := session.tree.Find(path)
	if node == nil {
		return "", fmt.Errorf(errorPathFormat, path, ErrUnknownPath)
	}
	return session.tree.Expand(ctx, node)
}

// Reveal makes the children of the directory at path visible without
// toggling an expanded directory closed.
func (session *Session) Reveal(ctx context.Context, path string) error {
	node := session.tree.Find(path)
	if node == nil {
		return fmt.Errorf(errorPathFormat, path, ErrUnknownPath)
	}
	return session.tree.Reveal(ctx, node)
}

// Open opens the materialized file at path.
func (session *Session) Open(ctx context.Context, path string) (types.FileView, error) {
	node := session.tree.Find(path)
	if node == nil {
		return types.FileView{}, fmt.Errorf(errorPathFormat, path, ErrUnknownPath)
	}
	return session.tree.OpenFile(ctx, node)
}

// Navigate reveals every directory along path and opens the file at its end.
func (session *Session) Navigate(ctx context.Context, path string) (types.FileView, error) {
	return session.navigator.OpenDefaultPath(ctx, session.tree, path)
}

// Render opens the materialized file at path and returns its markup.
func (session *Session) Render(ctx context.Context, path string) (string, error) {
	view, err := session.Open(ctx, path)
	if err != nil {
		return "", err
	}
	return session.renderer.Render(ctx, session.tree.Owner(), session.tree.Repo(), view)
}

// Snapshot returns the materialized tree for output.
func (session *Session) Snapshot() *types.TreeOutputNode {
	return session.tree.Snapshot()
}
