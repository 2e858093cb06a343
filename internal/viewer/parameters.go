package viewer

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Entry parameter names.
const (
	ParameterRepository  = "github"
	ParameterPreview     = "preview"
	ParameterHideToolbar = "hideToolbar"
	ParameterTab         = "tab"
)

const (
	repositorySeparator     = "/"
	repositoryOwnerPosition = 3
	repositoryNamePosition  = 4

	missingConfigurationFormat = "missing configuration parameter %q"
	invalidParameterFormat     = "parameter %s=%q: %w"
)

// Tab selects the visible pane.
type Tab string

const (
	TabCode    Tab = "Code"
	TabPreview Tab = "Preview"
)

var (
	// ErrInvalidParameter marks entry parameters that cannot be interpreted.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnknownPath is returned for paths that are not materialized.
	ErrUnknownPath = errors.New("unknown path")
)

// MissingConfigurationError reports a required entry parameter that was not provided.
type MissingConfigurationError struct {
	Parameter string
}

func (err *MissingConfigurationError) Error() string {
	return fmt.Sprintf(missingConfigurationFormat, err.Parameter)
}

// Parameters are the entry parameters of one viewer instance.
type Parameters struct {
	RepositoryIdentifier string
	Owner                string
	Repo                 string
	PreviewURL           string
	HideToolbar          bool
	SelectedTab          Tab
}

// ParseTab accepts Code or Preview in any letter case. An empty value selects the preview pane.
func ParseTab(value string) (Tab, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return TabPreview, nil
	case strings.ToLower(string(TabCode)):
		return TabCode, nil
	case strings.ToLower(string(TabPreview)):
		return TabPreview, nil
	}
	return "", fmt.Errorf(invalidParameterFormat, ParameterTab, value, ErrInvalidParameter)
}

// ParseRepository extracts owner and repository from a repository URL such as
// https://github.com/owner/repo or from a bare owner/repo pair.
func ParseRepository(identifier string) (string, string, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return "", "", &MissingConfigurationError{Parameter: ParameterRepository}
	}
	segments := strings.Split(trimmed, repositorySeparator)
	var owner, repo string
	if strings.Contains(trimmed, "://") {
		if len(segments) > repositoryNamePosition {
			owner = segments[repositoryOwnerPosition]
			repo = segments[repositoryNamePosition]
		}
	} else if len(segments) == 2 {
		owner = segments[0]
		repo = segments[1]
	}
	repo = strings.TrimSuffix(repo, ".git")
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf(invalidParameterFormat, ParameterRepository, identifier, ErrInvalidParameter)
	}
	return owner, repo, nil
}

// ParseParameters reads entry parameters from a query string.
func ParseParameters(values url.Values) (Parameters, error) {
	parameters := Parameters{
		RepositoryIdentifier: values.Get(ParameterRepository),
		PreviewURL:           strings.TrimSpace(values.Get(ParameterPreview)),
	}
	owner, repo, err := ParseRepository(parameters.RepositoryIdentifier)
	if err != nil {
		return Parameters{}, err
	}
	parameters.Owner = owner
	parameters.Repo = repo

	if rawHide := strings.TrimSpace(values.Get(ParameterHideToolbar)); rawHide != "" {
		hide, parseErr := parseHideToolbar(rawHide)
		if parseErr != nil {
			return Parameters{}, parseErr
		}
		parameters.HideToolbar = hide
	}

	tab, err := ParseTab(values.Get(ParameterTab))
	if err != nil {
		return Parameters{}, err
	}
	parameters.SelectedTab = tab
	return parameters, nil
}

func parseHideToolbar(value string) (bool, error) {
	hide, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf(invalidParameterFormat, ParameterHideToolbar, value, ErrInvalidParameter)
	}
	return hide, nil
}
