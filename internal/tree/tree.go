// Package tree materializes a filtered, lazily expanded view of a remote
// repository listing.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/temirov/repoview/internal/ignore"
	"github.com/temirov/repoview/internal/metrics"
	"github.com/temirov/repoview/internal/types"
)

// State is the expansion state of a directory node.
type State string

const (
	StateUnexpanded State = "unexpanded"
	StateExpanded   State = "expanded"
	StateCollapsed  State = "collapsed"
)

const (
	pathSeparator = "/"

	expansionFetched = "fetched"
	expansionToggled = "toggled"
	expansionFailed  = "failed"

	errorExpandFormat = "expand %s: %w"
	errorOpenFormat   = "open %s: %w"
)

var (
	// ErrNotDirectory is returned when expanding a file node.
	ErrNotDirectory = errors.New("node is not a directory")
	// ErrNotFile is returned when opening a directory node.
	ErrNotFile = errors.New("node is not a file")
)

// Source lists directories and reads files of a remote repository.
type Source interface {
	ListDirectory(ctx context.Context, owner string, repo string, path string) ([]types.Entry, error)
	ReadFile(ctx context.Context, downloadURL string) (string, error)
}

// Node wraps one Entry with its expansion state and materialized children.
type Node struct {
	Entry    types.Entry
	Path     string
	FileType string

	mutex    sync.RWMutex
	state    State
	children []*Node
}

// IsDirectory reports whether the node is a directory.
func (node *Node) IsDirectory() bool {
	return node.Entry.IsDirectory()
}

// Name returns the display name.
func (node *Node) Name() string {
	return node.Entry.Name
}

// State returns the expansion state. Files report an empty state.
func (node *Node) State() State {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	return node.state
}

// Children returns a copy of the materialized children.
func (node *Node) Children() []*Node {
	node.mutex.RLock()
	defer node.mutex.RUnlock()
	return append([]*Node(nil), node.children...)
}

// Child returns the direct child with the given display name.
func (node *Node) Child(name string) *Node {
	for _, child := range node.Children() {
		if child.Name() == name {
			return child
		}
	}
	return nil
}

// Tree is a materialized view of one repository.
type Tree struct {
	source Source
	owner  string
	repo   string
	rules  ignore.RuleSet
	logger *zap.Logger

	root              *Node
	materializedNodes atomic.Int64

	collatorMutex sync.Mutex
	collator      *collate.Collator

	openMutex sync.RWMutex
	openPath  string
}

// New returns a Tree whose root is not yet loaded.
func New(source Source, owner string, repo string, rules ignore.RuleSet, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tree{
		source:   source,
		owner:    owner,
		repo:     repo,
		rules:    rules,
		logger:   logger,
		root:     &Node{Entry: types.Entry{Kind: types.EntryKindDirectory}, state: StateUnexpanded},
		collator: collate.New(language.Und),
	}
}

// Owner returns the repository owner.
func (tree *Tree) Owner() string {
	return tree.owner
}

// Repo returns the repository name.
func (tree *Tree) Repo() string {
	return tree.repo
}

// Root returns the synthetic root directory node.
func (tree *Tree) Root() *Node {
	return tree.root
}

// Load lists and materializes the repository root. Loading an already
// expanded root is a no-op.
func (tree *Tree) Load(ctx context.Context) error {
	return tree.Reveal(ctx, tree.root)
}

// SortEntries returns entries ordered directories first, then by name using
// locale-aware collation. The input slice is not modified.
func (tree *Tree) SortEntries(entries []types.Entry) []types.Entry {
	sorted := append([]types.Entry(nil), entries...)
	tree.collatorMutex.Lock()
	defer tree.collatorMutex.Unlock()
	sort.SliceStable(sorted, func(left, right int) bool {
		leftDirectory := sorted[left].IsDirectory()
		rightDirectory := sorted[right].IsDirectory()
		if leftDirectory != rightDirectory {
			return leftDirectory
		}
		return tree.collator.CompareString(sorted[left].Name, sorted[right].Name) < 0
	})
	return sorted
}

// Materialize builds nodes for the entries of the directory at parentPath,
// sorted and with hidden entries dropped.
func (tree *Tree) Materialize(entries []types.Entry, parentPath string) []*Node {
	sorted := tree.SortEntries(entries)
	nodes := make([]*Node, 0, len(sorted))
	for _, entry := range sorted {
		itemPath := JoinPath(parentPath, entry.Name)
		if tree.rules.Hidden(itemPath) {
			tree.logger.Debug("entry hidden", zap.String("path", itemPath))
			continue
		}
		node := &Node{Entry: entry, Path: itemPath}
		if entry.IsDirectory() {
			node.state = StateUnexpanded
		} else {
			node.FileType = FileType(entry.Name)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Expand handles a user toggle of a directory. The first call fetches and
// materializes the children; later calls flip between expanded and collapsed
// without fetching. No lock is held while fetching, so two concurrent first
// expansions issue two fetches and the later result wins.
func (tree *Tree) Expand(ctx context.Context, node *Node) (State, error) {
	if !node.IsDirectory() {
		return "", fmt.Errorf(errorExpandFormat, node.Path, ErrNotDirectory)
	}
	node.mutex.Lock()
	switch node.state {
	case StateExpanded:
		node.state = StateCollapsed
		node.mutex.Unlock()
		metrics.RecordExpansion(expansionToggled)
		return StateCollapsed, nil
	case StateCollapsed:
		node.state = StateExpanded
		node.mutex.Unlock()
		metrics.RecordExpansion(expansionToggled)
		return StateExpanded, nil
	}
	node.mutex.Unlock()
	return tree.fetchChildren(ctx, node)
}

// Reveal makes a directory's children visible: it expands an unexpanded node,
// re-opens a collapsed one and leaves an expanded one alone.
func (tree *Tree) Reveal(ctx context.Context, node *Node) error {
	if !node.IsDirectory() {
		return fmt.Errorf(errorExpandFormat, node.Path, ErrNotDirectory)
	}
	node.mutex.Lock()
	switch node.state {
	case StateExpanded:
		node.mutex.Unlock()
		return nil
	case StateCollapsed:
		node.state = StateExpanded
		node.mutex.Unlock()
		metrics.RecordExpansion(expansionToggled)
		return nil
	}
	node.mutex.Unlock()
	_, err := tree.fetchChildren(ctx, node)
	return err
}

// fetchChildren lists and materializes the children of node without holding
// its lock across the fetch. A node another caller expanded meanwhile keeps
// its state; its children are replaced by the later listing.
func (tree *Tree) fetchChildren(ctx context.Context, node *Node) (State, error) {
	entries, listErr := tree.source.ListDirectory(ctx, tree.owner, tree.repo, node.Path)
	if listErr != nil {
		metrics.RecordExpansion(expansionFailed)
		return StateUnexpanded, fmt.Errorf(errorExpandFormat, displayPath(node.Path), listErr)
	}
	children := tree.Materialize(entries, node.Path)

	node.mutex.Lock()
	replaced := len(node.children)
	node.children = children
	if node.state == StateUnexpanded {
		node.state = StateExpanded
	}
	state := node.state
	node.mutex.Unlock()

	count := tree.materializedNodes.Add(int64(len(children) - replaced))
	metrics.SetMaterializedNodes(tree.owner+"/"+tree.repo, int(count))
	metrics.RecordExpansion(expansionFetched)
	return state, nil
}

// OpenFile marks node as the open file and returns its view. Media files carry
// only their download URL; other files are read through the source.
func (tree *Tree) OpenFile(ctx context.Context, node *Node) (types.FileView, error) {
	if node.IsDirectory() {
		return types.FileView{}, fmt.Errorf(errorOpenFormat, node.Path, ErrNotFile)
	}
	tree.openMutex.Lock()
	tree.openPath = node.Path
	tree.openMutex.Unlock()

	view := types.FileView{
		Name:        node.Name(),
		Path:        node.Path,
		DownloadURL: node.Entry.DownloadURL,
		FileType:    node.FileType,
		Media:       IsMedia(node.Name()),
	}
	if view.Media {
		return view, nil
	}
	content, readErr := tree.source.ReadFile(ctx, node.Entry.DownloadURL)
	if readErr != nil {
		return types.FileView{}, fmt.Errorf(errorOpenFormat, node.Path, readErr)
	}
	view.Content = content
	return view, nil
}

// OpenPath returns the path of the file currently open, or "".
func (tree *Tree) OpenPath() string {
	tree.openMutex.RLock()
	defer tree.openMutex.RUnlock()
	return tree.openPath
}

// Find returns the materialized node at path, or nil. The empty path is the root.
func (tree *Tree) Find(path string) *Node {
	current := tree.root
	trimmed := strings.Trim(path, pathSeparator)
	if trimmed == "" {
		return current
	}
	for _, segment := range strings.Split(trimmed, pathSeparator) {
		current = current.Child(segment)
		if current == nil {
			return nil
		}
	}
	return current
}

// VisibleNodes returns the number of materialized nodes attached to the tree.
// A listing fetched twice replaces the earlier children instead of adding to them.
func (tree *Tree) VisibleNodes() int {
	return int(tree.materializedNodes.Load())
}

// JoinPath appends name to parentPath; root entries have no prefix.
func JoinPath(parentPath string, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + pathSeparator + name
}

func displayPath(path string) string {
	if path == "" {
		return pathSeparator
	}
	return path
}
