// Package navigator walks a materialized tree along a slash-separated path and
// opens the file at its end.
package navigator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/tree"
	"github.com/temirov/repoview/internal/types"
)

// DefaultOpenDelay is the pause between revealing the final directory and
// opening the file.
const DefaultOpenDelay = 300 * time.Millisecond

const (
	pathSeparator = "/"

	notFoundDirectoryFormat = "directory %q not found"
	notFoundFileFormat      = "file %q not found"
	errorNavigateFormat     = "navigate %s: %w"
)

// NotFoundError reports a path segment with no matching visible node.
type NotFoundError struct {
	Segment   string
	Directory bool
}

func (err *NotFoundError) Error() string {
	if err.Directory {
		return fmt.Sprintf(notFoundDirectoryFormat, err.Segment)
	}
	return fmt.Sprintf(notFoundFileFormat, err.Segment)
}

// Navigator opens a file by path, revealing each enclosing directory first.
type Navigator struct {
	openDelay time.Duration
	logger    *zap.Logger
}

// New returns a Navigator waiting openDelay before opening the file. A zero
// delay opens immediately.
func New(openDelay time.Duration, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if openDelay < 0 {
		openDelay = 0
	}
	return &Navigator{openDelay: openDelay, logger: logger}
}

// OpenDefaultPath reveals every directory segment of path in order and opens
// the final file segment. Each directory is fully materialized before the next
// segment is looked up, and matching considers direct children only.
func (navigator *Navigator) OpenDefaultPath(ctx context.Context, fileTree *tree.Tree, path string) (types.FileView, error) {
	trimmed := strings.Trim(path, pathSeparator)
	if trimmed == "" {
		return types.FileView{}, &NotFoundError{Segment: ""}
	}
	segments := strings.Split(trimmed, pathSeparator)
	current := fileTree.Root()
	if err := fileTree.Reveal(ctx, current); err != nil {
		return types.FileView{}, fmt.Errorf(errorNavigateFormat, path, err)
	}

	for _, segment := range segments[:len(segments)-1] {
		next := current.Child(segment)
		if next == nil || !next.IsDirectory() {
			navigator.logger.Warn("default path directory not found", zap.String("path", path), zap.String("segment", segment))
			return types.FileView{}, &NotFoundError{Segment: segment, Directory: true}
		}
		if err := fileTree.Reveal(ctx, next); err != nil {
			return types.FileView{}, fmt.Errorf(errorNavigateFormat, path, err)
		}
		current = next
	}

	fileName := segments[len(segments)-1]
	fileNode := current.Child(fileName)
	if fileNode == nil || fileNode.IsDirectory() {
		navigator.logger.Warn("default path file not found", zap.String("path", path), zap.String("segment", fileName))
		return types.FileView{}, &NotFoundError{Segment: fileName}
	}

	if err := navigator.wait(ctx); err != nil {
		return types.FileView{}, fmt.Errorf(errorNavigateFormat, path, err)
	}
	navigator.logger.Debug("opening default path", zap.String("path", fileNode.Path))
	return fileTree.OpenFile(ctx, fileNode)
}

func (navigator *Navigator) wait(ctx context.Context) error {
	if navigator.openDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(navigator.openDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
