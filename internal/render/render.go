// Package render converts opened files into display markup and caches it.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/cache"
	"github.com/temirov/repoview/internal/metrics"
	"github.com/temirov/repoview/internal/tree"
	"github.com/temirov/repoview/internal/types"
)

const (
	// DefaultStyle is the chroma style used for code.
	DefaultStyle = "github"

	imageTemplate = `<img src="%s" alt="%s" style="max-width: 100%%;">`
	videoTemplate = `<video controls style="max-width: 100%%;"><source src="%s" type="video/%s">Your browser does not support the video tag.</video>`
	audioTemplate = `<audio controls><source src="%s" type="audio/%s">Your browser does not support the audio tag.</audio>`
	headingFormat = "<h3>%s</h3>\n"

	markdownExtension     = "md"
	markdownLongExtension = "markdown"

	errorHighlightFormat = "highlight %s: %w"
	errorMarkdownFormat  = "render markdown %s: %w"
)

// Renderer produces markup for file views.
type Renderer struct {
	store     cache.Store
	logger    *zap.Logger
	markdown  goldmark.Markdown
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// New returns a Renderer caching markup in store. A nil store keeps markup in memory.
func New(store cache.Store, logger *zap.Logger) *Renderer {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		store:     store,
		logger:    logger,
		markdown:  newMarkdownRenderer(),
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.WithLineNumbers(true)),
		style:     styles.Get(DefaultStyle),
	}
}

// newMarkdownRenderer creates a configured goldmark renderer
func newMarkdownRenderer() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(DefaultStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// Render returns the markup for view, computing it once per owner, repository
// and path.
func (renderer *Renderer) Render(ctx context.Context, owner string, repo string, view types.FileView) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := cache.RenderedKey(owner, repo, view.Path)
	if markup, found := renderer.store.Get(key); found {
		metrics.RecordCacheLookup(metrics.KindRendered, true)
		return markup, nil
	}
	metrics.RecordCacheLookup(metrics.KindRendered, false)

	markup, err := renderer.markup(view)
	if err != nil {
		return "", err
	}
	renderer.store.Set(key, markup)
	renderer.logger.Debug("rendered file", zap.String("path", view.Path))
	return markup, nil
}

func (renderer *Renderer) markup(view types.FileView) (string, error) {
	fileExtension := tree.Extension(view.Name)
	source := html.EscapeString(view.DownloadURL)
	switch tree.MediaKind(view.Name) {
	case "image":
		return fmt.Sprintf(imageTemplate, source, html.EscapeString(view.Name)), nil
	case "video":
		return fmt.Sprintf(videoTemplate, source, fileExtension), nil
	case "audio":
		return fmt.Sprintf(audioTemplate, source, fileExtension), nil
	}
	if fileExtension == markdownExtension || fileExtension == markdownLongExtension {
		var buffer bytes.Buffer
		if err := renderer.markdown.Convert([]byte(view.Content), &buffer); err != nil {
			return "", fmt.Errorf(errorMarkdownFormat, view.Path, err)
		}
		return buffer.String(), nil
	}
	return renderer.highlight(view)
}

func (renderer *Renderer) highlight(view types.FileView) (string, error) {
	lexer := lexers.Match(view.Name)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	iterator, err := lexer.Tokenise(nil, strings.TrimLeft(view.Content, " \t\r\n"))
	if err != nil {
		return "", fmt.Errorf(errorHighlightFormat, view.Path, err)
	}
	var buffer bytes.Buffer
	buffer.WriteString(fmt.Sprintf(headingFormat, html.EscapeString(view.Name)))
	if err := renderer.formatter.Format(&buffer, renderer.style, iterator); err != nil {
		return "", fmt.Errorf(errorHighlightFormat, view.Path, err)
	}
	return buffer.String(), nil
}

// Stylesheet returns the CSS for the classes emitted by highlighted code.
func Stylesheet() (string, error) {
	var buffer bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true), chromahtml.WithLineNumbers(true))
	if err := formatter.WriteCSS(&buffer, styles.Get(DefaultStyle)); err != nil {
		return "", err
	}
	return buffer.String(), nil
}
