package tree

import "strings"

// File type tags used for presentation.
const (
	FileTypeJavaScript = "js"
	FileTypeTypeScript = "ts"
	FileTypeHTML       = "html"
	FileTypeCSS        = "css"
	FileTypeSCSS       = "scss"
	FileTypeJSON       = "json"
	FileTypeMarkdown   = "md"
	FileTypeImage      = "img"
	FileTypePDF        = "pdf"
)

var fileTypeByExtension = map[string]string{
	"js":   FileTypeJavaScript,
	"ts":   FileTypeTypeScript,
	"html": FileTypeHTML,
	"css":  FileTypeCSS,
	"scss": FileTypeSCSS,
	"json": FileTypeJSON,
	"md":   FileTypeMarkdown,
	"jpg":  FileTypeImage,
	"jpeg": FileTypeImage,
	"png":  FileTypeImage,
	"gif":  FileTypeImage,
	"svg":  FileTypeImage,
	"pdf":  FileTypePDF,
}

// Media extensions are displayed from their download URL without fetching the body.
var (
	imageExtensions = map[string]struct{}{"jpg": {}, "jpeg": {}, "png": {}, "gif": {}}
	videoExtensions = map[string]struct{}{"mp4": {}, "webm": {}, "ogg": {}}
	audioExtensions = map[string]struct{}{"mp3": {}, "wav": {}}
)

// Extension returns the lowercased text after the final "." of name. A name
// without a dot is its own extension.
func Extension(name string) string {
	dotIndex := strings.LastIndex(name, ".")
	return strings.ToLower(name[dotIndex+1:])
}

// FileType returns the presentation tag for name, or "" when unrecognized.
func FileType(name string) string {
	return fileTypeByExtension[Extension(name)]
}

// MediaKind returns "image", "video" or "audio" for media file names and "" otherwise.
func MediaKind(name string) string {
	extension := Extension(name)
	if _, ok := imageExtensions[extension]; ok {
		return "image"
	}
	if _, ok := videoExtensions[extension]; ok {
		return "video"
	}
	if _, ok := audioExtensions[extension]; ok {
		return "audio"
	}
	return ""
}

// IsMedia reports whether name is displayed straight from its download URL.
func IsMedia(name string) bool {
	return MediaKind(name) != ""
}
