// Package types defines every cross‑package data structure used by the repoview CLI.
package types

import "encoding/xml"

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	CommandTree  = "tree"
	CommandOpen  = "open"
	CommandServe = "serve"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"
)

// EntryKind distinguishes directories from files in a remote listing.
type EntryKind string

const (
	EntryKindDirectory EntryKind = NodeTypeDirectory
	EntryKindFile      EntryKind = NodeTypeFile
)

// Entry is one record of a remote directory listing. Path is the full path
// from the repository root without a leading separator.
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Kind        EntryKind `json:"kind"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
}

// IsDirectory reports whether the entry is a directory.
func (entry Entry) IsDirectory() bool {
	return entry.Kind == EntryKindDirectory
}

// FileView is the outcome of opening a file. Content is empty for media files,
// which are displayed from DownloadURL directly.
type FileView struct {
	XMLName     xml.Name `json:"-" xml:"file"`
	Name        string   `json:"name" xml:"name"`
	Path        string   `json:"path" xml:"path"`
	DownloadURL string   `json:"downloadUrl,omitempty" xml:"downloadUrl,omitempty"`
	FileType    string   `json:"fileType,omitempty" xml:"fileType,omitempty"`
	Media       bool     `json:"media" xml:"media"`
	Content     string   `json:"content,omitempty" xml:"content,omitempty"`
	Size        string   `json:"size,omitempty" xml:"size,omitempty"`
	Tokens      int      `json:"tokens,omitempty" xml:"tokens,omitempty"`
	Model       string   `json:"model,omitempty" xml:"model,omitempty"`
}

// TreeOutputNode represents a node of a materialized tree returned by the tree command.
type TreeOutputNode struct {
	XMLName     xml.Name          `json:"-" xml:"node"`
	Path        string            `json:"path" xml:"path"`
	Name        string            `json:"name" xml:"name"`
	Type        string            `json:"type" xml:"type"`
	State       string            `json:"state,omitempty" xml:"state,omitempty"`
	FileType    string            `json:"fileType,omitempty" xml:"fileType,omitempty"`
	DownloadURL string            `json:"downloadUrl,omitempty" xml:"downloadUrl,omitempty"`
	Open        bool              `json:"open,omitempty" xml:"open,omitempty"`
	Children    []*TreeOutputNode `json:"children,omitempty" xml:"children>node,omitempty"`
}

// OutputSummary captures aggregate information about a rendered tree.
type OutputSummary struct {
	TotalDirectories int `json:"totalDirectories" xml:"totalDirectories"`
	TotalFiles       int `json:"totalFiles" xml:"totalFiles"`
}
