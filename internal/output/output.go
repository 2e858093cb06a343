package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/temirov/repoview/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	separatorLine = "----------------------------------------"

	xmlHeader = xml.Header

	directorySuffix   = "/"
	openFileMarker    = " *"
	collapsedMarker   = " (collapsed)"
	unexpandedMarker  = " (not loaded)"
	fileTypeFormat    = "[%s] "
	mediaContentLabel = "(media: %s)"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	stateCollapsed  = "collapsed"
	stateUnexpanded = "unexpanded"

	errorUnsupportedFormat = "unsupported output format %q"
)

type treeDocument struct {
	XMLName xml.Name              `json:"-" xml:"result"`
	Tree    *types.TreeOutputNode `json:"tree" xml:"node"`
	Summary *types.OutputSummary  `json:"summary,omitempty" xml:"summary,omitempty"`
}

// RenderTree writes the tree in the requested format. A non-nil summary is
// appended to the output.
func RenderTree(writer io.Writer, format string, root *types.TreeOutputNode, summary *types.OutputSummary) error {
	switch format {
	case types.FormatRaw, "":
		WriteTreeRaw(writer, root)
		if summary != nil {
			fmt.Fprintln(writer)
			fmt.Fprintln(writer, FormatSummaryLine(summary))
		}
		return nil
	case types.FormatJSON:
		rendered, err := RenderTreeJSON(root, summary)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(writer, rendered)
		return err
	case types.FormatXML:
		rendered, err := RenderTreeXML(root, summary)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(writer, rendered)
		return err
	}
	return fmt.Errorf(errorUnsupportedFormat, format)
}

// RenderTreeJSON marshals the tree, wrapping it with the summary when one is given.
func RenderTreeJSON(root *types.TreeOutputNode, summary *types.OutputSummary) (string, error) {
	var payload interface{} = root
	if summary != nil {
		payload = treeDocument{Tree: root, Summary: summary}
	}
	encoded, jsonEncodeError := json.MarshalIndent(payload, indentPrefix, indentSpacer)
	return string(encoded), jsonEncodeError
}

// RenderTreeXML marshals the tree as an XML document.
func RenderTreeXML(root *types.TreeOutputNode, summary *types.OutputSummary) (string, error) {
	var payload interface{} = root
	if summary != nil {
		payload = treeDocument{Tree: root, Summary: summary}
	}
	encoded, xmlMarshalError := xml.MarshalIndent(payload, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return "", xmlMarshalError
	}
	return xmlHeader + string(encoded), nil
}

// WriteTreeRaw renders a directory tree to the provided writer.
func WriteTreeRaw(writer io.Writer, node *types.TreeOutputNode) {
	if node == nil {
		return
	}
	renderTreeNode(writer, node, "", true, true)
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

func renderTreeNode(writer io.Writer, node *types.TreeOutputNode, prefix string, isRoot bool, isLast bool) {
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	if node.Type == types.NodeTypeFile {
		tag := ""
		if node.FileType != "" {
			tag = fmt.Sprintf(fileTypeFormat, node.FileType)
		}
		marker := ""
		if node.Open {
			marker = openFileMarker
		}
		fmt.Fprintf(writer, "%s%s%s%s\n", linePrefix, tag, node.Name, marker)
		return
	}
	marker := ""
	switch node.State {
	case stateCollapsed:
		marker = collapsedMarker
	case stateUnexpanded:
		marker = unexpandedMarker
	}
	fmt.Fprintf(writer, "%s%s%s%s\n", linePrefix, node.Name, directorySuffix, marker)
	for index, child := range node.Children {
		if child == nil {
			continue
		}
		renderTreeNode(writer, child, childPrefix, false, index == len(node.Children)-1)
	}
}

// FormatSummaryLine formats an OutputSummary into the raw summary line.
func FormatSummaryLine(summary *types.OutputSummary) string {
	if summary == nil {
		summary = &types.OutputSummary{}
	}
	directoryLabel := "directories"
	if summary.TotalDirectories == 1 {
		directoryLabel = "directory"
	}
	fileLabel := "files"
	if summary.TotalFiles == 1 {
		fileLabel = "file"
	}
	return fmt.Sprintf("Summary: %d %s, %d %s", summary.TotalDirectories, directoryLabel, summary.TotalFiles, fileLabel)
}

// RenderFile writes an opened file in the requested format.
func RenderFile(writer io.Writer, format string, view types.FileView) error {
	switch format {
	case types.FormatRaw, "":
		WriteFileRaw(writer, view)
		return nil
	case types.FormatJSON:
		encoded, err := json.MarshalIndent(view, indentPrefix, indentSpacer)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(writer, string(encoded))
		return err
	case types.FormatXML:
		encoded, err := xml.MarshalIndent(view, indentPrefix, indentSpacer)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(writer, xmlHeader+string(encoded))
		return err
	}
	return fmt.Errorf(errorUnsupportedFormat, format)
}

// WriteFileRaw renders a single opened file to the provided writer.
func WriteFileRaw(writer io.Writer, view types.FileView) {
	fmt.Fprintf(writer, "File: %s\n", view.Path)
	if view.Size != "" {
		fmt.Fprintf(writer, "Size: %s\n", view.Size)
	}
	if view.Tokens > 0 {
		fmt.Fprintf(writer, "Tokens: %d (model: %s)\n", view.Tokens, view.Model)
	}
	if view.Media {
		fmt.Fprintf(writer, mediaContentLabel+"\n", view.DownloadURL)
	} else {
		fmt.Fprintln(writer, view.Content)
	}
	fmt.Fprintf(writer, "End of file: %s\n", view.Path)
	fmt.Fprintln(writer, separatorLine)
}
