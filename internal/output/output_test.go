package output_test

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/temirov/repoview/internal/output"
	"github.com/temirov/repoview/internal/types"
)

func sampleTree() *types.TreeOutputNode {
	return &types.TreeOutputNode{
		Name:  "viewer",
		Type:  types.NodeTypeDirectory,
		State: "expanded",
		Children: []*types.TreeOutputNode{
			{
				Path:  "src",
				Name:  "src",
				Type:  types.NodeTypeDirectory,
				State: "expanded",
				Children: []*types.TreeOutputNode{
					{Path: "src/app", Name: "app", Type: types.NodeTypeDirectory, State: "collapsed"},
					{Path: "src/main.ts", Name: "main.ts", Type: types.NodeTypeFile, FileType: "ts", Open: true},
				},
			},
			{Path: "test", Name: "test", Type: types.NodeTypeDirectory, State: "unexpanded"},
			{Path: "LICENSE", Name: "LICENSE", Type: types.NodeTypeFile},
		},
	}
}

// rawTreeExpected defines the expected raw rendering of sampleTree.
const rawTreeExpected = "viewer/\n" +
	"├── src/\n" +
	"│   ├── app/ (collapsed)\n" +
	"│   └── [ts] main.ts *\n" +
	"├── test/ (not loaded)\n" +
	"└── LICENSE\n"

// TestWriteTreeRaw verifies the box-drawing tree rendering.
func TestWriteTreeRaw(testingInstance *testing.T) {
	var buffer bytes.Buffer
	output.WriteTreeRaw(&buffer, sampleTree())
	if buffer.String() != rawTreeExpected {
		testingInstance.Errorf("unexpected output:\n%s", buffer.String())
	}
}

// TestRenderTreeRawWithSummary verifies the summary line follows the tree.
func TestRenderTreeRawWithSummary(testingInstance *testing.T) {
	var buffer bytes.Buffer
	summary := &types.OutputSummary{TotalDirectories: 3, TotalFiles: 1}
	if err := output.RenderTree(&buffer, types.FormatRaw, sampleTree(), summary); err != nil {
		testingInstance.Fatalf("RenderTree: %v", err)
	}
	if !strings.HasSuffix(buffer.String(), "\nSummary: 3 directories, 1 file\n") {
		testingInstance.Errorf("unexpected output:\n%s", buffer.String())
	}
}

// TestRenderTreeJSON verifies the tree and optional summary are encoded.
func TestRenderTreeJSON(testingInstance *testing.T) {
	plain, err := output.RenderTreeJSON(sampleTree(), nil)
	if err != nil {
		testingInstance.Fatalf("RenderTreeJSON: %v", err)
	}
	var decoded types.TreeOutputNode
	if err := json.Unmarshal([]byte(plain), &decoded); err != nil {
		testingInstance.Fatalf("decode: %v", err)
	}
	if decoded.Name != "viewer" || len(decoded.Children) != 3 || !decoded.Children[0].Children[1].Open {
		testingInstance.Errorf("unexpected decoded tree: %+v", decoded)
	}

	withSummary, err := output.RenderTreeJSON(sampleTree(), &types.OutputSummary{TotalDirectories: 3, TotalFiles: 2})
	if err != nil {
		testingInstance.Fatalf("RenderTreeJSON: %v", err)
	}
	if !strings.Contains(withSummary, `"totalDirectories": 3`) || !strings.Contains(withSummary, `"tree": {`) {
		testingInstance.Errorf("unexpected output: %s", withSummary)
	}
}

// TestRenderTreeXML verifies nested children are encoded under children elements.
func TestRenderTreeXML(testingInstance *testing.T) {
	rendered, err := output.RenderTreeXML(sampleTree(), nil)
	if err != nil {
		testingInstance.Fatalf("RenderTreeXML: %v", err)
	}
	if !strings.HasPrefix(rendered, xml.Header) {
		testingInstance.Errorf("expected xml header")
	}
	if !strings.Contains(rendered, "<children>") || !strings.Contains(rendered, "<path>src/main.ts</path>") {
		testingInstance.Errorf("unexpected output: %s", rendered)
	}
	withSummary, err := output.RenderTreeXML(sampleTree(), &types.OutputSummary{TotalFiles: 2})
	if err != nil {
		testingInstance.Fatalf("RenderTreeXML: %v", err)
	}
	if !strings.Contains(withSummary, "<result>") || !strings.Contains(withSummary, "<totalFiles>2</totalFiles>") {
		testingInstance.Errorf("unexpected output: %s", withSummary)
	}
}

// TestRenderFile verifies each file format.
func TestRenderFile(testingInstance *testing.T) {
	view := types.FileView{Name: "main.ts", Path: "src/main.ts", Content: "bootstrap();", Size: "12b", Tokens: 4, Model: "gpt-4o"}
	testCases := []struct {
		name     string
		format   string
		view     types.FileView
		expected []string
	}{
		{
			name:     "raw",
			format:   types.FormatRaw,
			view:     view,
			expected: []string{"File: src/main.ts\n", "Size: 12b\n", "Tokens: 4 (model: gpt-4o)\n", "bootstrap();\n", "End of file: src/main.ts\n"},
		},
		{
			name:     "raw media",
			format:   types.FormatRaw,
			view:     types.FileView{Name: "logo.png", Path: "logo.png", DownloadURL: "raw/logo.png", Media: true},
			expected: []string{"(media: raw/logo.png)\n"},
		},
		{name: "json", format: types.FormatJSON, view: view, expected: []string{`"path": "src/main.ts"`, `"tokens": 4`}},
		{name: "xml", format: types.FormatXML, view: view, expected: []string{"<file>", "<content>bootstrap();</content>"}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingInstance.Run(testCase.name, func(testingInstance *testing.T) {
			var buffer bytes.Buffer
			if err := output.RenderFile(&buffer, testCase.format, testCase.view); err != nil {
				testingInstance.Fatalf("RenderFile: %v", err)
			}
			for _, fragment := range testCase.expected {
				if !strings.Contains(buffer.String(), fragment) {
					testingInstance.Errorf("expected %q in %s", fragment, buffer.String())
				}
			}
		})
	}
}

// TestUnsupportedFormat verifies unknown formats are rejected.
func TestUnsupportedFormat(testingInstance *testing.T) {
	var buffer bytes.Buffer
	if err := output.RenderTree(&buffer, "toml", sampleTree(), nil); err == nil {
		testingInstance.Errorf("expected tree format error")
	}
	if err := output.RenderFile(&buffer, "toml", types.FileView{}); err == nil {
		testingInstance.Errorf("expected file format error")
	}
}

// TestFormatSummaryLine verifies pluralization.
func TestFormatSummaryLine(testingInstance *testing.T) {
	if line := output.FormatSummaryLine(&types.OutputSummary{TotalDirectories: 1, TotalFiles: 2}); line != "Summary: 1 directory, 2 files" {
		testingInstance.Errorf("unexpected line %q", line)
	}
	if line := output.FormatSummaryLine(nil); line != "Summary: 0 directories, 0 files" {
		testingInstance.Errorf("unexpected line %q", line)
	}
}
