package tree

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"sync"
	"testing"

	"github.com/temirov/repoview/internal/ignore"
	"github.com/temirov/repoview/internal/types"
)

type fakeSource struct {
	mutex     sync.Mutex
	listings  map[string][]types.Entry
	files     map[string]string
	listCalls []string
	readCalls []string
	listGate  chan struct{}
}

func (source *fakeSource) ListDirectory(ctx context.Context, owner string, repo string, path string) ([]types.Entry, error) {
	source.mutex.Lock()
	source.listCalls = append(source.listCalls, path)
	gate := source.listGate
	source.mutex.Unlock()
	if gate != nil {
		<-gate
	}
	entries, found := source.listings[path]
	if !found {
		return nil, errors.New("no listing for " + path)
	}
	return entries, nil
}

func (source *fakeSource) ReadFile(ctx context.Context, downloadURL string) (string, error) {
	source.mutex.Lock()
	source.readCalls = append(source.readCalls, downloadURL)
	source.mutex.Unlock()
	content, found := source.files[downloadURL]
	if !found {
		return "", errors.New("no file at " + downloadURL)
	}
	return content, nil
}

func (source *fakeSource) listed() []string {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	return append([]string(nil), source.listCalls...)
}

func directory(name string) types.Entry {
	return types.Entry{Name: name, Kind: types.EntryKindDirectory}
}

func file(name string) types.Entry {
	return types.Entry{Name: name, Kind: types.EntryKindFile, DownloadURL: "raw/" + name}
}

func newRules(t *testing.T, patterns ...string) ignore.RuleSet {
	t.Helper()
	rules, err := ignore.NewRuleSet(patterns)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	return rules
}

func names(nodes []*Node) []string {
	result := make([]string, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, node.Name())
	}
	return result
}

func TestMaterializeSortsDirectoriesFirst(t *testing.T) {
	tree := New(&fakeSource{}, "octo", "viewer", ignore.RuleSet{}, nil)
	nodes := tree.Materialize([]types.Entry{file("b.txt"), directory("a")}, "")
	if !reflect.DeepEqual(names(nodes), []string{"a", "b.txt"}) {
		t.Fatalf("unexpected order %v", names(nodes))
	}
	if nodes[0].State() != StateUnexpanded {
		t.Fatalf("directories start unexpanded, got %q", nodes[0].State())
	}
	if nodes[1].State() != "" {
		t.Fatalf("files carry no expansion state")
	}
}

func TestSortEntriesIsIdempotentAndKindStable(t *testing.T) {
	tree := New(&fakeSource{}, "octo", "viewer", ignore.RuleSet{}, nil)
	entries := []types.Entry{
		file("zeta.go"), directory("src"), file("Alpha.md"), directory("Docs"),
		file("alpha.go"), directory("_build"), file("0001.sql"), directory("zz"),
	}
	once := tree.SortEntries(entries)
	twice := tree.SortEntries(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("sort is not idempotent: %v vs %v", once, twice)
	}
	seenFile := false
	for _, entry := range once {
		if entry.IsDirectory() && seenFile {
			t.Fatalf("directory %s sorted after a file: %v", entry.Name, once)
		}
		if !entry.IsDirectory() {
			seenFile = true
		}
	}
	if entries[0].Name != "zeta.go" {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestSortEntriesUsesCollation(t *testing.T) {
	tree := New(&fakeSource{}, "octo", "viewer", ignore.RuleSet{}, nil)
	sorted := tree.SortEntries([]types.Entry{file("b.go"), file("B.md"), file("a.go")})
	actual := []string{sorted[0].Name, sorted[1].Name, sorted[2].Name}
	if !reflect.DeepEqual(actual, []string{"a.go", "b.go", "B.md"}) {
		t.Fatalf("expected case-insensitive primary ordering, got %v", actual)
	}
}

func TestMaterializeAppliesRulesAndFileTypes(t *testing.T) {
	tree := New(&fakeSource{}, "octo", "viewer", newRules(t, "*.spec.ts", ".vscode"), nil)
	nodes := tree.Materialize([]types.Entry{
		file("app.component.ts"), file("app.component.spec.ts"), file("foo.spec.ts.bak"), directory(".vscode"), file("logo.PNG"),
	}, "src/app")
	if !reflect.DeepEqual(names(nodes), []string{"app.component.ts", "foo.spec.ts.bak", "logo.PNG"}) {
		t.Fatalf("unexpected visible nodes %v", names(nodes))
	}
	if nodes[0].Path != "src/app/app.component.ts" {
		t.Fatalf("unexpected path %q", nodes[0].Path)
	}
	if nodes[0].FileType != FileTypeTypeScript || nodes[1].FileType != "" || nodes[2].FileType != FileTypeImage {
		t.Fatalf("unexpected file types: %q %q %q", nodes[0].FileType, nodes[1].FileType, nodes[2].FileType)
	}
}

func TestExpandFetchesOnceThenToggles(t *testing.T) {
	source := &fakeSource{listings: map[string][]types.Entry{
		"":    {directory("src")},
		"src": {file("main.go")},
	}}
	tree := New(source, "octo", "viewer", ignore.RuleSet{}, nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srcNode := tree.Find("src")
	if srcNode == nil {
		t.Fatalf("expected src node")
	}

	expectedStates := []State{StateExpanded, StateCollapsed, StateExpanded, StateCollapsed}
	for _, expected := range expectedStates {
		state, err := tree.Expand(context.Background(), srcNode)
		if err != nil {
			t.Fatalf("Expand: %v", err)
		}
		if state != expected || srcNode.State() != expected {
			t.Fatalf("expected %s, got %s", expected, state)
		}
	}
	if !reflect.DeepEqual(source.listed(), []string{"", "src"}) {
		t.Fatalf("expected single fetch per directory, got %v", source.listed())
	}
	if tree.Find("src/main.go") == nil {
		t.Fatalf("expected collapsed children to stay materialized")
	}
}

func TestHiddenDirectoriesAreNeverFetched(t *testing.T) {
	source := &fakeSource{listings: map[string][]types.Entry{
		"":     {directory("test"), directory("src")},
		"test": {directory("unit"), file("helper.js")},
		"src":  {file("index.js")},
	}}
	tree := New(source, "octo", "viewer", newRules(t, "test/*"), nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	testNode := tree.Find("test")
	if testNode == nil {
		t.Fatalf("the test directory itself is not matched by test/*")
	}
	if _, err := tree.Expand(context.Background(), testNode); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(testNode.Children()) != 0 {
		t.Fatalf("expected every test/ entry hidden, got %v", names(testNode.Children()))
	}
	for _, listed := range source.listed() {
		if listed == "test/unit" {
			t.Fatalf("hidden directory was fetched")
		}
	}
}

func TestExpandFailureLeavesNodeUnexpanded(t *testing.T) {
	source := &fakeSource{listings: map[string][]types.Entry{"": {directory("broken")}}}
	tree := New(source, "octo", "viewer", ignore.RuleSet{}, nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	broken := tree.Find("broken")
	state, err := tree.Expand(context.Background(), broken)
	if err == nil {
		t.Fatalf("expected error")
	}
	if state != StateUnexpanded || broken.State() != StateUnexpanded {
		t.Fatalf("expected node to stay unexpanded")
	}
	if _, err := tree.Expand(context.Background(), tree.Materialize([]types.Entry{file("x")}, "")[0]); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory, got %v", err)
	}
}

func TestConcurrentFirstExpansionsFetchTwice(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{listings: map[string][]types.Entry{
		"":    {directory("src")},
		"src": {file("main.go")},
	}}
	tree := New(source, "octo", "viewer", ignore.RuleSet{}, nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srcNode := tree.Find("src")

	source.mutex.Lock()
	source.listGate = gate
	source.mutex.Unlock()

	var waitGroup sync.WaitGroup
	for attempt := 0; attempt < 2; attempt++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, err := tree.Expand(context.Background(), srcNode); err != nil {
				t.Errorf("Expand: %v", err)
			}
		}()
	}
	for len(source.listed()) < 3 {
		runtime.Gosched()
	}
	close(gate)
	waitGroup.Wait()

	if !reflect.DeepEqual(source.listed(), []string{"", "src", "src"}) {
		t.Fatalf("expected duplicated fetch, got %v", source.listed())
	}
	if srcNode.State() != StateExpanded || len(srcNode.Children()) != 1 {
		t.Fatalf("expected expanded node with one child")
	}
	if tree.VisibleNodes() != 2 {
		t.Fatalf("expected duplicated listing to replace children, got %d nodes", tree.VisibleNodes())
	}
}

func TestRevealDuringFirstExpansionKeepsNodeExpanded(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{listings: map[string][]types.Entry{
		"":    {directory("src")},
		"src": {file("main.go"), file("util.go")},
	}}
	tree := New(source, "octo", "viewer", ignore.RuleSet{}, nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srcNode := tree.Find("src")

	source.mutex.Lock()
	source.listGate = gate
	source.mutex.Unlock()

	var waitGroup sync.WaitGroup
	waitGroup.Add(2)
	go func() {
		defer waitGroup.Done()
		if _, err := tree.Expand(context.Background(), srcNode); err != nil {
			t.Errorf("Expand: %v", err)
		}
	}()
	go func() {
		defer waitGroup.Done()
		if err := tree.Reveal(context.Background(), srcNode); err != nil {
			t.Errorf("Reveal: %v", err)
		}
	}()
	for len(source.listed()) < 3 {
		runtime.Gosched()
	}
	close(gate)
	waitGroup.Wait()

	if srcNode.State() != StateExpanded {
		t.Fatalf("expected expanded node, got %s", srcNode.State())
	}
	if tree.VisibleNodes() != 3 {
		t.Fatalf("expected 3 materialized nodes, got %d", tree.VisibleNodes())
	}
}

func TestRevealReopensWithoutFetching(t *testing.T) {
	source := &fakeSource{listings: map[string][]types.Entry{
		"":    {directory("src")},
		"src": {file("main.go")},
	}}
	tree := New(source, "octo", "viewer", ignore.RuleSet{}, nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srcNode := tree.Find("src")

	steps := []struct {
		name     string
		action   func() error
		expected State
	}{
		{name: "reveal fetches", action: func() error { return tree.Reveal(context.Background(), srcNode) }, expected: StateExpanded},
		{name: "reveal keeps expanded", action: func() error { return tree.Reveal(context.Background(), srcNode) }, expected: StateExpanded},
		{name: "toggle collapses", action: func() error { _, err := tree.Expand(context.Background(), srcNode); return err }, expected: StateCollapsed},
		{name: "reveal reopens", action: func() error { return tree.Reveal(context.Background(), srcNode) }, expected: StateExpanded},
	}
	for _, step := range steps {
		if err := step.action(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if srcNode.State() != step.expected {
			t.Fatalf("%s: expected %s, got %s", step.name, step.expected, srcNode.State())
		}
	}
	if !reflect.DeepEqual(source.listed(), []string{"", "src"}) {
		t.Fatalf("expected a single src listing, got %v", source.listed())
	}
	if _, err := tree.Expand(context.Background(), tree.Find("src/main.go")); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory, got %v", err)
	}
	if err := tree.Reveal(context.Background(), tree.Find("src/main.go")); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory from Reveal, got %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	source := &fakeSource{
		listings: map[string][]types.Entry{"": {file("main.go"), file("logo.png"), file("intro.mp4"), directory("src")}},
		files:    map[string]string{"raw/main.go": "package main"},
	}
	tree := New(source, "octo", "viewer", ignore.RuleSet{}, nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	view, err := tree.OpenFile(context.Background(), tree.Find("main.go"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if view.Content != "package main" || view.Media {
		t.Fatalf("unexpected view %+v", view)
	}
	if tree.OpenPath() != "main.go" {
		t.Fatalf("expected main.go open")
	}

	for _, mediaName := range []string{"logo.png", "intro.mp4"} {
		mediaView, mediaErr := tree.OpenFile(context.Background(), tree.Find(mediaName))
		if mediaErr != nil {
			t.Fatalf("OpenFile(%s): %v", mediaName, mediaErr)
		}
		if !mediaView.Media || mediaView.Content != "" || mediaView.DownloadURL != "raw/"+mediaName {
			t.Fatalf("unexpected media view %+v", mediaView)
		}
		if tree.OpenPath() != mediaName {
			t.Fatalf("expected a single open file %s, got %s", mediaName, tree.OpenPath())
		}
	}
	if len(source.readCalls) != 1 {
		t.Fatalf("media files must not be fetched, reads: %v", source.readCalls)
	}
	if _, err := tree.OpenFile(context.Background(), tree.Find("src")); !errors.Is(err, ErrNotFile) {
		t.Fatalf("expected ErrNotFile, got %v", err)
	}
}

func TestSnapshotIncludesOnlyExpandedChildren(t *testing.T) {
	source := &fakeSource{listings: map[string][]types.Entry{
		"":    {directory("src"), directory("docs"), file("README.md")},
		"src": {file("main.go")},
	}}
	tree := New(source, "octo", "viewer", ignore.RuleSet{}, nil)
	if err := tree.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := tree.Expand(context.Background(), tree.Find("src")); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	snapshot := tree.Snapshot()
	if snapshot.Name != "viewer" || len(snapshot.Children) != 3 {
		t.Fatalf("unexpected root snapshot %+v", snapshot)
	}
	docs := snapshot.Children[0]
	src := snapshot.Children[1]
	if docs.Name != "docs" || docs.State != string(StateUnexpanded) || len(docs.Children) != 0 {
		t.Fatalf("unexpected docs snapshot %+v", docs)
	}
	if src.Name != "src" || len(src.Children) != 1 || src.Children[0].Path != "src/main.go" {
		t.Fatalf("unexpected src snapshot %+v", src)
	}
	summary := Summarize(snapshot)
	if summary.TotalDirectories != 2 || summary.TotalFiles != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestFileTypeAndMedia(t *testing.T) {
	testCases := []struct {
		name     string
		fileType string
		media    string
	}{
		{name: "index.JS", fileType: FileTypeJavaScript},
		{name: "styles.scss", fileType: FileTypeSCSS},
		{name: "photo.jpeg", fileType: FileTypeImage, media: "image"},
		{name: "icon.svg", fileType: FileTypeImage},
		{name: "clip.webm", media: "video"},
		{name: "song.OGG", media: "video"},
		{name: "voice.wav", media: "audio"},
		{name: "Makefile"},
		{name: "archive.tar.gz"},
	}
	for _, testCase := range testCases {
		if actual := FileType(testCase.name); actual != testCase.fileType {
			t.Fatalf("FileType(%q) = %q, want %q", testCase.name, actual, testCase.fileType)
		}
		if actual := MediaKind(testCase.name); actual != testCase.media {
			t.Fatalf("MediaKind(%q) = %q, want %q", testCase.name, actual, testCase.media)
		}
	}
}
