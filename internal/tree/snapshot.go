package tree

import "github.com/temirov/repoview/internal/types"

// Snapshot converts the tree into output nodes. Children are included only for
// expanded directories, mirroring what a viewer displays.
func (tree *Tree) Snapshot() *types.TreeOutputNode {
	rootNode := &types.TreeOutputNode{
		Path:  "",
		Name:  tree.repo,
		Type:  types.NodeTypeDirectory,
		State: string(tree.root.State()),
	}
	openPath := tree.OpenPath()
	if tree.root.State() == StateExpanded {
		rootNode.Children = snapshotChildren(tree.root.Children(), openPath)
	}
	return rootNode
}

func snapshotChildren(nodes []*Node, openPath string) []*types.TreeOutputNode {
	outputs := make([]*types.TreeOutputNode, 0, len(nodes))
	for _, node := range nodes {
		output := &types.TreeOutputNode{
			Path:     node.Path,
			Name:     node.Name(),
			FileType: node.FileType,
		}
		if node.IsDirectory() {
			output.Type = types.NodeTypeDirectory
			state := node.State()
			output.State = string(state)
			if state == StateExpanded {
				output.Children = snapshotChildren(node.Children(), openPath)
			}
		} else {
			output.Type = types.NodeTypeFile
			output.DownloadURL = node.Entry.DownloadURL
			output.Open = node.Path == openPath
		}
		outputs = append(outputs, output)
	}
	return outputs
}

// Summarize counts the directories and files of a snapshot, excluding the root.
func Summarize(root *types.TreeOutputNode) types.OutputSummary {
	var summary types.OutputSummary
	var walk func(nodes []*types.TreeOutputNode)
	walk = func(nodes []*types.TreeOutputNode) {
		for _, node := range nodes {
			if node.Type == types.NodeTypeDirectory {
				summary.TotalDirectories++
				walk(node.Children)
				continue
			}
			summary.TotalFiles++
		}
	}
	if root != nil {
		walk(root.Children)
	}
	return summary
}
