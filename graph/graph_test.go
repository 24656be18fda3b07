package graph

import (
	"testing"

	"github.com/awalterschulze/gographviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShow(t *testing.T) {
	build := NewNode("Exchange")
	build.AddField("partitioning", "Hash([k@0], 2)")
	probe := NewNode("Exchange")
	probe.AddField("partitioning", "Hash([x@0], 2)")

	root := NewNode("HashJoin")
	root.AddField("type", "LeftAnti")
	root.AddField("on", "[(k@0, x@0)]")
	root.AddChild("build", build)
	root.AddChild("probe", probe)

	g, err := Show(root)
	require.NoError(t, err)

	assert.Len(t, g.Nodes.Nodes, 3)
	assert.Contains(t, g.Nodes.Lookup, "HashJoin_0")
	assert.Contains(t, g.Nodes.Lookup, "Exchange_0")
	assert.Contains(t, g.Nodes.Lookup, "Exchange_1")
	assert.Equal(t, `"{{<f0> HashJoin}|{<type> type: LeftAnti|<on> on: [(k@0, x@0)]}|{<build> build|<probe> probe}}"`, g.Nodes.Lookup["HashJoin_0"].Attrs["label"])
	require.Len(t, g.Edges.Edges, 2)
	assert.Equal(t, "Exchange_0", g.Edges.Edges[0].Dst)

	// The rendered graph has to parse back.
	_, err = gographviz.ParseString(g.String())
	assert.NoError(t, err)
}

func TestShowEscapesLabels(t *testing.T) {
	node := NewNode("Filter")
	node.AddField("predicate", "x@1 >= 2 AND g@0 <> 'a|b'")

	g, err := Show(node)
	require.NoError(t, err)
	assert.Equal(t, `"{{<f0> Filter}|{<predicate> predicate: x@1 \>= 2 AND g@0 \<\> 'a\|b'}}"`, g.Nodes.Lookup["Filter_0"].Attrs["label"])
}
