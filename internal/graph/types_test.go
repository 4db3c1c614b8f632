package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationOfEndpoints(t *testing.T) {
	tests := []struct {
		edge EdgeType
		src  NodeType
		dst  NodeType
	}{
		{EdgeWatches, NodeUser, NodeVideo},
		{EdgeLikes, NodeUser, NodeVideo},
		{EdgeCreatedBy, NodeVideo, NodeUser},
		{EdgeBelongsTo, NodeVideo, NodeCategory},
		{EdgeFollows, NodeUser, NodeUser},
		{EdgeInterestedIn, NodeUser, NodeCategory},
		{EdgeSimilarTo, NodeVideo, NodeVideo},
		{EdgeParentOf, NodeCategory, NodeParentCategory},
	}
	for _, tt := range tests {
		r := RelationOf(tt.edge)
		assert.Equal(t, tt.src, r.Src, "src of %s", tt.edge)
		assert.Equal(t, tt.dst, r.Dst, "dst of %s", tt.edge)
	}
}

func TestSameTypeRelations(t *testing.T) {
	assert.True(t, RelationOf(EdgeFollows).SameType())
	assert.True(t, RelationOf(EdgeSimilarTo).SameType())
	assert.False(t, RelationOf(EdgeWatches).SameType())
	assert.False(t, RelationOf(EdgeBelongsTo).SameType())
}

func TestLabelsAndIDFields(t *testing.T) {
	assert.Equal(t, "User", NodeUser.Label())
	assert.Equal(t, "user_id", NodeUser.IDField())
	assert.Equal(t, "ParentCategory", NodeParentCategory.Label())
	assert.Equal(t, "parent_category_id", NodeParentCategory.IDField())
}

func TestRelationsCoverEveryEdgeType(t *testing.T) {
	seen := make(map[EdgeType]bool)
	for _, r := range Relations() {
		seen[r.Edge] = true
	}
	assert.Len(t, seen, 8)
}
