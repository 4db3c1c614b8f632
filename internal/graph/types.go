// Package graph defines the closed set of node and edge types the engine
// understands, and the snapshot representation used for training. External
// ids are the only durable identity; the dense indices inside a Snapshot
// are valid for that snapshot only and must never be persisted on nodes or
// compared across snapshots.
package graph

import "fmt"

type NodeType string

const (
	NodeUser           NodeType = "user"
	NodeVideo          NodeType = "video"
	NodeCategory       NodeType = "category"
	NodeParentCategory NodeType = "parent_category"
)

// NodeTypes lists every node type in loading order.
func NodeTypes() []NodeType {
	return []NodeType{NodeUser, NodeVideo, NodeCategory, NodeParentCategory}
}

// Label returns the graph-store label for the node type.
func (t NodeType) Label() string {
	switch t {
	case NodeUser:
		return "User"
	case NodeVideo:
		return "Video"
	case NodeCategory:
		return "Category"
	case NodeParentCategory:
		return "ParentCategory"
	}
	panic(fmt.Sprintf("unknown node type %q", string(t)))
}

// IDField returns the unique id property for the node type.
func (t NodeType) IDField() string {
	switch t {
	case NodeUser:
		return "user_id"
	case NodeVideo:
		return "video_id"
	case NodeCategory:
		return "category_id"
	case NodeParentCategory:
		return "parent_category_id"
	}
	panic(fmt.Sprintf("unknown node type %q", string(t)))
}

type EdgeType string

const (
	EdgeWatches      EdgeType = "watches"
	EdgeLikes        EdgeType = "likes"
	EdgeCreatedBy    EdgeType = "created_by"
	EdgeBelongsTo    EdgeType = "belongs_to"
	EdgeFollows      EdgeType = "follows"
	EdgeInterestedIn EdgeType = "interested_in"
	EdgeSimilarTo    EdgeType = "similar_to"
	EdgeParentOf     EdgeType = "parent_of"
)

// Relation is an edge type together with its fixed endpoint node types.
// Invalid (source, edge, destination) combinations cannot be constructed:
// every edge type maps to exactly one relation.
type Relation struct {
	Src  NodeType
	Edge EdgeType
	Dst  NodeType
}

func (r Relation) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", r.Src, r.Edge, r.Dst)
}

// SameType reports whether source and destination node types match.
// Graph convolution only message-passes over same-type relations.
func (r Relation) SameType() bool {
	return r.Src == r.Dst
}

// RelationOf returns the single relation an edge type participates in.
func RelationOf(e EdgeType) Relation {
	switch e {
	case EdgeWatches:
		return Relation{NodeUser, EdgeWatches, NodeVideo}
	case EdgeLikes:
		return Relation{NodeUser, EdgeLikes, NodeVideo}
	case EdgeCreatedBy:
		return Relation{NodeVideo, EdgeCreatedBy, NodeUser}
	case EdgeBelongsTo:
		return Relation{NodeVideo, EdgeBelongsTo, NodeCategory}
	case EdgeFollows:
		return Relation{NodeUser, EdgeFollows, NodeUser}
	case EdgeInterestedIn:
		return Relation{NodeUser, EdgeInterestedIn, NodeCategory}
	case EdgeSimilarTo:
		return Relation{NodeVideo, EdgeSimilarTo, NodeVideo}
	case EdgeParentOf:
		return Relation{NodeCategory, EdgeParentOf, NodeParentCategory}
	}
	panic(fmt.Sprintf("unknown edge type %q", string(e)))
}

// Relations lists every relation in loading order.
func Relations() []Relation {
	types := []EdgeType{
		EdgeWatches, EdgeLikes, EdgeBelongsTo, EdgeCreatedBy,
		EdgeFollows, EdgeInterestedIn, EdgeSimilarTo, EdgeParentOf,
	}
	rels := make([]Relation, len(types))
	for i, e := range types {
		rels[i] = RelationOf(e)
	}
	return rels
}

// Edge is one relationship in snapshot index space.
type Edge struct {
	Src    int
	Dst    int
	Weight float32
}
