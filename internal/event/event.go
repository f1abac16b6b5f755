package event

import "time"

// Kind names the mutation a Change records.
type Kind string

const (
	NodeAdded    Kind = "node_added"
	NodeRemoved  Kind = "node_removed"
	NodeEdited   Kind = "node_edited"
	NodeMoved    Kind = "node_moved"
	EdgeAdded    Kind = "edge_added"
	AssetLinked  Kind = "asset_linked"
	ViewportMove Kind = "viewport_moved"
)

// Change is emitted by the graph store after every accepted mutation.
type Change struct {
	Kind       Kind      `json:"kind"`
	NodeID     string    `json:"node_id,omitempty"`
	Source     string    `json:"source,omitempty"` // edge mutations only
	Target     string    `json:"target,omitempty"`
	Asset      string    `json:"asset,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Observer receives changes synchronously, on the mutating goroutine.
type Observer func(Change)
