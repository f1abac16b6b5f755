package quest

// Position is a layout coordinate on the flow canvas. It carries no graph meaning.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Viewport is the canvas pan/zoom saved alongside the graph.
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// Node is a quest card.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Text     string   `json:"text" yaml:"text"`
	Color    string   `json:"color" yaml:"color"`
	Assets   []string `json:"assets" yaml:"assets"` // weak references by asset name
	IsAsset  bool     `json:"isAsset,omitempty" yaml:"is_asset,omitempty"`
	Position Position `json:"position" yaml:"position"`
}

// HasAsset reports whether name is already linked to the card.
func (n *Node) HasAsset(name string) bool {
	for _, a := range n.Assets {
		if a == name {
			return true
		}
	}
	return false
}

func (n *Node) clone() *Node {
	c := *n
	c.Assets = append([]string(nil), n.Assets...)
	if c.Assets == nil {
		c.Assets = []string{}
	}
	return &c
}

// Edge is a parent→child connection. Duplicates between the same pair are allowed.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Touches reports whether id is either endpoint.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

const (
	DefaultRootID    = "0"
	DefaultRootTitle = "World"
	DefaultRootText  = "This is your world."
	DefaultRootColor = "#000000"
	DefaultCardText  = "Write something here."
	AssetNodeColor   = "#6b7280"
)
