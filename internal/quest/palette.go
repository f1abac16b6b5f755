package quest

import "strings"

// QuestType is a card category and its fixed color.
type QuestType struct {
	Label string `json:"label" yaml:"label"`
	Color string `json:"color" yaml:"color"`
}

// DefaultQuestTypes is the built-in palette.
var DefaultQuestTypes = []QuestType{
	{Label: "Main Quest", Color: "#e9d5ff"},
	{Label: "Story Quest", Color: "#99f6e4"},
	{Label: "Side Quest", Color: "#86efac"},
	{Label: "Boss Fight", Color: "#93c5fd"},
}

// Palette resolves quest types by label or color.
type Palette struct {
	types []QuestType
}

// NewPalette builds a palette; an empty list means DefaultQuestTypes.
func NewPalette(types []QuestType) *Palette {
	if len(types) == 0 {
		types = DefaultQuestTypes
	}
	return &Palette{types: append([]QuestType(nil), types...)}
}

// Types returns the palette in display order.
func (p *Palette) Types() []QuestType {
	return append([]QuestType(nil), p.types...)
}

// Resolve accepts a label (case-insensitive) or a color and returns the type.
func (p *Palette) Resolve(s string) (QuestType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range p.types {
		if strings.EqualFold(t.Label, s) || strings.EqualFold(t.Color, s) {
			return t, true
		}
	}
	return QuestType{}, false
}

// Label returns the label for a card color, or "" if the color is not in the palette.
func (p *Palette) Label(color string) string {
	for _, t := range p.types {
		if strings.EqualFold(t.Color, color) {
			return t.Label
		}
	}
	return ""
}
