package schema

// Built-in prop types
const (
	TypeString     = "string"
	TypeNumber     = "number"
	TypeBoolean    = "boolean"
	TypeSelect     = "select"
	TypeRadioGroup = "radio-group"
	TypePosition   = "position"
	TypeColor      = "color"
	TypeSpace      = "space"
	TypeFont       = "font"
	TypeIcon       = "icon"
	TypeStringTok  = "stringToken"
	TypeText       = "text"
	TypeImage      = "image"
	TypeVideo      = "video"

	TypeComponent                    = "component"
	TypeComponentFixed               = "component-fixed"
	TypeComponentCollection          = "component-collection"
	TypeComponentCollectionLocalised = "component-collection-localised"
)

// Definition type tags
const (
	TagSection            = "section"
	TagCard               = "card"
	TagItem               = "item"
	TagButton             = "button"
	TagAction             = "action"
	TagActionLink         = "actionLink"
	TagTextModifier       = "textModifier"
	TagActionTextModifier = "actionTextModifier"
)

// TypeKind classifies a registered prop type.
type TypeKind string

const (
	// KindInline types are stored directly in the config.
	KindInline TypeKind = "inline"
	// KindToken types reference a theme token through {ref, value}.
	KindToken TypeKind = "token"
	// KindExternal types reference a value fetched from a resource API.
	KindExternal TypeKind = "external"
)

// TypeDefinition registers a custom prop type.
type TypeDefinition struct {
	ID         string   `json:"id" yaml:"id"`
	Kind       TypeKind `json:"kind" yaml:"kind"`
	TokenID    string   `json:"tokenId,omitempty" yaml:"tokenId"`
	Widgets    []string `json:"widgets,omitempty" yaml:"widgets"`
	Responsive bool     `json:"responsive,omitempty" yaml:"responsive"`
	// Optional forces props of this type to never block rendering.
	Optional bool `json:"optional,omitempty" yaml:"optional"`
}

func builtinTypes() []TypeDefinition {
	return []TypeDefinition{
		{ID: TypeColor, Kind: KindToken, TokenID: "colors", Responsive: true},
		{ID: TypeSpace, Kind: KindToken, TokenID: "space", Responsive: true},
		{ID: TypeFont, Kind: KindToken, TokenID: "fonts", Responsive: true},
		{ID: TypeIcon, Kind: KindToken, TokenID: "icons"},
		{ID: TypeStringTok, Kind: KindToken},
		{ID: TypeText, Kind: KindExternal, Widgets: []string{"@easyblocks/local-text"}},
		{ID: TypeImage, Kind: KindExternal, Responsive: true, Optional: true},
		{ID: TypeVideo, Kind: KindExternal, Responsive: true, Optional: true},
	}
}

// IsSlotType reports whether t holds child components.
func IsSlotType(t string) bool {
	switch t {
	case TypeComponent, TypeComponentFixed, TypeComponentCollection, TypeComponentCollectionLocalised:
		return true
	}
	return false
}
