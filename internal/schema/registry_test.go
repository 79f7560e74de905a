package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyblocks/easyblocks/internal/model"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.RegisterType(TypeDefinition{ID: "product", Kind: KindExternal}))
	require.NoError(t, r.Register(&ComponentDefinition{
		ID:   "Card",
		Type: []string{TagCard},
		Schema: []SchemaProp{
			{Prop: "title", Type: TypeText, Label: "Title"},
			{Prop: "product", Type: "product", Required: true},
			{Prop: "image", Type: TypeImage},
			{Prop: "background", Type: TypeColor},
			{Prop: "size", Type: TypeSelect},
			{Prop: "action", Type: TypeComponent, Accepts: []string{TagAction}},
			{Prop: "items", Type: TypeComponentCollection, Accepts: []string{TagItem}},
		},
	}))
	require.NoError(t, r.Register(&ComponentDefinition{ID: "Link", Type: []string{TagAction, TagActionLink}}))
	require.NoError(t, r.Register(&ComponentDefinition{ID: "Alert", Type: []string{TagAction}}))
	require.NoError(t, r.Register(&ComponentDefinition{ID: "Image", Type: []string{TagItem}}))
	return r
}

func TestRegistry_LookupStripsVariant(t *testing.T) {
	r := testRegistry(t)

	def, ok := r.Lookup("Card$$$compact")
	require.True(t, ok)
	assert.Equal(t, "Card", def.ID)

	_, ok = r.Lookup("Unknown")
	assert.False(t, ok)
}

func TestRegistry_RejectsInvalidDefinitions(t *testing.T) {
	r := testRegistry(t)

	assert.Error(t, r.Register(&ComponentDefinition{ID: "Card"}))
	assert.Error(t, r.Register(&ComponentDefinition{}))
	assert.Error(t, r.Register(&ComponentDefinition{ID: "A$$$b"}))
	assert.Error(t, r.Register(&ComponentDefinition{ID: "Dup", Schema: []SchemaProp{
		{Prop: "a", Type: TypeString},
		{Prop: "a", Type: TypeNumber},
	}}))
	assert.Error(t, r.Register(&ComponentDefinition{ID: "NoType", Schema: []SchemaProp{{Prop: "a"}}}))
	assert.ErrorContains(t, r.Register(&ComponentDefinition{ID: "Toggle", Schema: []SchemaProp{
		{Prop: "hidden", Type: TypeBoolean, Responsive: true},
	}}), "cannot be responsive")
	assert.NoError(t, r.Register(&ComponentDefinition{ID: "Toggle", Schema: []SchemaProp{
		{Prop: "hidden", Type: TypeBoolean},
	}}))

	assert.Error(t, r.RegisterType(TypeDefinition{ID: "product", Kind: KindExternal}))
	assert.Error(t, r.RegisterType(TypeDefinition{ID: TypeComponent, Kind: KindInline}))
	assert.Error(t, r.RegisterType(TypeDefinition{ID: "x", Kind: "weird"}))
}

func TestRegistry_Kind(t *testing.T) {
	r := testRegistry(t)
	card, _ := r.Lookup("Card")

	kinds := map[string]string{}
	for _, p := range card.Schema {
		kinds[p.Prop] = r.Kind(p)
	}
	assert.Equal(t, map[string]string{
		"title":      model.KindResource,
		"product":    model.KindResource,
		"image":      model.KindResource,
		"background": model.KindToken,
		"size":       model.KindValue,
		"action":     model.KindAction,
		"items":      model.KindSlot,
	}, kinds)
}

func TestRegistry_OptionalResources(t *testing.T) {
	r := testRegistry(t)
	card, _ := r.Lookup("Card")

	title, _ := card.Prop("title")
	image, _ := card.Prop("image")
	product, _ := card.Prop("product")

	assert.True(t, r.IsOptionalResource(title))
	assert.True(t, r.IsOptionalResource(image))
	assert.False(t, r.IsOptionalResource(product))
}

func TestAccepts(t *testing.T) {
	r := testRegistry(t)
	card, _ := r.Lookup("Card")
	image, _ := r.Lookup("Image")
	items, _ := card.Prop("items")

	assert.True(t, Accepts(items, image))
	assert.False(t, Accepts(items, card))
	assert.True(t, Accepts(SchemaProp{Prop: "any", Type: TypeComponent}, card))
	assert.True(t, Accepts(SchemaProp{Prop: "only", Type: TypeComponent, Accepts: []string{"Card"}}, card))
}

func TestRegistry_Serialize(t *testing.T) {
	r := testRegistry(t)
	defs := r.Serialize()

	require.Len(t, defs.Components, 2)
	require.Len(t, defs.Links, 1)
	require.Len(t, defs.Actions, 1)
	assert.Equal(t, "Link", defs.Links[0].ID)
	assert.Equal(t, "Alert", defs.Actions[0].ID)

	card, ok := defs.Find("Card")
	require.True(t, ok)
	prop, ok := card.Prop("product")
	require.True(t, ok)
	assert.Equal(t, model.KindResource, prop.Kind)
	assert.False(t, prop.Optional)
	assert.Equal(t, "product", prop.DisplayLabel())
}

func TestRegistry_ByTagAndSuggest(t *testing.T) {
	r := testRegistry(t)

	actions := r.ByTag(TagAction)
	require.Len(t, actions, 2)
	assert.Equal(t, "Link", actions[0].ID)

	assert.Equal(t, []string{"Image"}, r.Suggest("Imgae", 3))
	assert.Empty(t, r.Suggest("Completely different", 3))
}

func TestSchemaProp_IsVisible(t *testing.T) {
	p := SchemaProp{Prop: "a", Type: TypeString, VisibleFunc: func(values, _ map[string]any) bool {
		return values["mode"] == "on"
	}}
	assert.True(t, p.IsVisible(map[string]any{"mode": "on"}, nil))
	assert.False(t, p.IsVisible(map[string]any{"mode": "off"}, nil))
	assert.False(t, SchemaProp{Hidden: true}.IsVisible(nil, nil))
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	r := testRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := r.Lookup("Card")
			assert.True(t, ok)
			_ = r.Serialize()
		}()
	}
	wg.Wait()
}
