package compiler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/resource"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/schema"
)

func bp(v int) *int { return &v }

var testDevices = responsive.Devices{
	{ID: "sm", W: 400, Breakpoint: bp(600)},
	{ID: "lg", W: 1200, Breakpoint: nil, IsMain: true},
}

var testTokens = Tokens{
	"colors": {
		{ID: "brand", Value: responsive.New(map[string]any{"lg": "#00f", "sm": "#0af"})},
	},
	"space": {
		{ID: "s", Value: "4px"},
	},
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.RegisterType(schema.TypeDefinition{ID: "product", Kind: schema.KindExternal}))

	r.MustRegister(
		&schema.ComponentDefinition{
			ID:   "Section",
			Type: []string{schema.TagSection},
			Schema: []schema.SchemaProp{
				{Prop: "gap", Type: schema.TypeSpace, Responsive: true, DefaultValue: map[string]any{"value": "8px"}},
				{Prop: "background", Type: schema.TypeColor},
				{Prop: "layout", Type: schema.TypeSelect, DefaultValue: "column", Options: []schema.Option{{Value: "row"}, {Value: "column"}}},
				{Prop: "hideTitle", Type: schema.TypeBoolean, DefaultValue: false},
				{Prop: "title", Type: schema.TypeText, Label: "Title", VisibleFunc: func(values, _ map[string]any) bool {
					return values["hideTitle"] != true
				}},
				{Prop: "items", Type: schema.TypeComponentCollection, Accepts: []string{schema.TagItem}},
				{Prop: "action", Type: schema.TypeComponent, Accepts: []string{schema.TagAction}},
			},
			Auto: func(in schema.AutoInput) map[string]any {
				if _, ok := in.Values["layout"]; !ok && len(model.Children(in.Values["items"])) > 1 {
					return map[string]any{"layout": "row"}
				}
				return nil
			},
			Styles: func(in schema.StylesInput) (schema.StylesResult, error) {
				return schema.StylesResult{
					Styled: map[string]any{
						"Root": map[string]any{"gap": in.Values["gap"], "device": in.Device.ID},
					},
					Components: map[string]schema.ComponentOverride{
						"items": {
							Params:    map[string]any{ParamWidth: 100},
							ItemProps: []map[string]any{{"first": true}},
							Direction: "horizontal",
						},
					},
				}, nil
			},
		},
		&schema.ComponentDefinition{
			ID:   "Card",
			Type: []string{schema.TagItem},
			Schema: []schema.SchemaProp{
				{Prop: "image", Type: schema.TypeImage, Responsive: true},
				{Prop: "product", Type: "product", Required: true, Label: "Product"},
			},
			Styles: func(in schema.StylesInput) (schema.StylesResult, error) {
				return schema.StylesResult{
					Styled: map[string]any{"width": in.Params[ParamWidth], "first": in.Params["first"]},
				}, nil
			},
			Editing: func(in schema.EditingInput) schema.EditingResult {
				return schema.EditingResult{Direction: "vertical"}
			},
		},
		&schema.ComponentDefinition{
			ID:     "Link",
			Type:   []string{schema.TagAction, schema.TagActionLink},
			Schema: []schema.SchemaProp{{Prop: "url", Type: schema.TypeString}},
		},
		&schema.ComponentDefinition{
			ID: "Frame",
			Schema: []schema.SchemaProp{
				{Prop: "content", Type: schema.TypeComponentFixed},
			},
		},
		&schema.ComponentDefinition{
			ID: "Stack",
			Schema: []schema.SchemaProp{
				{Prop: "elements", Type: schema.TypeComponentCollectionLocalised},
			},
		},
	)
	return r
}

func ref(id, widget string) map[string]any {
	return model.ExternalReference{ID: id, WidgetID: widget}.ToMap()
}

func testConfig() *model.ComponentConfig {
	return model.NewConfig("Section", "root", map[string]any{
		"gap": responsive.New(map[string]any{
			"lg": map[string]any{"value": "16px"},
			"sm": map[string]any{"ref": "s", "value": "5px"},
		}),
		"background": map[string]any{"ref": "brand", "value": "#000"},
		"title":      model.NewLocalText("title", map[string]any{"en": "Hello"}),
		"items": []*model.ComponentConfig{
			model.NewConfig("Card", "c1", map[string]any{
				"product": ref("p1", "shop"),
				"image":   responsive.New(map[string]any{"lg": ref("big", "photos"), "sm": ref("small", "photos")}),
			}),
			model.NewConfig("Card", "c2", map[string]any{"product": ref("p1", "shop")}),
		},
		"action": []*model.ComponentConfig{
			model.NewConfig("Link", "l1", map[string]any{"url": "/shop"}),
		},
	})
}

func newCompiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	opts = append([]Option{WithLogger(logger.NewTestLogger(t))}, opts...)
	c, err := New(testRegistry(t), GlobalConfig{
		Devices: testDevices,
		Locales: []Locale{{Code: "en", IsDefault: true}, {Code: "de", Fallback: "en"}},
		Tokens:  testTokens,
	}, opts...)
	require.NoError(t, err)
	return c
}

func codes(diags []cerrors.CompilerError) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, GlobalConfig{})
	assert.Error(t, err)

	_, err = New(schema.NewRegistry(), GlobalConfig{Devices: responsive.Devices{{ID: "a", Breakpoint: bp(1)}}})
	assert.Error(t, err)

	c, err := New(schema.NewRegistry(), GlobalConfig{})
	require.NoError(t, err)
	assert.Len(t, c.Devices(), len(responsive.DefaultDevices()))
	assert.Equal(t, "en", c.Global().DefaultLocale())
}

func TestCompile_ResolvesValuesPerDevice(t *testing.T) {
	c := newCompiler(t)

	res, err := c.Compile(testConfig(), ContextParams{})
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)

	root := res.Compiled
	assert.Equal(t, "lg", res.Meta.Vars.Device)
	assert.Equal(t, "en", res.Meta.Vars.Locale)
	assert.Equal(t, "16px", root.Props["gap"])
	assert.Equal(t, "#00f", root.Props["background"])
	assert.Equal(t, false, root.Props["hideTitle"])
	assert.Equal(t, "row", root.Props["layout"])
	assert.NotContains(t, root.Props, "items")

	res, err = c.Compile(testConfig(), ContextParams{Device: "sm"})
	require.NoError(t, err)
	assert.Equal(t, "4px", res.Compiled.Props["gap"])
	assert.Equal(t, "#0af", res.Compiled.Props["background"])

	_, err = c.Compile(testConfig(), ContextParams{Device: "tv"})
	assert.Error(t, err)
}

func TestCompile_DefaultValue(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	delete(cfg.Props, "gap")

	res, err := c.Compile(cfg, ContextParams{})
	require.NoError(t, err)
	assert.Equal(t, "8px", res.Compiled.Props["gap"])
}

func TestCompile_UnknownTokenFallsBackToValue(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	cfg.Props["background"] = map[string]any{"ref": "missing", "value": "#123"}

	res, err := c.Compile(cfg, ContextParams{})
	require.NoError(t, err)
	assert.Equal(t, "#123", res.Compiled.Props["background"])
	assert.Equal(t, []string{cerrors.ErrUnknownToken}, codes(res.Diagnostics))
	assert.Equal(t, "background", res.Diagnostics[0].Location.Prop)
	assert.True(t, res.Diagnostics[0].IsWarning())
}

func TestCompile_InvalidOption(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	cfg.Props["layout"] = "diagonal"

	res, err := c.Compile(cfg, ContextParams{})
	require.NoError(t, err)
	assert.Equal(t, "column", res.Compiled.Props["layout"])
	assert.Equal(t, []string{cerrors.ErrInvalidPropValue}, codes(res.Diagnostics))
}

func TestCompile_Styles(t *testing.T) {
	c := newCompiler(t)

	res, err := c.Compile(testConfig(), ContextParams{})
	require.NoError(t, err)

	root := res.Compiled
	assert.Equal(t, map[string]any{"gap": "16px", "device": "lg"}, root.Styled["Root"])
	require.Contains(t, root.StyledByDevice, "sm")
	assert.Equal(t, map[string]any{"gap": "4px", "device": "sm"}, root.StyledByDevice["sm"]["Root"])

	items := root.Components["items"]
	require.Len(t, items, 2)
	assert.Equal(t, 100, items[0].Styled["width"])
	assert.Equal(t, true, items[0].Styled["first"])
	assert.Nil(t, items[1].Styled["first"])

	// Link has no styles function.
	assert.Empty(t, root.Actions["action"][0].Styled)
	assert.Nil(t, root.Actions["action"][0].StyledByDevice)
}

func TestCompile_SlotsKeepDeclarationOrder(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	items := model.Children(cfg.Props["items"])
	cfg.Props["items"] = []*model.ComponentConfig{items[1], items[0]}

	res, err := c.Compile(cfg, ContextParams{})
	require.NoError(t, err)

	ids := []string{}
	for _, item := range res.Compiled.Components["items"] {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"c2", "c1"}, ids)

	require.Len(t, res.Compiled.Actions["action"], 1)
	assert.Equal(t, "l1", res.Compiled.Actions["action"][0].ID)
	assert.Equal(t, "/shop", res.Compiled.Actions["action"][0].Props["url"])
	assert.NotContains(t, res.Compiled.Components, "action")
}

func TestCompile_AcceptsMismatchStillCompiles(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	cfg.Props["items"] = append(model.Children(cfg.Props["items"]), model.NewConfig("Link", "l2", nil))

	res, err := c.Compile(cfg, ContextParams{})
	require.NoError(t, err)

	require.Len(t, res.Compiled.Components["items"], 3)
	assert.Equal(t, "l2", res.Compiled.Components["items"][2].ID)
	require.Equal(t, []string{cerrors.ErrSlotTypeMismatch}, codes(res.Diagnostics))
	assert.Equal(t, "items.2", res.Diagnostics[0].Location.Path)
	assert.False(t, res.HasErrors())
}

func TestCompile_UnknownComponent(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	cfg.Props["items"] = append(model.Children(cfg.Props["items"]), model.NewConfig("Crad", "x1", nil))

	t.Run("editing renders a placeholder", func(t *testing.T) {
		res, err := c.Compile(cfg, ContextParams{IsEditing: true})
		require.NoError(t, err)

		items := res.Compiled.Components["items"]
		require.Len(t, items, 3)
		missing := items[2]
		assert.True(t, missing.IsMissing())
		assert.Equal(t, "x1", missing.ID)
		assert.Equal(t, "Crad", missing.Props["template"])
		assert.Contains(t, missing.Error, "Crad")

		require.Equal(t, []string{cerrors.ErrUnknownComponent}, codes(res.Diagnostics))
		require.NotNil(t, res.Diagnostics[0].Suggestion)
		assert.Contains(t, res.Diagnostics[0].Suggestion.Candidates, "Card")
		assert.True(t, res.HasErrors())
	})

	t.Run("rendering drops the subtree", func(t *testing.T) {
		res, err := c.Compile(cfg, ContextParams{})
		require.NoError(t, err)
		assert.Len(t, res.Compiled.Components["items"], 2)
		assert.Equal(t, []string{cerrors.ErrUnknownComponent}, codes(res.Diagnostics))
	})

	t.Run("unknown root", func(t *testing.T) {
		res, err := c.Compile(model.NewConfig("Nope", "r", nil), ContextParams{})
		require.NoError(t, err)
		assert.Nil(t, res.Compiled)
	})
}

func TestCompile_MissingResponsiveValueFailsNodeOnly(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	cfg.Props["gap"] = responsive.New(map[string]any{"sm": map[string]any{"value": "1px"}})

	res, err := c.Compile(cfg, ContextParams{IsEditing: true})
	require.NoError(t, err)
	require.True(t, res.Compiled.IsMissing())
	assert.Contains(t, res.Compiled.Error, "gap")
	assert.Equal(t, []string{cerrors.ErrMissingResponsiveValue}, codes(res.Diagnostics))

	res, err = c.Compile(cfg, ContextParams{})
	require.NoError(t, err)
	assert.Nil(t, res.Compiled)
}

func TestCompile_MissingRequiredChild(t *testing.T) {
	c := newCompiler(t)

	res, err := c.Compile(model.NewConfig("Frame", "f", nil), ContextParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{cerrors.ErrMissingRequiredChild}, codes(res.Diagnostics))
	assert.Equal(t, "content", res.Diagnostics[0].Location.Prop)
	assert.Empty(t, res.Compiled.Components["content"])
}

func TestCompile_LocalisedSlot(t *testing.T) {
	c := newCompiler(t)
	cfg := model.NewConfig("Stack", "s", map[string]any{
		"elements": map[string]any{
			"en": []*model.ComponentConfig{model.NewConfig("Card", "en1", nil)},
			"de": []*model.ComponentConfig{model.NewConfig("Card", "de1", nil), model.NewConfig("Card", "de2", nil)},
		},
	})

	res, err := c.Compile(cfg, ContextParams{Locale: "de", IsEditing: true})
	require.NoError(t, err)
	elements := res.Compiled.Components["elements"]
	require.Len(t, elements, 2)
	assert.Equal(t, "de1", elements[0].ID)

	field, ok := elements[1].Editing.Field("elements.de.1.image")
	require.True(t, ok)
	assert.Equal(t, schema.TypeImage, field.Type)
}

func TestCompile_EditingInfo(t *testing.T) {
	c := newCompiler(t)

	res, err := c.Compile(testConfig(), ContextParams{IsEditing: true})
	require.NoError(t, err)

	root := res.Compiled.Editing
	require.NotNil(t, root)
	title, ok := root.Field("title")
	require.True(t, ok)
	assert.Equal(t, "Title", title.Label)
	assert.True(t, title.Visible)

	items := root.Components["items"]
	assert.True(t, items.Selectable)
	assert.Equal(t, "horizontal", items.Direction)
	assert.Equal(t, 1200, root.WidthInfo.Width["lg"])
	assert.Equal(t, 400, root.WidthInfo.Width["sm"])

	card := res.Compiled.Components["items"][0].Editing
	require.NotNil(t, card)
	assert.Equal(t, "vertical", card.Direction)
	assert.Equal(t, 100, card.WidthInfo.Width["lg"])
	_, ok = card.Field("items.0.product")
	assert.True(t, ok)

	cfg := testConfig()
	cfg.Props["hideTitle"] = true
	res, err = c.Compile(cfg, ContextParams{IsEditing: true})
	require.NoError(t, err)
	title, _ = res.Compiled.Editing.Field("title")
	assert.False(t, title.Visible)

	res, err = c.Compile(testConfig(), ContextParams{})
	require.NoError(t, err)
	assert.Nil(t, res.Compiled.Editing)
}

func TestCompile_AutoDoesNotMutateInput(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()

	res, err := c.Compile(cfg, ContextParams{})
	require.NoError(t, err)
	assert.Equal(t, "row", res.ConfigAfterAuto.Props["layout"])
	assert.NotContains(t, cfg.Props, "layout")
}

func TestCompile_Idempotent(t *testing.T) {
	c := newCompiler(t)

	first, err := c.Compile(testConfig(), ContextParams{IsEditing: true})
	require.NoError(t, err)
	again, err := c.Compile(testConfig(), ContextParams{IsEditing: true})
	require.NoError(t, err)
	fromAuto, err := c.Compile(first.ConfigAfterAuto, ContextParams{IsEditing: true})
	require.NoError(t, err)

	assert.Equal(t, first.Compiled, again.Compiled)
	assert.Equal(t, first.Compiled, fromAuto.Compiled)
	assert.Equal(t, first.Requests, fromAuto.Requests)
	assert.Equal(t, first.Meta, fromAuto.Meta)
}

func TestCompile_Refs(t *testing.T) {
	c := newCompiler(t)
	cfg := testConfig()
	cfg.Refs = map[string]*model.ComponentConfig{
		"shared": model.NewConfig("Card", "", map[string]any{"product": ref("p7", "shop")}),
	}
	shared := model.NewConfig("Card", "c3", nil)
	shared.Ref = "shared"
	cfg.Props["items"] = []*model.ComponentConfig{shared}

	res, err := c.Compile(cfg, ContextParams{})
	require.NoError(t, err)
	item := res.Compiled.Components["items"][0]
	assert.Equal(t, "c3", item.ID)
	assert.Equal(t, "p7", item.Props["product"].(map[string]any)["id"])

	loop := model.NewConfig("Card", "c4", nil)
	loop.Ref = "a"
	cfg.Refs = map[string]*model.ComponentConfig{
		"a": {Template: "Card", Ref: "b", Props: map[string]any{}},
		"b": {Template: "Card", Ref: "a", Props: map[string]any{}},
	}
	cfg.Props["items"] = []*model.ComponentConfig{loop}
	_, err = c.Compile(cfg, ContextParams{})
	assert.Error(t, err)
}

func TestCompile_ResourceRequests(t *testing.T) {
	c := newCompiler(t)

	res, err := c.Compile(testConfig(), ContextParams{})
	require.NoError(t, err)

	ids := make([]string, len(res.Requests))
	for i, r := range res.Requests {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"c1.image.lg", "c1.image.sm", "c1.product", "c2.product"}, ids)

	require.Len(t, res.Meta.Resources, 4)
	for _, r := range res.Meta.Resources {
		assert.Equal(t, model.StatusLoading, r.Status)
	}

	image := res.Compiled.Components["items"][0].Props["image"].(map[string]any)
	assert.Equal(t, "big", image["id"])
	assert.Equal(t, "c1.image.lg", image[model.ResourceIDKey])

	res, err = c.Compile(testConfig(), ContextParams{Device: "sm"})
	require.NoError(t, err)
	image = res.Compiled.Components["items"][0].Props["image"].(map[string]any)
	assert.Equal(t, "c1.image.sm", image[model.ResourceIDKey])
}

func TestCompile_WithResourceEngine(t *testing.T) {
	var calls atomic.Int32
	engine := resource.NewEngine(resource.FetcherFunc(func(ctx context.Context, inputs map[string]resource.FetchInput) (map[string]resource.FetchResult, error) {
		calls.Add(1)
		out := make(map[string]resource.FetchResult, len(inputs))
		for id, in := range inputs {
			out[id] = resource.FetchResult{Value: map[string]any{"name": in.ExternalID}}
		}
		return out, nil
	}))
	c := newCompiler(t, WithResourceState(engine))

	first, err := c.Compile(testConfig(), ContextParams{})
	require.NoError(t, err)
	_, err = engine.Resolve(context.Background(), first.Requests)
	require.NoError(t, err)
	// c1.product and c2.product share p1; the two images are separate
	assert.Equal(t, int32(3), calls.Load())

	second, err := c.Compile(testConfig(), ContextParams{})
	require.NoError(t, err)
	assert.False(t, engine.Pending(second.Requests))

	c1, ok := second.Meta.Resource("c1.product")
	require.True(t, ok)
	c2, ok := second.Meta.Resource("c2.product")
	require.True(t, ok)
	assert.Equal(t, model.StatusSuccess, c1.Status)
	assert.Equal(t, c1.Value, c2.Value)

	t.Run("removed node drops its resources", func(t *testing.T) {
		cfg := testConfig()
		cfg.Props["items"] = model.Children(cfg.Props["items"])[:1]

		res, err := c.Compile(cfg, ContextParams{})
		require.NoError(t, err)
		_, ok := res.Meta.Resource("c2.product")
		assert.False(t, ok)

		_, err = engine.Resolve(context.Background(), res.Requests)
		require.NoError(t, err)
		assert.Equal(t, 3, engine.Len())
		assert.Equal(t, int32(3), calls.Load())
	})
}
