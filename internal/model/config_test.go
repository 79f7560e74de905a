package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "_template": "Section$$$dark",
  "_id": "root",
  "title": {"id": "local.t1", "widgetId": "@easyblocks/local-text", "value": {"en": "Hello"}},
  "color": {"$res": true, "xl": {"ref": "black", "value": "#000"}},
  "items": [
    {"_template": "Image", "_id": "img1", "image": {"id": "photo-1", "widgetId": "unsplash"}},
    {"_template": "Image", "_id": "img2", "image": {"id": null, "widgetId": "unsplash"}}
  ],
  "text": {"en": [{"_template": "@easyblocks/rich-text-part", "_id": "p1", "value": "x"}]},
  "empty": []
}`

func TestParseConfig_DecodesSlots(t *testing.T) {
	c, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Section$$$dark", c.Template)
	assert.Equal(t, "Section", c.DefinitionID())
	assert.Equal(t, "root", c.ID)

	items := Children(c.Props["items"])
	require.Len(t, items, 2)
	assert.Equal(t, "img1", items[0].ID)

	parts := LocalisedChildren(c.Props["text"], "en")
	require.Len(t, parts, 1)
	assert.Equal(t, "p1", parts[0].ID)
	assert.Nil(t, LocalisedChildren(c.Props["text"], "de"))

	assert.Nil(t, Children(c.Props["empty"]))
	assert.Equal(t, []string{"items", "text"}, c.ChildSlots())
}

func TestConfig_RoundTripIsStructurallyEqual(t *testing.T) {
	c, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var original, roundTripped map[string]any
	require.NoError(t, json.Unmarshal([]byte(sampleConfig), &original))
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, original, roundTripped)
}

func TestParseConfig_MissingTemplate(t *testing.T) {
	_, err := ParseConfig([]byte(`{"_id": "x"}`))
	assert.Error(t, err)

	_, err = ParseConfig([]byte(`{"_template": "A", "slot": [{"_template": ""}]}`))
	assert.Error(t, err)
}

func TestConfig_CloneIsDeep(t *testing.T) {
	c, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	clone := c.Clone()
	Children(clone.Props["items"])[0].Props["image"] = nil
	clone.Props["color"].(map[string]any)["xl"] = "changed"

	assert.NotNil(t, Children(c.Props["items"])[0].Props["image"])
	assert.NotEqual(t, "changed", c.Props["color"].(map[string]any)["xl"])
}

func TestConfig_WalkAndFind(t *testing.T) {
	c, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"root", "img1", "img2", "p1"}, c.IDs())

	node, path, ok := c.FindByID("img2")
	require.True(t, ok)
	assert.Equal(t, "Image", node.Template)
	assert.Equal(t, "items.1", path)

	_, path, ok = c.FindByID("p1")
	require.True(t, ok)
	assert.Equal(t, "text.en.0", path)

	_, _, ok = c.FindByID("nope")
	assert.False(t, ok)
	require.NoError(t, c.CheckUniqueIDs())
}

func TestConfig_DuplicateIDs(t *testing.T) {
	c, err := ParseConfig([]byte(`{"_template": "A", "_id": "x", "s": [{"_template": "B", "_id": "x"}]}`))
	require.NoError(t, err)
	assert.EqualError(t, c.CheckUniqueIDs(), `duplicate _id "x"`)
}

func TestReferences(t *testing.T) {
	c, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	img1, _, _ := c.FindByID("img1")
	ref, ok := ParseExternalReference(img1.Props["image"])
	require.True(t, ok)
	assert.Equal(t, "photo-1", ref.ID)
	assert.False(t, ref.IsEmpty())

	img2, _, _ := c.FindByID("img2")
	ref, ok = ParseExternalReference(img2.Props["image"])
	require.True(t, ok)
	assert.True(t, ref.IsEmpty())
	assert.Nil(t, ref.ToMap()["id"])

	assert.True(t, IsLocalText(c.Props["title"]))
	text, ok := LocalisedText(c.Props["title"], "de", "en")
	require.True(t, ok)
	assert.Equal(t, "Hello", text)

	rv, ok := ParseRefValue(c.Props["color"].(map[string]any)["xl"])
	require.True(t, ok)
	assert.Equal(t, "black", rv.Ref)
	assert.Equal(t, "#000", rv.Value)

	_, ok = ParseRefValue("plain")
	assert.False(t, ok)
}

func TestDefinitions_HasAccepted(t *testing.T) {
	defs := Definitions{
		Components: []DefinitionInfo{{ID: "Card", Type: []string{"item"}}},
		Actions:    []DefinitionInfo{{ID: "Alert", Type: []string{"action"}}},
	}

	assert.True(t, defs.HasAccepted(nil))
	assert.True(t, defs.HasAccepted([]string{"item"}))
	assert.True(t, defs.HasAccepted([]string{"gadget", "Card"}))
	assert.False(t, defs.HasAccepted([]string{"gadget"}))
	assert.False(t, defs.HasAccepted([]string{"action"}))
	assert.False(t, Definitions{}.HasAccepted(nil))
}
