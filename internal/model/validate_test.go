package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigJSON(t *testing.T) {
	require.NoError(t, ValidateConfigJSON([]byte(`{"_template": "A", "_id": "x"}`)))

	err := ValidateConfigJSON([]byte(`{"_id": "x"}`))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Problems)

	assert.Error(t, ValidateConfigJSON([]byte(`{"_template": 3}`)))
	assert.Error(t, ValidateConfigJSON([]byte(`{"_template": "A", "$$$refs": {"r": {"x": 1}}}`)))
	assert.Error(t, ValidateConfigJSON([]byte(`not json`)))
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
	  "documentId": "d1",
	  "projectId": "p1",
	  "version": 2,
	  "config": {"_template": "Page", "_id": "root"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.DocumentID)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, "Page", doc.Config.Template)

	_, err = ParseDocument([]byte(`{"documentId": "d1"}`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`{"documentId": "d1", "config": {"_template": "P", "_id": "a", "s": [{"_template": "Q", "_id": "a"}]}}`))
	assert.Error(t, err)
}

func TestResource_PickAndContent(t *testing.T) {
	compound := Resource{
		ID:     "a.product",
		Type:   CompoundResourceType,
		Status: StatusSuccess,
		Value: map[string]any{
			"title": map[string]any{"type": "text", "value": "Shoe"},
		},
	}
	v, typ, ok := compound.Pick("title")
	require.True(t, ok)
	assert.Equal(t, "Shoe", v)
	assert.Equal(t, "text", typ)
	_, _, ok = compound.Pick("price")
	assert.False(t, ok)

	assert.True(t, compound.HasContent())
	assert.False(t, Resource{Status: StatusSuccess, Value: ""}.HasContent())
	assert.False(t, Resource{Status: StatusLoading, Value: "x"}.HasContent())
	assert.Equal(t, "a.image.xl", ResourceKey("a", "image", "xl"))
}
