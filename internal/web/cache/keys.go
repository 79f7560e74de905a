package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// ResourceKey builds the cache key of a fetched resource payload. Fetch
// params are hashed so the key stays short.
func ResourceKey(widgetID, externalID string, params map[string]any) string {
	key := "resource:" + widgetID + ":" + externalID
	if len(params) == 0 {
		return key
	}
	// json.Marshal sorts map keys
	data, err := json.Marshal(params)
	if err != nil {
		return key
	}
	sum := sha256.Sum256(data)
	return key + ":" + hex.EncodeToString(sum[:8])
}

// RenderKey builds the cache key of a rendered document.
func RenderKey(projectID, documentID string, version int, deviceID, locale string) string {
	return "render:" + projectID + ":" + documentID + ":" + strconv.Itoa(version) + ":" + deviceID + ":" + locale
}
