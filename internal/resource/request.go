// Package resource discovers external values referenced by a config tree
// and resolves them through an injected Fetcher.
package resource

import (
	"encoding/json"
	"sort"

	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Request asks for one external value on behalf of one resource key.
type Request struct {
	ID          string         `json:"id"`
	ConfigID    string         `json:"configId"`
	Prop        string         `json:"prop"`
	DeviceID    string         `json:"deviceId,omitempty"`
	ExternalID  string         `json:"externalId"`
	WidgetID    string         `json:"widgetId"`
	Type        string         `json:"type"`
	Key         string         `json:"key,omitempty"`
	FetchParams map[string]any `json:"fetchParams,omitempty"`
}

// Identity is what makes two requests fetch the same thing. Requests with
// equal identity share one fetch.
func (r Request) Identity() string {
	id := r.WidgetID + "\x00" + r.ExternalID
	if len(r.FetchParams) > 0 {
		data, err := json.Marshal(r.FetchParams)
		if err == nil {
			id += "\x00" + string(data)
		}
	}
	return id
}

// Input is the part of a request a fetcher sees.
func (r Request) Input() FetchInput {
	return FetchInput{
		ExternalID:  r.ExternalID,
		WidgetID:    r.WidgetID,
		Type:        r.Type,
		FetchParams: r.FetchParams,
	}
}

// FindResources walks the tree and emits a request for every resource prop
// holding a non-empty, non-local reference. A responsive reference emits
// one request per device entry. Nodes with unknown templates are skipped.
// The result is sorted by request id.
func FindResources(root *model.ComponentConfig, registry *schema.Registry, devices responsive.Devices) []Request {
	var out []Request
	if root == nil {
		return out
	}

	root.Walk(func(node *model.ComponentConfig, _ string) bool {
		def, ok := registry.Lookup(node.Template)
		if !ok {
			return true
		}
		out = append(out, nodeRequests(node, def, registry, devices)...)
		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodeRequests returns the requests of a single node.
func NodeRequests(node *model.ComponentConfig, def *schema.ComponentDefinition, registry *schema.Registry, devices responsive.Devices) []Request {
	return nodeRequests(node, def, registry, devices)
}

func nodeRequests(node *model.ComponentConfig, def *schema.ComponentDefinition, registry *schema.Registry, devices responsive.Devices) []Request {
	var out []Request
	for _, p := range def.Schema {
		if registry.Kind(p) != model.KindResource {
			continue
		}
		value, ok := node.Props[p.Prop]
		if !ok || value == nil {
			continue
		}

		params := fetchParams(p)
		if responsive.IsTrulyResponsive(value) {
			entries := value.(map[string]any)
			for _, dev := range devices.Sorted() {
				if req, ok := buildRequest(node.ID, p, dev.ID, entries[dev.ID], params); ok {
					out = append(out, req)
				}
			}
			continue
		}
		if req, ok := buildRequest(node.ID, p, "", value, params); ok {
			out = append(out, req)
		}
	}
	return out
}

func buildRequest(configID string, p schema.SchemaProp, deviceID string, value any, params map[string]any) (Request, bool) {
	ref, ok := model.ParseExternalReference(value)
	if !ok || ref.IsEmpty() || ref.IsLocal() {
		return Request{}, false
	}
	return Request{
		ID:          model.ResourceKey(configID, p.Prop, deviceID),
		ConfigID:    configID,
		Prop:        p.Prop,
		DeviceID:    deviceID,
		ExternalID:  ref.ID,
		WidgetID:    ref.WidgetID,
		Type:        p.Type,
		Key:         ref.Key,
		FetchParams: params,
	}, true
}

func fetchParams(p schema.SchemaProp) map[string]any {
	if p.Params == nil {
		return nil
	}
	params, _ := p.Params["fetchParams"].(map[string]any)
	return params
}
