package resource

import (
	"context"
	"fmt"
	"os"

	"github.com/easyblocks/easyblocks/internal/model"
	"gopkg.in/yaml.v3"
)

// FetchInput is one item of a fetch call.
type FetchInput struct {
	ExternalID  string         `json:"externalId" yaml:"externalId"`
	WidgetID    string         `json:"widgetId" yaml:"widgetId"`
	Type        string         `json:"type" yaml:"type"`
	FetchParams map[string]any `json:"fetchParams,omitempty" yaml:"fetchParams"`
}

// FetchResult is either a value or an error. Compound results carry named
// Values and have type "object".
type FetchResult struct {
	Type   string                         `json:"type,omitempty" yaml:"type"`
	Value  any                            `json:"value,omitempty" yaml:"value"`
	Values map[string]model.CompoundValue `json:"values,omitempty" yaml:"values"`
	Error  string                         `json:"error,omitempty" yaml:"error"`
}

// Fetcher resolves a batch of inputs keyed by caller chosen ids. A returned
// error fails every input of the call; a missing entry fails that input
// only.
type Fetcher interface {
	Fetch(ctx context.Context, inputs map[string]FetchInput) (map[string]FetchResult, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, inputs map[string]FetchInput) (map[string]FetchResult, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, inputs map[string]FetchInput) (map[string]FetchResult, error) {
	return f(ctx, inputs)
}

// StaticFetcher serves results from an in-memory table keyed by widget id
// and external id.
type StaticFetcher struct {
	Results map[string]map[string]FetchResult `yaml:"results"`
}

// LoadStaticFetcher reads a fixture file of the form
//
//	results:
//	  <widgetId>:
//	    <externalId>: {type: image, value: {...}}
func LoadStaticFetcher(path string) (*StaticFetcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var f StaticFetcher
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}

// Fetch implements Fetcher.
func (f *StaticFetcher) Fetch(ctx context.Context, inputs map[string]FetchInput) (map[string]FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]FetchResult, len(inputs))
	for id, in := range inputs {
		byID, ok := f.Results[in.WidgetID]
		if !ok {
			out[id] = FetchResult{Error: fmt.Sprintf("unknown widget %q", in.WidgetID)}
			continue
		}
		res, ok := byID[in.ExternalID]
		if !ok {
			out[id] = FetchResult{Error: fmt.Sprintf("%s %q not found", in.WidgetID, in.ExternalID)}
			continue
		}
		if res.Type == "" && res.Values == nil {
			res.Type = in.Type
		}
		out[id] = res
	}
	return out, nil
}
