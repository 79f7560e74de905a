package compiler

import (
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/responsive"
)

// Token is one named theme value. Value may be responsive.
type Token struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label"`
	Value any    `json:"value" yaml:"value"`
}

// Tokens groups theme tokens by token id, e.g. "colors" or "space".
type Tokens map[string][]Token

// Find returns the token of a group.
func (t Tokens) Find(group, id string) (Token, bool) {
	for _, tok := range t[group] {
		if tok.ID == id {
			return tok, true
		}
	}
	return Token{}, false
}

// resolveToken reads a token-backed value for a device. A ref to a known
// token wins over the stored value. The second result is false when the ref
// names an unknown token.
func resolveToken(tokens Tokens, group string, v any, deviceID string, devices responsive.Devices) (any, bool) {
	ref, ok := model.ParseRefValue(v)
	if !ok {
		return v, true
	}
	if ref.Ref == "" {
		return ref.Value, true
	}
	tok, ok := tokens.Find(group, ref.Ref)
	if !ok {
		return ref.Value, false
	}
	value, err := responsive.Resolve(tok.Value, deviceID, devices)
	if err != nil {
		return ref.Value, true
	}
	return value, true
}
