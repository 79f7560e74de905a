package components

import (
	"fmt"

	"github.com/easyblocks/easyblocks/internal/builder"
	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/richtext"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Library bundles the registries and global config a compile and build
// pipeline needs.
type Library struct {
	Schema  *schema.Registry
	Runtime *builder.Registry
	Global  compiler.GlobalConfig
}

// NewLibrary registers the built-ins, the rich text components and the
// project's own types and components. project may be nil.
func NewLibrary(project *Project, log logger.Logger) (*Library, error) {
	if project == nil {
		project = &Project{}
	}
	reg := schema.NewRegistry()
	rt := builder.NewRegistry()

	types := append(Types(), project.Types...)
	for _, t := range types {
		if err := reg.RegisterType(t); err != nil {
			return nil, fmt.Errorf("failed to register type %q: %w", t.ID, err)
		}
	}

	if err := richtext.Register(reg); err != nil {
		return nil, err
	}
	richtext.RegisterImplementations(rt)

	for _, def := range Definitions() {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	RegisterImplementations(rt, log)

	for _, c := range project.Components {
		if err := reg.Register(c.Definition()); err != nil {
			return nil, fmt.Errorf("project component %q: %w", c.ID, err)
		}
		rt.RegisterComponent(c.ID, c.Implementation())
	}

	return &Library{
		Schema:  reg,
		Runtime: rt,
		Global:  project.GlobalConfig(),
	}, nil
}

// GlobalConfig returns the project's devices, locales and tokens with the
// defaults filled in. Project tokens replace built-in tokens of the same id.
func (p *Project) GlobalConfig() compiler.GlobalConfig {
	devices := p.Devices
	if len(devices) == 0 {
		devices = responsive.DefaultDevices()
	}
	locales := p.Locales
	if len(locales) == 0 {
		locales = []compiler.Locale{{Code: "en", IsDefault: true}}
	}
	return compiler.GlobalConfig{
		Devices: devices,
		Locales: locales,
		Tokens:  mergeTokens(DefaultTokens(), p.Tokens),
	}
}

func mergeTokens(base, extra compiler.Tokens) compiler.Tokens {
	out := make(compiler.Tokens, len(base))
	for group, tokens := range base {
		out[group] = append([]compiler.Token(nil), tokens...)
	}
	for group, tokens := range extra {
		for _, t := range tokens {
			replaced := false
			for i, existing := range out[group] {
				if existing.ID == t.ID {
					out[group][i] = t
					replaced = true
					break
				}
			}
			if !replaced {
				out[group] = append(out[group], t)
			}
		}
	}
	return out
}
