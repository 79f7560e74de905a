// Package render runs the non-editing pipeline: compile, fetch whatever the
// pass requested, recompile and build HTML.
package render

import (
	"context"
	"fmt"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/builder"
	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/resource"
)

// maxRounds bounds compile and fetch rounds. Requests come from the config
// tree, so a second round normally finds nothing new.
const maxRounds = 3

// Renderer turns configs into HTML. Compiler must read resource state from
// Engine; a nil Engine renders with every resource still loading.
type Renderer struct {
	Compiler *compiler.Compiler
	Engine   *resource.Engine
	Runtime  *builder.Registry
	Log      logger.Logger
}

// Output is the result of a render.
type Output struct {
	Result      *compiler.Result
	Root        *builder.Element
	HTML        string
	Diagnostics []cerrors.CompilerError
}

// Options select what is rendered.
type Options struct {
	compiler.ContextParams

	// Overrides replace root slot content before building.
	Overrides map[string]*model.ComponentConfig

	// Title wraps the output into a full HTML page when set.
	Title string
}

// Compile compiles cfg and resolves its resources until nothing is pending
// or ctx ends.
func (r *Renderer) Compile(ctx context.Context, cfg *model.ComponentConfig, params compiler.ContextParams) (*compiler.Result, error) {
	res, err := r.Compiler.Compile(cfg, params)
	if err != nil {
		return nil, err
	}
	if r.Engine == nil {
		return res, nil
	}

	for round := 0; round < maxRounds && r.Engine.Pending(res.Requests); round++ {
		if _, err := r.Engine.Resolve(ctx, res.Requests); err != nil {
			return nil, fmt.Errorf("resolve resources: %w", err)
		}
		if res, err = r.Compiler.Compile(cfg, params); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Render compiles cfg and builds its HTML.
func (r *Renderer) Render(ctx context.Context, cfg *model.ComponentConfig, opts Options) (*Output, error) {
	res, err := r.Compile(ctx, cfg, opts.ContextParams)
	if err != nil {
		return nil, err
	}

	compiled := res.Compiled
	if len(opts.Overrides) > 0 {
		overrides := make(map[string]*model.CompiledComponentConfig, len(opts.Overrides))
		for slot, o := range opts.Overrides {
			ores, err := r.Compile(ctx, o, opts.ContextParams)
			if err != nil {
				return nil, fmt.Errorf("override %s: %w", slot, err)
			}
			overrides[slot] = ores.Compiled
			res.Meta.Resources = append(res.Meta.Resources, ores.Meta.Resources...)
			res.Diagnostics = append(res.Diagnostics, ores.Diagnostics...)
		}
		compiled = builder.WithComponentOverrides(compiled, overrides)
	}

	b := builder.New(r.Runtime, builder.WithLogger(r.Log))
	root := b.Build(compiled, "", nil, res.Meta)

	out := &Output{
		Result:      res,
		Root:        root,
		Diagnostics: append(append([]cerrors.CompilerError{}, res.Diagnostics...), b.Diagnostics()...),
	}
	if opts.Title != "" {
		out.HTML, err = builder.RenderDocument(root, opts.Title, res.Meta.Vars.Locale)
	} else {
		out.HTML, err = builder.Render(root)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
