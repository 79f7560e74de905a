// Package compiler turns a component config tree into a device specific,
// style resolved tree ready for the builder.
//
// A pass is synchronous. It never waits for resources; whatever the
// ResourceState knows at the time ends up in the pass metadata and the
// caller recompiles once fetches settle.
package compiler

import (
	"fmt"
	"time"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/metrics"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/resource"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// Locale is a content language of the project.
type Locale struct {
	Code      string `json:"code" yaml:"code"`
	IsDefault bool   `json:"isDefault,omitempty" yaml:"isDefault"`
	Fallback  string `json:"fallback,omitempty" yaml:"fallback"`
}

// GlobalConfig holds the project wide inputs of every pass.
type GlobalConfig struct {
	Devices responsive.Devices
	Locales []Locale
	Tokens  Tokens
}

// DefaultLocale returns the default locale code, "en" when none is flagged.
func (g GlobalConfig) DefaultLocale() string {
	for _, l := range g.Locales {
		if l.IsDefault {
			return l.Code
		}
	}
	if len(g.Locales) > 0 {
		return g.Locales[0].Code
	}
	return "en"
}

// ContextParams select what a pass compiles for.
type ContextParams struct {
	Locale    string
	Device    string
	IsEditing bool
}

// ResourceState reports the known state of resource requests without
// fetching. *resource.Engine implements it.
type ResourceState interface {
	Snapshot(requests []resource.Request) []model.Resource
}

// Result is the output of a pass.
type Result struct {
	Compiled        *model.CompiledComponentConfig
	Meta            *model.Metadata
	ConfigAfterAuto *model.ComponentConfig
	Requests        []resource.Request
	Diagnostics     []cerrors.CompilerError
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity >= cerrors.Error {
			return true
		}
	}
	return false
}

// Compiler compiles config trees against a registry. Safe for concurrent
// use; each pass keeps its state in a private pass value.
type Compiler struct {
	registry *schema.Registry
	global   GlobalConfig
	devices  responsive.Devices
	resolver *responsive.Resolver
	state    ResourceState
	log      logger.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithResourceState sets the source of resource states.
func WithResourceState(s ResourceState) Option {
	return func(c *Compiler) { c.state = s }
}

// WithLogger sets the compiler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Compiler) { c.log = logger.OrNop(l) }
}

// New creates a compiler. Devices default to responsive.DefaultDevices.
func New(registry *schema.Registry, global GlobalConfig, opts ...Option) (*Compiler, error) {
	if registry == nil {
		return nil, fmt.Errorf("compiler requires a registry")
	}
	if len(global.Devices) == 0 {
		global.Devices = responsive.DefaultDevices()
	}
	if err := global.Devices.Validate(); err != nil {
		return nil, fmt.Errorf("invalid devices: %w", err)
	}

	resolver, err := responsive.NewResolver(global.Devices, 0)
	if err != nil {
		return nil, err
	}

	c := &Compiler{
		registry: registry,
		global:   global,
		devices:  global.Devices.Sorted(),
		resolver: resolver,
		log:      logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Registry returns the compiler's registry.
func (c *Compiler) Registry() *schema.Registry {
	return c.registry
}

// Global returns the project configuration.
func (c *Compiler) Global() GlobalConfig {
	return c.global
}

// Devices returns the devices ordered largest first.
func (c *Compiler) Devices() responsive.Devices {
	return c.devices
}

// Compile runs one pass. Problems local to a node become diagnostics; an
// error is returned only when the tree as a whole cannot be compiled.
func (c *Compiler) Compile(config *model.ComponentConfig, params ContextParams) (*Result, error) {
	if config == nil {
		return nil, fmt.Errorf("nothing to compile")
	}

	start := time.Now()
	mode := "render"
	if params.IsEditing {
		mode = "edit"
	}

	if params.Locale == "" {
		params.Locale = c.global.DefaultLocale()
	}
	device, err := c.device(params.Device)
	if err != nil {
		return nil, err
	}

	resolved, err := model.ResolveRefs(config)
	if err != nil {
		metrics.CompilePasses.WithLabelValues(mode, "failed").Inc()
		return nil, fmt.Errorf("resolve refs: %w", err)
	}

	p := &pass{
		compiler: c,
		params:   params,
		device:   device,
		recovery: cerrors.NewErrorRecovery(),
	}

	compiled := p.compileNode(resolved, "", p.rootParams())

	var snapshot []model.Resource
	if c.state != nil {
		snapshot = c.state.Snapshot(p.requests)
	} else {
		snapshot = make([]model.Resource, 0, len(p.requests))
		for _, req := range p.requests {
			snapshot = append(snapshot, model.Resource{ID: req.ID, Type: req.Type, Status: model.StatusLoading, Key: req.Key})
		}
	}

	result := &Result{
		Compiled: compiled,
		Meta: &model.Metadata{
			Vars: model.CompilationVars{
				Devices:     c.global.Devices,
				Device:      device.ID,
				Locale:      params.Locale,
				IsEditing:   params.IsEditing,
				Definitions: c.registry.Serialize(),
			},
			Resources: snapshot,
		},
		ConfigAfterAuto: resolved,
		Requests:        p.requests,
		Diagnostics:     p.recovery.GetAll(),
	}

	outcome := "ok"
	if len(result.Diagnostics) > 0 {
		outcome = "diagnostics"
	}
	for _, d := range result.Diagnostics {
		metrics.Diagnostics.WithLabelValues(d.Code, d.Severity.String()).Inc()
	}
	metrics.CompilePasses.WithLabelValues(mode, outcome).Inc()
	metrics.CompileDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	c.log.Debug("compile pass finished", map[string]interface{}{
		"mode":        mode,
		"device":      device.ID,
		"locale":      params.Locale,
		"nodes":       compiled.Count(),
		"requests":    len(p.requests),
		"diagnostics": len(result.Diagnostics),
		"duration":    time.Since(start).String(),
	})
	return result, nil
}

func (c *Compiler) device(id string) (responsive.Device, error) {
	if id == "" {
		return c.global.Devices.Main(), nil
	}
	dev, ok := c.devices.Find(id)
	if !ok {
		return responsive.Device{}, fmt.Errorf("unknown device %q", id)
	}
	return dev, nil
}
