package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/cli/config"
	"github.com/easyblocks/easyblocks/internal/cli/ui"
	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/components"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/render"
	"github.com/easyblocks/easyblocks/internal/resource"
	"github.com/easyblocks/easyblocks/internal/web/cache"
)

// app is the compile and render pipeline built from the config file and the
// project definitions.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	lib      *components.Library
	engine   *resource.Engine
	compiler *compiler.Compiler
	renderer *render.Renderer
}

// loadConfig reads the config and applies flag overrides. Config problems
// are printed in full to errOut.
func loadConfig(opts *globalOptions, errOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprint(errOut, ui.ConfigError(err, opts.noColor))
		return nil, errors.New("invalid configuration")
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

// newApp builds the pipeline. Resource results of remote fetchers are kept
// in c when it is not nil.
func newApp(cfg *config.Config, log logger.Logger, c cache.Cache) (*app, error) {
	project, err := loadProject(cfg, log)
	if err != nil {
		return nil, err
	}
	lib, err := components.NewLibrary(project, log)
	if err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg, c, log)
	if err != nil {
		return nil, err
	}
	engine := resource.NewEngine(fetcher,
		resource.WithLogger(log),
		resource.WithTimeout(cfg.Resources.Timeout),
	)

	comp, err := compiler.New(lib.Schema, lib.Global,
		compiler.WithResourceState(engine),
		compiler.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		lib:      lib,
		engine:   engine,
		compiler: comp,
		renderer: &render.Renderer{Compiler: comp, Engine: engine, Runtime: lib.Runtime, Log: log},
	}, nil
}

// loadProject reads the definitions file. A missing file leaves the
// built-in components only.
func loadProject(cfg *config.Config, log logger.Logger) (*components.Project, error) {
	path := cfg.Resolve(cfg.Project.Definitions)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Debug("no project definitions, using built-in components", map[string]interface{}{"path": path})
		return nil, nil
	}
	return components.LoadProject(path)
}

func newFetcher(cfg *config.Config, c cache.Cache, log logger.Logger) (resource.Fetcher, error) {
	rc := cfg.Resources
	switch {
	case rc.URL != "":
		f, err := resource.NewHTTPFetcher(rc.URL, rc.Headers, rc.Timeout)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return f, nil
		}
		return resource.NewCachedFetcher(f, c, cfg.Cache.TTL, log), nil

	case rc.Fixtures != "":
		path := cfg.Resolve(rc.Fixtures)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Warn("fixtures file not found, external references stay unresolved", map[string]interface{}{"path": path})
			return unconfiguredFetcher, nil
		}
		return resource.LoadStaticFetcher(path)
	}
	return unconfiguredFetcher, nil
}

var unconfiguredFetcher = resource.FetcherFunc(func(ctx context.Context, inputs map[string]resource.FetchInput) (map[string]resource.FetchResult, error) {
	out := make(map[string]resource.FetchResult, len(inputs))
	for id := range inputs {
		out[id] = resource.FetchResult{Error: "no resource fetcher configured"}
	}
	return out, nil
})

// readDocument reads a document file. A file holding a bare config is
// wrapped in a document named after the file.
func readDocument(path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, ok := probe["documentId"]; ok {
		doc, err := model.ParseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return doc, nil
	}

	if err := model.ValidateConfigJSON(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg, err := model.ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.CheckUniqueIDs(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &model.Document{DocumentID: name, Config: cfg}, nil
}

// contextParams checks the requested device and locale against the
// project, defaulting to the main device and the default locale.
func (a *app) contextParams(device, locale string, editing bool, noColor bool, errOut io.Writer) (compiler.ContextParams, error) {
	global := a.compiler.Global()
	if device == "" {
		device = global.Devices.Main().ID
	} else if _, ok := global.Devices.Find(device); !ok {
		fmt.Fprint(errOut, ui.UnknownError("device", device, global.Devices.IDs(), noColor))
		return compiler.ContextParams{}, fmt.Errorf("unknown device %q", device)
	}

	if locale == "" {
		locale = global.DefaultLocale()
	} else {
		codes := make([]string, len(global.Locales))
		found := false
		for i, l := range global.Locales {
			codes[i] = l.Code
			found = found || l.Code == locale
		}
		if !found {
			fmt.Fprint(errOut, ui.UnknownError("locale", locale, codes, noColor))
			return compiler.ContextParams{}, fmt.Errorf("unknown locale %q", locale)
		}
	}
	return compiler.ContextParams{Device: device, Locale: locale, IsEditing: editing}, nil
}

// printDiagnostics writes diagnostics for a terminal and reports whether
// any of them is an error.
func printDiagnostics(w io.Writer, diags []cerrors.CompilerError) bool {
	if len(diags) == 0 {
		return false
	}
	rec := cerrors.NewErrorRecovery()
	rec.RecoverMultiple(diags)
	fmt.Fprint(w, rec.FormatForTerminal())
	return rec.HasErrors()
}
