package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
)

// errDiagnostics is returned when a compile produced errors. The
// diagnostics themselves have already been printed.
var errDiagnostics = errors.New("compilation produced errors")

type compileOptions struct {
	device  string
	locale  string
	editing bool
	out     string
	json    bool
}

type compileOutput struct {
	Compiled        *model.CompiledComponentConfig `json:"compiled"`
	Meta            *model.Metadata                `json:"meta"`
	ConfigAfterAuto *model.ComponentConfig         `json:"configAfterAuto,omitempty"`
	Diagnostics     []cerrors.CompilerError        `json:"diagnostics"`
}

// NewCompileCommand creates the compile command
func NewCompileCommand(g *globalOptions) *cobra.Command {
	opts := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile <document.json>",
		Short: "Compile a document and print the compiled tree",
		Long: `Compile a document or bare config against the project definitions.

External resources are resolved with the configured fetcher. The compiled
tree and its metadata are printed as JSON; diagnostics go to stderr.

Examples:
  easyblocks compile pages/home.json
  easyblocks compile pages/home.json --device sm --locale de
  easyblocks compile pages/home.json --editing --out compiled.json
  easyblocks compile pages/home.json --json   # diagnostics as JSON only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.device, "device", "d", "", "Device to compile for (default: main device)")
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", "", "Locale to compile for (default: project default)")
	cmd.Flags().BoolVar(&opts.editing, "editing", false, "Compile in editing mode with editor metadata")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the compiled JSON to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print only the diagnostics, as JSON")

	return cmd
}

func runCompile(cmd *cobra.Command, g *globalOptions, opts *compileOptions, path string) error {
	errOut := cmd.ErrOrStderr()
	cfg, err := loadConfig(g, errOut)
	if err != nil {
		return err
	}
	log := logger.NewStructured(cfg.Log.Level, cfg.Log.Format)

	a, err := newApp(cfg, log, nil)
	if err != nil {
		return err
	}
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	params, err := a.contextParams(opts.device, opts.locale, opts.editing, g.noColor, errOut)
	if err != nil {
		return err
	}

	res, err := a.renderer.Compile(cmd.Context(), doc.Config, params)
	if err != nil {
		return err
	}
	diags := res.Diagnostics
	if diags == nil {
		diags = []cerrors.CompilerError{}
	}

	if opts.json {
		out, err := cerrors.FormatErrorsAsJSON(diags)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		if res.HasErrors() {
			return errDiagnostics
		}
		return nil
	}

	data, err := json.MarshalIndent(compileOutput{
		Compiled:        res.Compiled,
		Meta:            res.Meta,
		ConfigAfterAuto: res.ConfigAfterAuto,
		Diagnostics:     diags,
	}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if opts.out != "" {
		if err := os.WriteFile(opts.out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.out, err)
		}
		color.New(color.FgGreen).Fprintf(errOut, "✓ compiled %s → %s\n", path, opts.out)
	} else {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	}

	if printDiagnostics(errOut, res.Diagnostics) {
		return errDiagnostics
	}
	return nil
}
