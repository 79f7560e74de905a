package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/easyblocks/easyblocks/internal/cli/ui"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/render"
)

type renderOptions struct {
	device   string
	locale   string
	title    string
	out      string
	fragment bool
}

// NewRenderCommand creates the render command
func NewRenderCommand(g *globalOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <document.json>",
		Short: "Render a document to HTML",
		Long: `Compile a document, resolve its resources and render it to HTML.

Examples:
  easyblocks render pages/home.json > home.html
  easyblocks render pages/home.json --out dist/home.html --device sm
  easyblocks render pages/home.json --fragment`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.device, "device", "d", "", "Device to render for (default: main device)")
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", "", "Locale to render (default: project default)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Page title (default: document id)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the HTML to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.fragment, "fragment", false, "Render the component tree without a page around it")

	return cmd
}

func runRender(cmd *cobra.Command, g *globalOptions, opts *renderOptions, path string) error {
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
	out, err := a.renderFile(cmd.Context(), g, path, opts, errOut)
	if err != nil {
		return err
	}

	if opts.out != "" {
		if err := os.WriteFile(opts.out, []byte(out.HTML), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.out, err)
		}
		ui.WriteSuccess(errOut, fmt.Sprintf("rendered %s → %s", path, opts.out), g.noColor)
	} else if _, err := io.WriteString(cmd.OutOrStdout(), out.HTML); err != nil {
		return err
	}

	if printDiagnostics(errOut, out.Diagnostics) {
		return errDiagnostics
	}
	return nil
}

// renderFile reads and renders the document at path.
func (a *app) renderFile(ctx context.Context, g *globalOptions, path string, opts *renderOptions, errOut io.Writer) (*render.Output, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	params, err := a.contextParams(opts.device, opts.locale, false, g.noColor, errOut)
	if err != nil {
		return nil, err
	}

	ropts := render.Options{ContextParams: params}
	if !opts.fragment {
		ropts.Title = opts.title
		if ropts.Title == "" {
			ropts.Title = doc.DocumentID
		}
	}
	return a.renderer.Render(ctx, doc.Config, ropts)
}
