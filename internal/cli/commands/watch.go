package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/easyblocks/easyblocks/internal/cli/config"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/render"
	"github.com/easyblocks/easyblocks/internal/watch"
	"github.com/easyblocks/easyblocks/internal/web/server"
)

type watchOptions struct {
	renderOptions
	serve    string
	debounce time.Duration
}

// NewWatchCommand creates the watch command
func NewWatchCommand(g *globalOptions) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch <document.json>",
		Short: "Re-render a document whenever it or the project changes",
		Long: `Render a document and render it again whenever the document, the
project definitions, the fixtures or the config file change.

With --serve the page is served with a live reload script; open previews
reload after every successful render. A failed render keeps the last good
page.

Examples:
  easyblocks watch pages/home.json --serve localhost:4000
  easyblocks watch pages/home.json --out dist/home.html --device sm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.device, "device", "d", "", "Device to render for (default: main device)")
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", "", "Locale to render (default: project default)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Page title (default: document id)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the HTML to a file after every render")
	cmd.Flags().StringVar(&opts.serve, "serve", "", "Serve a live preview on this address, e.g. localhost:4000")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-rendering")

	return cmd
}

// watchedFiles lists the document and whichever project files exist.
func watchedFiles(cfg *config.Config, doc string) []string {
	files := []string{doc}
	for _, path := range []string{cfg.File, cfg.Resolve(cfg.Project.Definitions), cfg.Resolve(cfg.Resources.Fixtures)} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}
	return files
}

func runWatch(cmd *cobra.Command, g *globalOptions, opts *watchOptions, path string) error {
	cfg, err := loadConfig(g, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	log := logger.NewStructured(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	success := color.New(color.FgGreen)
	failure := color.New(color.FgRed, color.Bold)
	errOut := cmd.ErrOrStderr()

	rebuilder := &watch.Rebuilder{
		Out: opts.out,
		Log: log,
		// the whole pipeline is rebuilt so definition changes apply
		Build: func(ctx context.Context) (*render.Output, error) {
			cfg, err := loadConfig(g, errOut)
			if err != nil {
				return nil, err
			}
			a, err := newApp(cfg, log, nil)
			if err != nil {
				return nil, err
			}
			return a.renderFile(ctx, g, path, &opts.renderOptions, errOut)
		},
		OnResult: func(out *render.Output, files []string, took time.Duration, err error) {
			stamp := time.Now().Format("15:04:05")
			if err != nil {
				failure.Fprintf(errOut, "[%s] ✗ %v\n", stamp, err)
				return
			}
			success.Fprintf(errOut, "[%s] ✓ rendered %s in %s\n", stamp, filepath.Base(path), took.Round(time.Millisecond))
			printDiagnostics(errOut, out.Diagnostics)
		},
	}

	var srv *server.Server
	if opts.serve != "" {
		preview := watch.NewPreview(ctx, log)
		defer preview.Close()
		rebuilder.Preview = preview

		srvConfig := server.DefaultConfig(preview.Handler())
		srvConfig.Address = opts.serve
		srvConfig.Logger = log
		if srv, err = server.New(srvConfig); err != nil {
			return err
		}
		if err := srv.Listen(); err != nil {
			return err
		}
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("preview server failed", nil)
			}
		}()
		color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "preview on http://%s\n", srv.Addr())
	}

	// a failed first render is reported and watching continues
	_ = rebuilder.Rebuild(ctx, nil)

	files := watchedFiles(cfg, path)
	fw, err := watch.NewFileWatcher(files, opts.debounce, func(changed []string) {
		_ = rebuilder.Rebuild(ctx, changed)
	}, log)
	if err != nil {
		return err
	}
	fw.Start()
	defer fw.Stop()

	fmt.Fprintf(errOut, "watching %d files, press Ctrl+C to stop\n", len(files))
	<-ctx.Done()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}
