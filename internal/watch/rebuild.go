package watch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/render"
)

// BuildFunc renders the watched document from scratch.
type BuildFunc func(ctx context.Context) (*render.Output, error)

// Rebuilder runs a build after each change and hands the page to its
// outputs. Builds never overlap.
type Rebuilder struct {
	Build BuildFunc

	// Out is written with the page when set.
	Out string
	// Preview is published to when set.
	Preview *Preview

	// OnResult is called after every build, for terminal output.
	OnResult func(out *render.Output, files []string, took time.Duration, err error)

	Log logger.Logger

	mu sync.Mutex
}

// Rebuild builds once. files names what triggered the build and is only
// reported.
func (r *Rebuilder) Rebuild(ctx context.Context, files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := logger.OrNop(r.Log)

	start := time.Now()
	out, err := r.Build(ctx)
	if err == nil && r.Out != "" {
		if werr := os.WriteFile(r.Out, []byte(out.HTML), 0o644); werr != nil {
			err = fmt.Errorf("write %s: %w", r.Out, werr)
		}
	}
	took := time.Since(start)

	if err != nil {
		log.WithError(err).Warn("rebuild failed", map[string]interface{}{"files": files})
		if r.Preview != nil {
			r.Preview.PublishError(err, files)
		}
	} else {
		log.Info("rebuilt", map[string]interface{}{
			"files":       files,
			"diagnostics": len(out.Diagnostics),
			"took":        took.String(),
		})
		if r.Preview != nil {
			r.Preview.Publish(out.HTML, files, out.Diagnostics)
		}
	}

	if r.OnResult != nil {
		r.OnResult(out, files, took, err)
	}
	return err
}
