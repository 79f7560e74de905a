package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/easyblocks/easyblocks/internal/cli/config"
	"github.com/easyblocks/easyblocks/internal/components"
	"github.com/easyblocks/easyblocks/internal/editor"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/store"
	"github.com/easyblocks/easyblocks/internal/web/cache"
	"github.com/easyblocks/easyblocks/internal/web/middleware"
	"github.com/easyblocks/easyblocks/internal/web/profiling"
	"github.com/easyblocks/easyblocks/internal/web/ratelimit"
	"github.com/easyblocks/easyblocks/internal/web/router"
	"github.com/easyblocks/easyblocks/internal/web/server"
	"github.com/easyblocks/easyblocks/internal/web/websocket"
)

type serveOptions struct {
	host      string
	port      int
	profiling bool
}

// NewServeCommand creates the serve command
func NewServeCommand(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API and editor server",
		Long: `Serve the compile and render API, the document store and live editor
sessions.

Routes:
  GET  /healthz                      health check
  GET  /metrics                      Prometheus metrics
  GET  /ws                           editor websocket
  GET  /api/definitions              component definitions
  POST /api/compile                  compile a config
  POST /api/render                   render a config to HTML
  GET  /api/documents                list documents
  GET  /api/documents/{id}           fetch a document
  PUT  /api/documents/{id}           save a document
  GET  /api/documents/{id}/render    render a stored document

Examples:
  easyblocks serve
  easyblocks serve --port 8080
  EASYBLOCKS_DATABASE_DRIVER=memory easyblocks serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "Listen host (default: server.host)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (default: server.port)")
	cmd.Flags().BoolVar(&opts.profiling, "profiling", false, "Mount pprof under /debug/pprof")

	return cmd
}

func runServe(cmd *cobra.Command, g *globalOptions, opts *serveOptions) error {
	cfg, err := loadConfig(g, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.profiling {
		cfg.Server.Profiling = true
	}
	log := logger.NewStructured(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.WithError(err).Warn("close failed", nil)
			}
		}
	}
	// stores and caches close once the server has drained
	defer closeAll()

	c, redisClient, err := openCache(cfg)
	if err != nil {
		return err
	}
	if closer, ok := c.(io.Closer); ok {
		closers = append(closers, closer.Close)
	}

	a, err := newApp(cfg, log, c)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, st.Close)

	limiter, err := newLimiter(cfg, redisClient)
	if err != nil {
		return err
	}
	if tb, ok := limiter.(*ratelimit.TokenBucket); ok {
		closers = append(closers, tb.Close)
	}

	wsConfig := websocket.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		origins := cfg.Server.CORSOrigins
		wsConfig.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(origin, origins)
		}
	}
	ws := websocket.NewServer(ctx, wsConfig, log)

	manager := editor.NewManager(editor.ManagerOptions{
		Options: editor.Options{
			Compiler: a.compiler,
			Engine:   a.engine,
			Runtime:  a.lib.Runtime,
			Store:    st,
			Logger:   log,
		},
		ProjectID:    cfg.Project.ID,
		RootTemplate: components.StackID,
	})
	manager.RegisterHandlers(ws.Hub)
	ws.Start()

	routes := router.Config{
		Renderer:    a.renderer,
		Store:       st,
		ProjectID:   cfg.Project.ID,
		Cache:       c,
		CacheTTL:    cfg.Cache.TTL,
		Websocket:   ws.Handler(),
		RateLimiter: limiter,
		Logger:      log,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		routes.CORS = &cors
	}
	if cfg.Server.Profiling {
		routes.Profiling = profiling.DefaultConfig()
	}

	srvConfig := server.DefaultConfig(router.New(routes))
	srvConfig.Address = cfg.Server.Addr()
	srvConfig.Logger = log
	if cfg.Server.TLSCert != "" {
		srvConfig.TLS = &server.TLSConfig{
			CertFile: cfg.Resolve(cfg.Server.TLSCert),
			KeyFile:  cfg.Resolve(cfg.Server.TLSKey),
		}
	}
	srv, err := server.New(srvConfig)
	if err != nil {
		return err
	}

	shutdown := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  log,
	})
	shutdown.RegisterHook(func(context.Context) error {
		manager.Close()
		ws.Shutdown()
		return nil
	})
	if err := srv.Listen(); err != nil {
		_ = shutdown.Shutdown()
		return err
	}

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "easyblocks serving project %q on %s://%s\n", cfg.Project.ID, srv.Scheme(), srv.Addr())
	return shutdown.Run(ctx)
}

// openCache returns nil when caching is disabled. The redis client is
// returned for the rate limiter to share.
func openCache(cfg *config.Config) (cache.Cache, *redis.Client, error) {
	cc := cache.DefaultCacheConfig()
	cc.DefaultTTL = cfg.Cache.TTL

	switch cfg.Cache.Backend {
	case "none":
		return nil, nil, nil
	case "redis":
		rc, err := cache.NewRedisCacheWithConfig(cache.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			CacheConfig: cc,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, rc.Client(), nil
	}
	return cache.NewMemoryCacheWithConfig(cc), nil, nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	if cfg.Database.Driver == "memory" {
		return store.NewMemoryStore(), nil
	}
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	st, err := store.Open(openCtx, cfg.Database.Driver, cfg.Database.URL, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Database.Driver, err)
	}
	return st, nil
}

// newLimiter returns nil when rate limiting is off. Limits are shared
// across instances when the cache runs on redis.
func newLimiter(cfg *config.Config, client *redis.Client) (ratelimit.Limiter, error) {
	if cfg.Server.RateLimit <= 0 {
		return nil, nil
	}
	if client != nil {
		return ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Client: client,
			Limit:  cfg.Server.RateLimit,
			Window: time.Minute,
		})
	}
	tb := ratelimit.DefaultTokenBucketConfig()
	tb.Capacity = cfg.Server.RateLimit
	return ratelimit.NewTokenBucket(tb), nil
}
