package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyblocks/easyblocks/internal/cli/config"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/resource"
	"github.com/easyblocks/easyblocks/internal/store"
	"github.com/easyblocks/easyblocks/internal/web/cache"
	"github.com/easyblocks/easyblocks/internal/web/ratelimit"
)

// run executes the root command and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// initProject scaffolds a project and returns its directory.
func initProject(t *testing.T, template string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "shop")
	_, _, err := run(t, "init", dir, "--template", template, "--database", "memory")
	require.NoError(t, err)
	return dir
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "easyblocks", cmd.Use)

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"version", "init", "serve", "compile", "render", "watch", "definitions"} {
		assert.True(t, names[want], want)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.2.3-test"
	t.Cleanup(func() { Version = "dev" })

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "easyblocks version: 1.2.3-test")
	assert.Contains(t, out, "Go version: ")
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shop")
	out, _, err := run(t, "init", dir, "--template", "landing")
	require.NoError(t, err)
	assert.Contains(t, out, `✓ created landing project "shop"`)
	assert.Contains(t, out, "cd "+dir)

	for _, f := range []string{"easyblocks.yml", "easyblocks.project.yml", "fixtures.yml", "pages/home.json"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	_, _, err = run(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")
	_, _, err = run(t, "init", dir, "--force")
	assert.NoError(t, err)
}

func TestInit_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, stderr, err := run(t, "init", dir, "--template", "landng")
	assert.Error(t, err)
	assert.Contains(t, stderr, "Did you mean: landing?")

	_, _, err = run(t, "init", dir, "--id", "../escape")
	assert.ErrorContains(t, err, "project id")

	_, _, err = run(t, "init", dir, "--id", "shop", "--database", "mongo")
	assert.ErrorContains(t, err, "database must be one of")
}

func TestValidateProjectID(t *testing.T) {
	assert.NoError(t, validateProjectID("my-site_2"))
	assert.Error(t, validateProjectID(""))
	assert.Error(t, validateProjectID("a b"))
	assert.Error(t, validateProjectID("../x"))
}

func TestCompile(t *testing.T) {
	dir := initProject(t, "landing")
	conf := filepath.Join(dir, "easyblocks.yml")
	page := filepath.Join(dir, "pages", "home.json")

	out, _, err := run(t, "--config", conf, "compile", page)
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	vars := res["meta"].(map[string]any)["vars"].(map[string]any)
	assert.Equal(t, "lg", vars["device"])
	assert.Equal(t, "en", vars["locale"])
	assert.NotNil(t, res["compiled"])

	out, _, err = run(t, "--config", conf, "compile", page, "--device", "sm", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"diagnostics"`)

	target := filepath.Join(t.TempDir(), "compiled.json")
	_, stderr, err := run(t, "--config", conf, "compile", page, "--out", target)
	require.NoError(t, err)
	assert.FileExists(t, target)
	assert.Contains(t, stderr, "compiled")
}

func TestCompile_UnknownDeviceAndLocale(t *testing.T) {
	dir := initProject(t, "landing")
	conf := filepath.Join(dir, "easyblocks.yml")
	page := filepath.Join(dir, "pages", "home.json")

	_, stderr, err := run(t, "--config", conf, "compile", page, "--device", "mdd")
	assert.ErrorContains(t, err, `unknown device "mdd"`)
	assert.Contains(t, stderr, "UNKNOWN DEVICE: mdd")
	assert.Contains(t, stderr, "Did you mean: md?")

	_, stderr, err = run(t, "--config", conf, "compile", page, "--locale", "fr")
	assert.ErrorContains(t, err, `unknown locale "fr"`)
	assert.Contains(t, stderr, "UNKNOWN LOCALE: fr")
}

func TestCompile_BadInput(t *testing.T) {
	dir := initProject(t, "blank")
	conf := filepath.Join(dir, "easyblocks.yml")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"documentId": "x"}`), 0o644))
	_, _, err := run(t, "--config", conf, "compile", bad)
	assert.Error(t, err)

	_, _, err = run(t, "--config", conf, "compile", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, stderr, err := run(t, "--config", filepath.Join(dir, "nope.yml"), "compile", bad)
	assert.EqualError(t, err, "invalid configuration")
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
}

func TestRender(t *testing.T) {
	dir := initProject(t, "landing")
	conf := filepath.Join(dir, "easyblocks.yml")
	page := filepath.Join(dir, "pages", "home.json")

	target := filepath.Join(t.TempDir(), "home.html")
	_, stderr, err := run(t, "--config", conf, "render", page, "--out", target, "--title", "Shop")
	require.NoError(t, err)
	assert.Contains(t, stderr, "✓ rendered")

	html, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Shop</title>")
	assert.Contains(t, string(html), "Welcome to shop")
	assert.Contains(t, string(html), "Built with easyblocks")

	out, _, err := run(t, "--config", conf, "render", page, "--fragment")
	require.NoError(t, err)
	assert.NotContains(t, out, "<html")
	assert.Contains(t, out, "Built with easyblocks")
}

func TestReadDocument_BareConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "about.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"_template": "Stack", "_id": "root", "items": []}`), 0o644))

	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "about", doc.DocumentID)
	assert.Equal(t, "Stack", doc.Config.Template)

	require.NoError(t, os.WriteFile(path, []byte(`{"_template": "Stack", "_id": "a", "items": [{"_template": "Text", "_id": "a"}]}`), 0o644))
	_, err = readDocument(path)
	assert.ErrorContains(t, err, "duplicate _id")

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = readDocument(path)
	assert.Error(t, err)
}

func TestDefinitions(t *testing.T) {
	dir := initProject(t, "landing")
	conf := filepath.Join(dir, "easyblocks.yml")

	out, _, err := run(t, "--config", conf, "definitions")
	require.NoError(t, err)
	assert.Contains(t, out, "Hero")
	assert.Contains(t, out, "Stack")
	assert.Contains(t, out, "Devices:")
	assert.Contains(t, out, "sm, md, lg")

	out, _, err = run(t, "--config", conf, "definitions", "Hero")
	require.NoError(t, err)
	assert.Contains(t, out, "title")
	assert.Contains(t, out, "component-collection")

	_, stderr, err := run(t, "--config", conf, "definitions", "Heroo")
	assert.Error(t, err)
	assert.Contains(t, stderr, "Did you mean: Hero?")

	out, _, err = run(t, "--config", conf, "definitions", "--json")
	require.NoError(t, err)
	var defs map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	assert.NotEmpty(t, defs["components"])
}

func TestNewApp_WithoutDefinitions(t *testing.T) {
	cfg, err := config.Load(filepath.Join(initProject(t, "blank"), "easyblocks.yml"))
	require.NoError(t, err)
	cfg.Project.Definitions = "missing.yml"
	cfg.Resources.Fixtures = "missing.yml"

	a, err := newApp(cfg, logger.NewNoOpLogger(), nil)
	require.NoError(t, err)
	assert.Equal(t, "en", a.compiler.Global().DefaultLocale())

	res, err := unconfiguredFetcher.Fetch(context.Background(), map[string]resource.FetchInput{"r": {}})
	require.NoError(t, err)
	assert.Equal(t, "no resource fetcher configured", res["r"].Error)
}

func TestOpenCache(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{Backend: "none"}}
	c, client, err := openCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, client)

	cfg.Cache.Backend = "memory"
	c, _, err = openCache(cfg)
	require.NoError(t, err)
	require.IsType(t, &cache.MemoryCache{}, c)
	c.(*cache.MemoryCache).Close()

	mr := miniredis.RunT(t)
	cfg.Cache.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	c, client, err = openCache(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.IsType(t, &cache.RedisCache{}, c)
	c.(*cache.RedisCache).Close()
}

func TestNewLimiter(t *testing.T) {
	cfg := &config.Config{}
	l, err := newLimiter(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	cfg.Server.RateLimit = 10
	l, err = newLimiter(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &ratelimit.TokenBucket{}, l)
	l.(*ratelimit.TokenBucket).Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	l, err = newLimiter(cfg, client)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.RedisLimiter{}, l)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, &config.Config{Database: config.DatabaseConfig{Driver: "memory"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)

	st, err = openStore(ctx, &config.Config{Database: config.DatabaseConfig{Driver: "sqlite3", URL: ":memory:"}}, logger.NewNoOpLogger())
	require.NoError(t, err)
	defer st.Close()
	docs, err := st.List(ctx, "shop")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDSNFor(t *testing.T) {
	assert.Equal(t, "easyblocks.db", dsnFor("sqlite3", "shop"))
	assert.Equal(t, "", dsnFor("memory", "shop"))
	assert.Equal(t, "postgres://localhost:5432/shop?sslmode=disable", dsnFor("postgres", "shop"))
}

func TestWatchedFiles(t *testing.T) {
	dir := initProject(t, "landing")
	cfg, err := config.Load(filepath.Join(dir, "easyblocks.yml"))
	require.NoError(t, err)

	files := watchedFiles(cfg, "pages/home.json")
	require.Len(t, files, 4)
	assert.Equal(t, "pages/home.json", files[0])
	assert.Equal(t, filepath.Join(dir, "easyblocks.project.yml"), files[2])
}
