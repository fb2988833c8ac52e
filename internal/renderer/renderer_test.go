package renderer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/config"
	"github.com/conneroisu/melodi/internal/dom"
)

const testManifest = `
components:
  h-hello:
    template: {url: hello.html}
    props: [name]
  h-count:
    template: "<b>[[ $store.count ]]</b>"
store:
  state: {count: 2}
routes:
  - {path: "/", tag: h-hello}
`

func writeProject(t *testing.T, page string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(page), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "melodi.yaml"), []byte(testManifest), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", "hello.html"),
		[]byte(`<p>hello [[ name ]]</p>`), 0o644))
	return dir
}

func TestFromConfigAndRender(t *testing.T) {
	dir := writeProject(t, `<html><body><div id="app"><h-hello name="ada"></h-hello><h-count></h-count></div><h-count></h-count></body></html>`)

	cfg := &config.Config{
		App: config.AppConfig{
			Page:     filepath.Join(dir, "index.html"),
			Manifest: filepath.Join(dir, "melodi.yaml"),
			Target:   "#app",
		},
		Templates: config.TemplatesConfig{Dir: filepath.Join(dir, "templates")},
		Store:     config.StoreConfig{Persist: filepath.Join(dir, "state.yaml")},
	}
	src, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &component.FSLoader{}, src.Loader)
	require.NotNil(t, src.Persister)

	var buf bytes.Buffer
	require.NoError(t, src.Render(context.Background(), &buf))

	doc, err := dom.ParseString(buf.String())
	require.NoError(t, err)
	assert.Equal(t, "hello ada", dom.TextContent(doc.QuerySelector("#app h-hello p")))
	assert.Equal(t, "2", dom.TextContent(doc.QuerySelector("#app h-count b")))
	// outside the target nothing is mounted
	assert.Nil(t, doc.QuerySelector("body > h-count b"))
}

func TestBuildRouterAndStore(t *testing.T) {
	dir := writeProject(t, `<router-view></router-view>`)
	src := &Source{
		Page:     filepath.Join(dir, "index.html"),
		Manifest: filepath.Join(dir, "melodi.yaml"),
		Loader:   &component.FSLoader{FS: os.DirFS(filepath.Join(dir, "templates"))},
	}

	built, err := src.Build(context.Background())
	require.NoError(t, err)
	defer built.App.Unmount()

	require.NotNil(t, built.Store)
	require.NotNil(t, built.Router)
	current, ok := built.Router.Current()
	require.True(t, ok)
	assert.Equal(t, "/", current.Path)
	assert.Contains(t, built.App.HTML(), "hello")
}

func TestMissingDefaultManifestIsEmpty(t *testing.T) {
	dir := t.TempDir()
	src := &Source{Manifest: filepath.Join(dir, config.DefaultManifest)}
	m, err := src.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Components.Len())

	src.Manifest = filepath.Join(dir, "other.yaml")
	_, err = src.LoadManifest()
	assert.Error(t, err)
}

func TestMissingPage(t *testing.T) {
	src := &Source{Page: filepath.Join(t.TempDir(), "nope.html")}
	_, err := src.Build(context.Background())
	assert.ErrorContains(t, err, "open page")
}
