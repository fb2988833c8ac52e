// Package renderer builds a mounted application from a page and a manifest
// and serializes it.
//
// A Source describes where the page, manifest, templates and persisted store
// state live. Build returns a fresh App for every call, so the live server can
// give each session its own document while the render command mounts once and
// prints the result.
package renderer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/config"
	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/logging"
	"github.com/conneroisu/melodi/internal/manifest"
	"github.com/conneroisu/melodi/internal/router"
	"github.com/conneroisu/melodi/internal/store"
)

// Source describes an application on disk
type Source struct {
	// Page is the HTML document to mount into. Empty means an empty page.
	Page string
	// Manifest declares components, store and routes. A missing default
	// manifest is treated as empty.
	Manifest string
	// Target selects the mount root; empty mounts the whole body.
	Target string
	Raw    bool

	Loader    component.TemplateLoader
	Persister store.Persister
	Logger    logging.Logger
}

// Built is one mounted application
type Built struct {
	App      *component.App
	Manifest *manifest.Manifest
	Store    *store.Store
	Router   *router.Router
}

// FromConfig maps the app, templates and store sections onto a Source
func FromConfig(cfg *config.Config, logger logging.Logger) (*Source, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	src := &Source{
		Page:     cfg.App.Page,
		Manifest: cfg.App.Manifest,
		Target:   cfg.App.Target,
		Raw:      cfg.App.RawInterpolation,
		Logger:   logger.WithComponent("renderer"),
	}

	switch {
	case cfg.Templates.Dir != "":
		src.Loader = &component.FSLoader{FS: os.DirFS(cfg.Templates.Dir)}
	default:
		src.Loader = &component.HTTPLoader{BaseURL: cfg.Templates.BaseURL, Timeout: cfg.Templates.Timeout}
	}

	if cfg.Store.Persist != "" {
		p, err := store.NewFilePersister(cfg.Store.Persist)
		if err != nil {
			return nil, fmt.Errorf("store persistence: %w", err)
		}
		src.Persister = p
	}
	return src, nil
}

// LoadManifest reads the manifest. A missing file at the default path yields
// an empty manifest.
func (s *Source) LoadManifest() (*manifest.Manifest, error) {
	if s.Manifest == "" {
		return &manifest.Manifest{}, nil
	}
	m, err := manifest.Load(s.Manifest)
	if err != nil {
		if filepath.Base(s.Manifest) == config.DefaultManifest && errors.Is(err, fs.ErrNotExist) {
			return &manifest.Manifest{Path: s.Manifest}, nil
		}
		return nil, err
	}
	return m, nil
}

func (s *Source) document() (*dom.Document, error) {
	if s.Page == "" {
		return dom.ParseString("")
	}
	f, err := os.Open(s.Page)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return dom.Parse(f)
}

// Build parses the page, registers the manifest's components, store and
// routes on a new App, then mounts and flushes it.
func (s *Source) Build(ctx context.Context) (*Built, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	perf := logging.StartOperation(logger, "build")

	m, err := s.LoadManifest()
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	doc, err := s.document()
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	opts := []component.Option{
		component.WithDocument(doc),
		component.WithLogger(logger),
		component.WithRawInterpolation(s.Raw),
	}
	if s.Loader != nil {
		opts = append(opts, component.WithLoader(s.Loader))
	}
	app := component.New(opts...)
	built := &Built{App: app, Manifest: m}

	if built.Store, err = m.NewStore(ctx, s.Persister); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	if built.Store != nil {
		if err := app.Use(built.Store); err != nil {
			return nil, err
		}
	}
	if err := m.Register(app); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	if built.Router = m.Router(); built.Router != nil {
		if err := built.Router.Install(app); err != nil {
			return nil, err
		}
	}

	var target any
	if s.Target != "" {
		target = s.Target
	}
	if err := app.Mount(ctx, target); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	if err := app.Flush(ctx); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	perf.End(ctx, "components", len(app.Instances()))
	return built, nil
}

// Render builds the application and writes the resulting document to w
func (s *Source) Render(ctx context.Context, w io.Writer) error {
	built, err := s.Build(ctx)
	if err != nil {
		return err
	}
	defer built.App.Unmount()
	return built.App.Document().Render(w)
}
