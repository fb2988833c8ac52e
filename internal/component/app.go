package component

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/melodi/internal/directive"
	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/logging"
	"github.com/conneroisu/melodi/internal/reactive"
	"github.com/conneroisu/melodi/internal/registry"
)

// ErrMountTargetNotFound is returned by Mount when the target does not resolve
// to an element. Match it with errors.Is.
var ErrMountTargetNotFound = errors.NewMountError(errors.ErrCodeMountTargetNotFound, "mount target not found", nil)

// DefaultFetchLimit bounds concurrent template fetches during a mount pass.
const DefaultFetchLimit = 8

// App owns a document, the tag registry and every mounted instance. An App is
// driven from a single goroutine: Mount, event dispatch and Flush must not run
// concurrently.
type App struct {
	doc        *dom.Document
	components *registry.Registry[*Definition]
	plugins    []Plugin
	scheduler  *reactive.Scheduler
	loader     TemplateLoader
	processor  *directive.Processor
	procOpts   directive.Options
	logger     logging.Logger
	errs       *errors.ErrorHandler
	fetchLimit int

	globals map[string]any

	store        Store
	storeCancel  func()
	sweepPending bool

	mounted []*Instance
}

// Option configures an App
type Option func(*App)

// WithDocument mounts into doc instead of an empty page.
func WithDocument(doc *dom.Document) Option {
	return func(a *App) { a.doc = doc }
}

// WithStore installs a shared store.
func WithStore(s Store) Option {
	return func(a *App) { a.SetStore(s) }
}

// WithLoader sets the loader used for URL templates.
func WithLoader(l TemplateLoader) Option {
	return func(a *App) { a.loader = l }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithScheduler shares a scheduler between apps.
func WithScheduler(s *reactive.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithRawInterpolation splices interpolated values into text as markup.
func WithRawInterpolation(raw bool) Option {
	return func(a *App) { a.procOpts.RawInterpolation = raw }
}

// WithFetchLimit bounds concurrent template fetches; n <= 0 means unbounded.
func WithFetchLimit(n int) Option {
	return func(a *App) { a.fetchLimit = n }
}

// New creates an App. Without WithDocument it works on an empty page.
func New(opts ...Option) *App {
	a := &App{
		components: registry.New[*Definition](),
		scheduler:  reactive.NewScheduler(),
		logger:     logging.Discard(),
		fetchLimit: DefaultFetchLimit,
		loader:     &HTTPLoader{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.doc == nil {
		doc, err := dom.ParseString("<html><head></head><body></body></html>")
		if err != nil {
			panic(err)
		}
		a.doc = doc
	}
	a.processor = directive.New(a.procOpts)
	a.errs = errors.NewErrorHandler(a.logger)
	return a
}

// Component registers def under tag. Tags are matched case-insensitively, as
// the HTML parser lower-cases element names.
func (a *App) Component(tag string, def *Definition) *App {
	a.components.Register(strings.ToLower(tag), def)
	return a
}

// Components exposes the tag registry, for example to watch registrations.
func (a *App) Components() *registry.Registry[*Definition] { return a.components }

// Definition returns the definition registered for tag.
func (a *App) Definition(tag string) (*Definition, bool) {
	return a.components.Get(strings.ToLower(tag))
}

// Tags returns the registered tags in registration order.
func (a *App) Tags() []string { return a.components.Names() }

// Use installs a plugin.
func (a *App) Use(p Plugin) error {
	if err := p.Install(a); err != nil {
		return fmt.Errorf("install plugin: %w", err)
	}
	a.plugins = append(a.plugins, p)
	return nil
}

// Provide makes value available to every instance mounted afterwards under
// key, for example $router.
func (a *App) Provide(key string, value any) {
	if a.globals == nil {
		a.globals = make(map[string]any)
	}
	a.globals[key] = value
}

// SetStore replaces the shared store. Every write to it schedules one render
// of every mounted instance on the next Flush. Instances mounted earlier keep
// the $store they were created with.
func (a *App) SetStore(s Store) {
	if a.storeCancel != nil {
		a.storeCancel()
		a.storeCancel = nil
	}
	a.store = s
	if s != nil {
		a.storeCancel = s.OnChange(func(reactive.Change) { a.scheduleSweep() })
	}
}

// Store returns the shared store, or nil.
func (a *App) Store() Store { return a.store }

// Document returns the document the app mounts into.
func (a *App) Document() *dom.Document { return a.doc }

// Logger returns the app logger.
func (a *App) Logger() logging.Logger { return a.logger }

// Scheduler returns the render scheduler.
func (a *App) Scheduler() *reactive.Scheduler { return a.scheduler }

// Instances returns the mounted instances in mount order.
func (a *App) Instances() []*Instance {
	out := make([]*Instance, len(a.mounted))
	copy(out, a.mounted)
	return out
}

// InstanceOf returns the instance mounted on host, or nil.
func (a *App) InstanceOf(host *html.Node) *Instance {
	inst, _ := a.doc.Owner(host).(*Instance)
	return inst
}

// HTML serializes the document.
func (a *App) HTML() string { return a.doc.HTML() }

// Flush runs every pending render. Renders that keep scheduling more renders
// run until ctx is done.
func (a *App) Flush(ctx context.Context) error {
	return a.scheduler.Flush(ctx)
}

// Mount discovers registered custom elements under target (a selector or an
// *html.Node) and mounts each one. Only an unresolved target is an error; a
// failing component is logged and its siblings still mount.
func (a *App) Mount(ctx context.Context, target any) error {
	root := a.resolveTarget(target)
	if root == nil {
		return errors.NewMountError(errors.ErrCodeMountTargetNotFound,
			fmt.Sprintf("mount target %v not found", target), nil)
	}
	perf := logging.StartOperation(a.logger, "mount")

	var hosts []hostRef
	if root.Type == html.ElementNode && !a.doc.IsMounted(root) {
		if def, ok := a.Definition(root.Data); ok {
			hosts = append(hosts, hostRef{tag: root.Data, node: root, def: def})
		}
	}
	hosts = append(hosts, a.collect(root, nil, a.Tags(), a.Definition)...)
	pre := a.prefetch(ctx, hosts)

	for _, h := range hosts {
		if a.doc.IsMounted(h.node) || !dom.Contains(root, h.node) {
			continue
		}
		if _, err := a.mountInstance(ctx, h.node, h.tag, h.def, nil, pre); err != nil {
			a.errs.Handle(ctx, err)
		}
	}
	perf.End(ctx, "hosts", len(hosts), "instances", len(a.mounted))
	return nil
}

func (a *App) resolveTarget(target any) *html.Node {
	switch t := target.(type) {
	case string:
		return a.doc.QuerySelector(t)
	case *html.Node:
		return t
	case nil:
		return a.doc.Body()
	default:
		return nil
	}
}

// Unmount tears down every mounted instance.
func (a *App) Unmount() {
	for idx := len(a.mounted) - 1; idx >= 0; idx-- {
		if idx >= len(a.mounted) {
			continue
		}
		a.mounted[idx].Unmount()
	}
}

func (a *App) forget(inst *Instance) {
	for idx, m := range a.mounted {
		if m == inst {
			a.mounted = append(a.mounted[:idx], a.mounted[idx+1:]...)
			return
		}
	}
}

// scheduleSweep queues one render of every mounted instance. Store writes made
// before the sweep runs share it.
func (a *App) scheduleSweep() {
	if a.sweepPending {
		return
	}
	a.sweepPending = true
	a.scheduler.Defer(func(ctx context.Context) {
		a.sweepPending = false
		for _, inst := range a.Instances() {
			inst.requestRender()
		}
	})
}

type hostRef struct {
	tag  string
	node *html.Node
	def  *Definition
}

// collect finds unmounted elements below boundary for each tag in order,
// skipping those nested in another unmounted custom element or in a
// <template> element. Ancestors are checked up to stop, or to the top of the
// tree when stop is nil.
func (a *App) collect(boundary, stop *html.Node, tags []string, resolve func(string) (*Definition, bool)) []hostRef {
	known := make(map[string]bool, len(tags))
	for _, t := range tags {
		known[t] = true
	}

	var hosts []hostRef
	for _, tag := range tags {
		def, ok := resolve(tag)
		if !ok {
			continue
		}
		for _, n := range dom.QuerySelectorAll(boundary, tag) {
			if a.doc.IsMounted(n) || a.shadowed(n, stop, known) {
				continue
			}
			hosts = append(hosts, hostRef{tag: tag, node: n, def: def})
		}
	}
	return hosts
}

func (a *App) shadowed(n, stop *html.Node, known map[string]bool) bool {
	for p := n.Parent; p != nil && p != stop; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if p.Data == "template" {
			return true
		}
		if known[p.Data] && !a.doc.IsMounted(p) {
			return true
		}
	}
	return false
}

// prefetch fetches the URL templates the hosts need, concurrently. A failed
// fetch is logged and recorded as empty markup.
func (a *App) prefetch(ctx context.Context, hosts []hostRef) map[string]string {
	var urls []string
	seen := make(map[string]bool)
	for _, h := range hosts {
		t := h.def.Template
		if t.Inline != "" || t.Selector != "" || t.URL == "" || seen[t.URL] {
			continue
		}
		seen[t.URL] = true
		urls = append(urls, t.URL)
	}
	if len(urls) == 0 {
		return nil
	}

	var mu sync.Mutex
	out := make(map[string]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	if a.fetchLimit > 0 {
		g.SetLimit(a.fetchLimit)
	}
	for _, u := range urls {
		g.Go(func() error {
			markup, err := a.fetch(gctx, u)
			if err != nil {
				a.errs.Handle(gctx, errors.NewFetchError(u, err))
				markup = ""
			}
			mu.Lock()
			out[u] = markup
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *App) fetch(ctx context.Context, url string) (string, error) {
	if a.loader == nil {
		return "", fmt.Errorf("no template loader configured")
	}
	return a.loader.Load(ctx, url)
}
