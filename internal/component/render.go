package component

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/logging"
	"github.com/conneroisu/melodi/internal/slot"
)

// Attribute names the render pass rewrites event and model shorthands to.
const (
	EventAttrPrefix = "data-on-"
	ModelAttr       = "data-model"
)

// requestRender schedules one render on the app scheduler. Requests made while
// one is already pending are coalesced.
func (i *Instance) requestRender() {
	if i.renderPending || (i.phase != PhaseMounted && i.phase != PhaseMounting) {
		return
	}
	i.renderPending = true
	i.app.scheduler.Defer(func(ctx context.Context) {
		if !i.renderPending {
			return
		}
		i.render(ctx, false, nil)
	})
}

// render runs one full render pass. initial selects the mount hooks.
func (i *Instance) render(ctx context.Context, initial bool, pre map[string]string) {
	if i.phase != PhaseMounted && !(initial && i.phase == PhaseMounting) {
		return
	}
	i.renderPending = false
	perf := logging.StartOperation(i.log, "render")

	markup := i.resolveTemplate(ctx, pre)
	nodes, err := dom.ParseFragment(markup, i.host)
	if err != nil {
		i.app.errs.Handle(ctx, errors.NewMountError(errors.ErrCodeMountFailed,
			"parse template", err).WithComponent(i.tag))
		nodes = nil
	}
	if strings.Contains(markup, "<slot") {
		nodes = slot.ProjectNodes(nodes, i.slotSource)
	}
	nodes = i.app.processor.Expand(nodes, i.scope())
	for _, n := range nodes {
		normalizeAttributes(n)
	}

	if initial {
		i.runHook(ctx, "beforeMount", i.def.Hooks.BeforeMount)
	} else {
		i.runHook(ctx, "beforeUpdate", i.def.Hooks.BeforeUpdate)
	}
	if i.phase == PhaseUnmounting || i.phase == PhaseUnmounted {
		return
	}

	i.unmountChildren()
	i.removeListeners(ctx)
	dom.ReplaceChildren(i.host, nodes...)
	i.attachEvents(ctx)
	i.attachBindings()
	i.mountNested(ctx, pre)
	i.renders++

	if initial {
		i.runHook(ctx, "mounted", i.def.Hooks.Mounted)
	} else {
		i.runHook(ctx, "updated", i.def.Hooks.Updated)
	}
	perf.End(ctx, "initial", initial, "render", i.renders)
}

// resolveTemplate returns the markup for this render. Fetch failures render as
// empty content.
func (i *Instance) resolveTemplate(ctx context.Context, pre map[string]string) string {
	t := i.def.Template
	switch {
	case t.Inline != "":
		return t.Inline
	case t.Selector != "":
		if i.selectorTpl == nil {
			markup := ""
			if n := i.app.doc.QuerySelector(t.Selector); n != nil {
				markup = dom.InnerHTML(n)
			} else {
				i.log.Debug(ctx, "template selector matched nothing", "selector", t.Selector)
			}
			i.selectorTpl = &markup
		}
		return *i.selectorTpl
	case t.URL != "":
		if markup, ok := pre[t.URL]; ok {
			return markup
		}
		markup, err := i.app.fetch(ctx, t.URL)
		if err != nil {
			i.app.errs.Handle(ctx, errors.NewFetchError(t.URL, err).WithComponent(i.tag))
			return ""
		}
		return markup
	default:
		return dom.Render(dom.Children(i.slotSource)...)
	}
}

// normalizeAttributes rewrites @evt and v-on:evt to data-on-evt and v-model to
// data-model. Modifiers after a dot are dropped.
func normalizeAttributes(n *html.Node) {
	dom.Walk(n, func(el *html.Node) bool {
		if el.Type != html.ElementNode {
			return true
		}
		for idx := range el.Attr {
			key := el.Attr[idx].Key
			switch {
			case strings.HasPrefix(key, "@"):
				el.Attr[idx].Key = EventAttrPrefix + eventName(key[1:])
			case strings.HasPrefix(key, "v-on:"):
				el.Attr[idx].Key = EventAttrPrefix + eventName(key[len("v-on:"):])
			case key == "v-model":
				el.Attr[idx].Key = ModelAttr
			}
		}
		return true
	})
}

func eventName(s string) string {
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// walkContent visits every element of the instance content. Elements that are
// hosts of other components are visited but their children are not.
func (i *Instance) walkContent(fn func(el *html.Node)) {
	known := i.knownTags()
	for _, c := range dom.Children(i.host) {
		dom.Walk(c, func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return true
			}
			fn(n)
			return !known[n.Data]
		})
	}
}

// mountNested mounts custom elements in the new content that are not mounted
// and not inside another unmounted custom element below the host.
func (i *Instance) mountNested(ctx context.Context, pre map[string]string) {
	tags := i.tagOrder()
	if len(tags) == 0 {
		return
	}
	hosts := i.app.collect(i.host, i.host, tags, i.resolve)
	if len(hosts) == 0 {
		return
	}
	fetched := i.app.prefetch(ctx, hosts)
	for url, markup := range pre {
		if _, ok := fetched[url]; !ok {
			if fetched == nil {
				fetched = make(map[string]string)
			}
			fetched[url] = markup
		}
	}
	for _, h := range hosts {
		if i.phase == PhaseUnmounting || i.phase == PhaseUnmounted {
			return
		}
		if i.app.doc.IsMounted(h.node) || !dom.Contains(i.host, h.node) {
			continue
		}
		if _, err := i.app.mountInstance(ctx, h.node, h.tag, h.def, i, fetched); err != nil {
			i.app.errs.Handle(ctx, err)
		}
	}
}

// tagOrder lists the tags this instance can mount: its own nested definitions
// first, then the app registry in registration order.
func (i *Instance) tagOrder() []string {
	tags := i.def.ComponentTags()
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[t] = true
	}
	for _, t := range i.app.Tags() {
		if !seen[t] {
			tags = append(tags, t)
			seen[t] = true
		}
	}
	return tags
}

func (i *Instance) knownTags() map[string]bool {
	known := make(map[string]bool)
	for _, t := range i.tagOrder() {
		known[t] = true
	}
	return known
}

func (i *Instance) resolve(tag string) (*Definition, bool) {
	if def, ok := i.def.Components[tag]; ok && def != nil {
		return def, true
	}
	return i.app.Definition(tag)
}
