package component

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/expr"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

// attachEvents registers a listener for every data-on-* attribute in the
// content. A bare method name is called with the event; any other value is
// evaluated as an expression with $event in scope. Unknown method names are
// ignored.
func (i *Instance) attachEvents(ctx context.Context) {
	i.walkContent(func(el *html.Node) {
		for _, a := range el.Attr {
			if !strings.HasPrefix(a.Key, EventAttrPrefix) {
				continue
			}
			event := strings.TrimPrefix(a.Key, EventAttrPrefix)
			handler := strings.TrimSpace(a.Val)
			if event == "" || handler == "" {
				continue
			}

			var fn dom.Listener
			if identPattern.MatchString(handler) {
				method, ok := i.bound[handler]
				if !ok {
					i.log.Debug(ctx, "unknown event handler", "event", event, "handler", handler)
					continue
				}
				fn = func(e *dom.Event) {
					if _, err := method(e); err != nil {
						i.app.errs.Handle(context.Background(),
							errors.NewHookError("handler "+handler, err).WithComponent(i.tag))
					}
				}
			} else {
				if _, err := expr.Compile(handler); err != nil {
					i.app.errs.Handle(ctx, errors.NewEvaluationError(handler, err).WithComponent(i.tag))
					continue
				}
				fn = func(e *dom.Event) {
					sc := expr.Layered(i.scope(), map[string]any{"$event": e})
					if _, err := expr.Try(handler, sc); err != nil {
						i.app.errs.Handle(context.Background(),
							errors.NewEvaluationError(handler, err).WithComponent(i.tag))
					}
				}
			}
			id := i.app.doc.AddEventListener(el, event, fn)
			i.listeners = append(i.listeners, listenerRef{node: el, event: event, id: id})
		}
	})
}

type bindingKind int

const (
	bindText bindingKind = iota
	bindValue
	bindCheckbox
	bindRadio
)

func classify(el *html.Node) bindingKind {
	switch dom.TagName(el) {
	case "input":
		switch strings.ToLower(dom.Attr(el, "type")) {
		case "checkbox":
			return bindCheckbox
		case "radio":
			return bindRadio
		}
		return bindValue
	case "textarea", "select":
		return bindValue
	default:
		return bindText
	}
}

// attachBindings wires every data-model element to the state key it names:
// the element is set from state and a listener writes user edits back.
func (i *Instance) attachBindings() {
	i.walkContent(func(el *html.Node) {
		prop, ok := dom.LookupAttr(el, ModelAttr)
		prop = strings.TrimSpace(prop)
		if !ok || prop == "" {
			return
		}
		value, _ := i.record.Get(prop)
		kind := classify(el)

		switch kind {
		case bindCheckbox:
			dom.SetChecked(el, expr.Truthy(value))
		case bindRadio:
			dom.SetChecked(el, dom.Value(el) == expr.ToString(value))
		case bindValue:
			dom.SetValue(el, expr.ToString(value))
		default:
			dom.SetTextContent(el, expr.ToString(value))
		}

		event := "input"
		if kind == bindCheckbox || kind == bindRadio || dom.TagName(el) == "select" {
			event = "change"
		}
		target := el
		id := i.app.doc.AddEventListener(el, event, func(e *dom.Event) {
			if e.Target != target {
				return
			}
			switch kind {
			case bindCheckbox:
				i.record.Set(prop, dom.Checked(target))
			case bindRadio:
				if dom.Checked(target) {
					i.record.Set(prop, dom.Value(target))
				}
			case bindValue:
				i.record.Set(prop, dom.Value(target))
			default:
				i.record.Set(prop, dom.TextContent(target))
			}
		})
		i.listeners = append(i.listeners, listenerRef{node: el, event: event, id: id})
	})
}
