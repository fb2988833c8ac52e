package component

import (
	"context"

	"github.com/conneroisu/melodi/internal/reactive"
)

// Plugin extends an App when installed with Use.
type Plugin interface {
	Install(app *App) error
}

// PluginFunc adapts a function to Plugin.
type PluginFunc func(app *App) error

// Install implements Plugin
func (f PluginFunc) Install(app *App) error { return f(app) }

// Store is the shared state container an App fans out to. Reading works from
// expressions through Get, so templates can use $store.key.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	OnChange(fn func(reactive.Change)) (cancel func())
	Dispatch(ctx context.Context, action string, payload any) error
}
