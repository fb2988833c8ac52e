package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/expr"
	"github.com/conneroisu/melodi/internal/reactive"
)

func counterStore(t *testing.T, p Persister) *Store {
	t.Helper()
	s, err := New(context.Background(), Options{
		State: func() map[string]any { return map[string]any{"count": 0, "label": "clicks"} },
		Actions: map[string]Action{
			"increment": func(s *Store, payload any) error {
				v, _ := s.Get("count")
				s.Set("count", int(expr.ToNumber(v)+expr.ToNumber(payload)))
				return nil
			},
			"fail": func(*Store, any) error { return errors.New("nope") },
			"panic": func(*Store, any) error { panic("boom") },
		},
		Persister: p,
	})
	require.NoError(t, err)
	return s
}

func TestDispatch(t *testing.T) {
	s := counterStore(t, nil)
	ctx := context.Background()

	var changes []reactive.Change
	cancel := s.Subscribe(func(c reactive.Change) { changes = append(changes, c) })
	defer cancel()

	require.NoError(t, s.Dispatch(ctx, "increment", 2))
	require.NoError(t, s.Dispatch(ctx, "increment", 3))
	v, _ := s.Get("count")
	assert.Equal(t, 5, v)
	assert.Len(t, changes, 2)

	err := s.Dispatch(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Error(t, s.Dispatch(ctx, "fail", nil))
	assert.ErrorContains(t, s.Dispatch(ctx, "panic", nil), "boom")

	assert.Equal(t, []string{"fail", "increment", "panic"}, s.Actions())
	s.Register("reset", func(s *Store, _ any) error {
		s.Set("count", 0)
		return nil
	})
	require.NoError(t, s.Dispatch(ctx, "reset", nil))
	assert.Equal(t, 0, s.Snapshot()["count"])
}

func TestFilePersisterRoundTrip(t *testing.T) {
	for _, ext := range []string{".yaml", ".msgpack"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state", "store"+ext)
			p, err := NewFilePersister(path)
			require.NoError(t, err)

			s := counterStore(t, p)
			require.NoError(t, s.Dispatch(context.Background(), "increment", 4))
			_, err = os.Stat(path)
			require.NoError(t, err)

			restored := counterStore(t, p)
			v, _ := restored.Get("count")
			assert.EqualValues(t, 4, expr.ToNumber(v))
			label, _ := restored.Get("label")
			assert.Equal(t, "clicks", label)
		})
	}
}

func TestFilePersisterMissingFile(t *testing.T) {
	p, err := NewFilePersister(filepath.Join(t.TempDir(), "none.yml"))
	require.NoError(t, err)
	state, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state)

	_, err = NewFilePersister("state.json")
	assert.Error(t, err)
}

func TestFilePersisterCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: [unclosed"), 0o644))
	p, err := NewFilePersister(path)
	require.NoError(t, err)

	_, err = New(context.Background(), Options{Persister: p})
	assert.Error(t, err)
}

func TestStoreAsPlugin(t *testing.T) {
	s := counterStore(t, nil)
	doc, err := dom.ParseString(`<h-a></h-a><h-b></h-b>`)
	require.NoError(t, err)

	app := component.New(component.WithDocument(doc))
	require.NoError(t, app.Use(s))
	def := &component.Definition{
		Template: component.InlineTemplate(`<button @click="bump">[[ $store.label ]]: [[ $store.count ]]</button>`),
		Methods: map[string]component.Method{
			"bump": func(st *component.State, _ ...any) (any, error) {
				return nil, st.Dispatch("increment", 1)
			},
		},
	}
	app.Component("h-a", def).Component("h-b", def)
	ctx := context.Background()
	require.NoError(t, app.Mount(ctx, nil))

	doc.Click(doc.QuerySelector("h-a button"))
	require.NoError(t, app.Flush(ctx))

	assert.Equal(t, "clicks: 1", dom.TextContent(doc.QuerySelector("h-a button")))
	assert.Equal(t, "clicks: 1", dom.TextContent(doc.QuerySelector("h-b button")))
}
