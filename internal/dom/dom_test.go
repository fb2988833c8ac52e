package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const page = `<html><body>
<div id="app" class="root main">
  <h-counter label="x"></h-counter>
  <ul><li class="item">one</li><li class="item active">two</li></ul>
  <p data-role="note">hi</p>
</div>
</body></html>`

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(markup)
	require.NoError(t, err)
	return doc
}

func TestToXPath(t *testing.T) {
	tests := []struct {
		name     string
		css      string
		expected string
	}{
		{"tag", "div", ".//div"},
		{"id", "#app", ".//*[@id='app']"},
		{"class", ".item", ".//*[contains(concat(' ', normalize-space(@class), ' '), ' item ')]"},
		{"tag and attribute", "p[data-role=note]", ".//p[@data-role='note']"},
		{"quoted attribute", `p[data-role="a b"]`, ".//p[@data-role='a b']"},
		{"presence", "[hidden]", ".//*[@hidden]"},
		{"descendant", "#app li", ".//*[@id='app']//li"},
		{"child", "ul > li", ".//ul/li"},
		{"xpath passthrough", "//body", "//body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToXPath(tt.css))
		})
	}
}

func TestQuerySelector(t *testing.T) {
	doc := mustParse(t, page)

	app := doc.QuerySelector("#app")
	require.NotNil(t, app)
	assert.Equal(t, "div", TagName(app))

	assert.Len(t, doc.QuerySelectorAll("li.item"), 2)
	assert.Len(t, doc.QuerySelectorAll(".item.active"), 1)
	assert.NotNil(t, doc.QuerySelector("h-counter"))
	assert.Equal(t, "hi", TextContent(doc.QuerySelector("[data-role=note]")))
	assert.Nil(t, doc.QuerySelector("#missing"))
	assert.Nil(t, doc.QuerySelector("[unterminated"))

	ul := doc.QuerySelector("ul")
	assert.Len(t, QuerySelectorAll(ul, "li"), 2)
	assert.Empty(t, QuerySelectorAll(ul, "p"), "scoped queries stay inside the node")
}

func TestEventsBubbleAndStop(t *testing.T) {
	doc := mustParse(t, page)
	li := doc.QuerySelector("li.active")
	ul := doc.QuerySelector("ul")
	app := doc.QuerySelector("#app")

	var order []string
	doc.AddEventListener(li, "click", func(e *Event) { order = append(order, "li") })
	doc.AddEventListener(ul, "click", func(e *Event) {
		order = append(order, "ul")
		assert.Equal(t, li, e.Target)
		assert.Equal(t, ul, e.CurrentTarget)
		e.StopPropagation()
	})
	doc.AddEventListener(app, "click", func(e *Event) { order = append(order, "app") })
	doc.AddEventListener(li, "input", func(e *Event) { order = append(order, "input") })

	doc.Click(li)
	assert.Equal(t, []string{"li", "ul"}, order)
}

func TestRemoveEventListener(t *testing.T) {
	doc := mustParse(t, page)
	p := doc.QuerySelector("p")

	calls := 0
	id := doc.AddEventListener(p, "click", func(*Event) { calls++ })
	other := doc.AddEventListener(p, "click", func(*Event) { calls += 10 })
	assert.Equal(t, 2, doc.ListenerCount(p))

	require.NoError(t, doc.RemoveEventListener(p, "click", id))
	assert.ErrorIs(t, doc.RemoveEventListener(p, "click", id), ErrListenerNotFound)
	assert.ErrorIs(t, doc.RemoveEventListener(p, "input", other), ErrListenerNotFound)

	doc.Click(p)
	assert.Equal(t, 10, calls)

	require.NoError(t, doc.RemoveEventListener(p, "click", other))
	assert.Zero(t, doc.TotalListeners())
	assert.False(t, doc.HasListeners(p))
}

func TestListenerMayDetachTarget(t *testing.T) {
	doc := mustParse(t, page)
	li := doc.QuerySelector("li")
	ul := doc.QuerySelector("ul")

	reached := false
	doc.AddEventListener(li, "click", func(*Event) { RemoveChildren(ul) })
	doc.AddEventListener(ul, "click", func(*Event) { reached = true })

	doc.Click(li)
	assert.True(t, reached)
	assert.Nil(t, ul.FirstChild)
}

func TestFormValues(t *testing.T) {
	doc := mustParse(t, `<body>
<input id="name" value="a">
<textarea id="bio">old</textarea>
<select id="pick"><option value="x">X</option><option>y</option></select>
<input id="ok" type="checkbox">
</body>`)

	name := doc.QuerySelector("#name")
	assert.Equal(t, "a", Value(name))
	var seen []string
	doc.AddEventListener(name, "input", func(e *Event) { seen = append(seen, "input:"+Value(e.Target)) })
	doc.AddEventListener(name, "change", func(e *Event) { seen = append(seen, "change") })
	doc.Input(name, "bob")
	assert.Equal(t, []string{"input:bob", "change"}, seen)

	bio := doc.QuerySelector("#bio")
	assert.Equal(t, "old", Value(bio))
	SetValue(bio, "new")
	assert.Equal(t, "new", Value(bio))

	pick := doc.QuerySelector("#pick")
	assert.Equal(t, "x", Value(pick), "first option is selected by default")
	SetValue(pick, "y")
	assert.Equal(t, "y", Value(pick))

	ok := doc.QuerySelector("#ok")
	assert.False(t, Checked(ok))
	changed := false
	doc.AddEventListener(ok, "change", func(*Event) { changed = true })
	doc.SetChecked(ok, true)
	assert.True(t, Checked(ok))
	assert.True(t, changed)
}

func TestNodeHelpers(t *testing.T) {
	nodes, err := ParseFragment(`<b class="x">bold</b> tail`, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	frag := Fragment(nodes...)
	assert.Equal(t, `<b class="x">bold</b> tail`, InnerHTML(frag))

	clone := Clone(frag.FirstChild)
	SetAttr(clone, "class", "y")
	SetTextContent(clone, "changed")
	assert.Equal(t, "x", Attr(frag.FirstChild, "class"), "clones share nothing with the source")
	assert.Equal(t, "bold", TextContent(frag.FirstChild))
	assert.Nil(t, clone.Parent)

	RemoveAttr(clone, "class")
	assert.False(t, HasAttr(clone, "class"))
	assert.Equal(t, "<b>changed</b>", OuterHTML(clone))

	require.NoError(t, SetInnerHTML(frag, "<i>i</i>"))
	assert.Equal(t, "<i>i</i>", InnerHTML(frag))

	ReplaceWith(frag.FirstChild, &html.Node{Type: html.TextNode, Data: "a"}, &html.Node{Type: html.TextNode, Data: "b"})
	assert.Equal(t, "ab", TextContent(frag))
	assert.True(t, IsBlankText(&html.Node{Type: html.TextNode, Data: " \n "}))
}

func TestMountedFlagsAndOwners(t *testing.T) {
	doc := mustParse(t, page)
	host := doc.QuerySelector("h-counter")

	assert.False(t, doc.IsMounted(host))
	doc.SetMounted(host, true)
	doc.SetOwner(host, "instance")
	assert.True(t, doc.IsMounted(host))
	assert.Equal(t, "instance", doc.Owner(host))

	doc.SetMounted(host, false)
	doc.SetOwner(host, nil)
	assert.False(t, doc.IsMounted(host))
	assert.Nil(t, doc.Owner(host))
}

func TestWalkSkipsChildren(t *testing.T) {
	doc := mustParse(t, page)
	var tags []string
	Walk(doc.QuerySelector("#app"), func(n *html.Node) bool {
		if IsElement(n) {
			tags = append(tags, TagName(n))
		}
		return TagName(n) != "ul"
	})
	assert.Equal(t, []string{"div", "h-counter", "ul", "p"}, tags)
	assert.True(t, Contains(doc.Root(), doc.QuerySelector("li")))
	assert.Contains(t, doc.HTML(), `<h-counter label="x">`)
}
