package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// RootID is the element the page script swaps rendered bodies into
const RootID = "melodi-root"

// clientScript forwards events from elements with a mount id and applies
// render and reload messages.
const clientScript = `(function () {
  var script = document.currentScript;
  var root = document.getElementById("` + RootID + `");
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws?session=" + encodeURIComponent(script.dataset.session));
  function forward(type) {
    root.addEventListener(type, function (e) {
      var el = e.target.closest("[` + MountIDAttr + `]");
      if (!el || !root.contains(el) || ws.readyState !== 1) return;
      if (type === "submit") e.preventDefault();
      ws.send(JSON.stringify({type: "event", id: el.getAttribute("` + MountIDAttr + `"), event: type,
        value: el.value === undefined ? "" : String(el.value), checked: !!el.checked}));
    }, true);
  }
  ["click", "input", "change", "submit", "keydown", "keyup", "focusout"].forEach(forward);
  window.melodi = {
    navigate: function (path) {
      ws.send(JSON.stringify({type: "navigate", path: path}));
      history.pushState({}, "", path);
    }
  };
  window.addEventListener("popstate", function () {
    ws.send(JSON.stringify({type: "navigate", path: location.pathname}));
  });
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (msg.type === "render") root.innerHTML = msg.html;
    else if (msg.type === "reload") location.reload();
    else if (msg.type === "error") console.error("melodi:", msg.error);
  };
})();`

// Page wraps a rendered session in a document that connects back to the
// server.
func Page(head, body, session string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8">`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, head+`</head><body><div id="`+RootID+`">`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, body); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div><script data-session="`+templ.EscapeString(session)+`">`+
			clientScript+`</script></body></html>`)
		return err
	})
}
