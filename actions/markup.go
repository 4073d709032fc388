package actions

import (
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

// Button renders a clickable element dispatching name with id.
// Extra nodes are appended, e.g. an icon or a confirm attribute.
func Button(name, id, label, class string, extra ...gomponents.Node) gomponents.Node {
	return html.Button(
		html.Type("button"),
		html.Class(class),
		gomponents.Attr(AttrAction, name),
		gomponents.If(id != "", gomponents.Attr(AttrID, id)),
		gomponents.Group(extra),
		gomponents.Text(label),
	)
}

// Confirm asks the browser to confirm before the click is dispatched.
func Confirm(question string) gomponents.Node {
	return gomponents.Attr("data-confirm", question)
}
