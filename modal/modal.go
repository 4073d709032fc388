// Package modal builds bootstrap modals and form modals with load and submit hooks.
package modal

import (
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

// Options describes a plain modal.
type Options struct {
	ID     string
	Title  string
	Body   gomponents.Node
	Footer gomponents.Node
	// Attrs are added to the root element.
	Attrs []gomponents.Node
}

// ContentID is the id of the element holding header, body and footer.
// Reopening a modal swaps its children.
func ContentID(id string) string {
	return id + "-content"
}

// Shell renders a dismissible overlay. It carries no behavior.
func Shell(opts Options) gomponents.Node {
	return html.Div(
		html.Class("modal fade"),
		html.ID(opts.ID),
		gomponents.Attr("tabindex", "-1"),
		gomponents.Attr("aria-hidden", "true"),
		gomponents.Group(opts.Attrs),
		html.Div(
			html.Class("modal-dialog modal-dialog-centered"),
			html.Div(
				html.Class("modal-content"),
				html.ID(ContentID(opts.ID)),
				Sections(opts),
			),
		),
	)
}

// Sections renders header, body and footer.
func Sections(opts Options) gomponents.Node {
	nodes := []gomponents.Node{
		html.Div(
			html.Class("modal-header"),
			html.H5(html.Class("modal-title"), gomponents.Text(opts.Title)),
			html.Button(
				html.Type("button"),
				html.Class("btn-close"),
				gomponents.Attr("data-bs-dismiss", "modal"),
				gomponents.Attr("aria-label", "Close"),
			),
		),
		html.Div(html.Class("modal-body"), opts.Body),
	}
	if opts.Footer != nil {
		nodes = append(nodes, html.Div(html.Class("modal-footer"), opts.Footer))
	}
	return gomponents.Group(nodes)
}

// Success is feedback for an accepted submit.
func Success(msg string, extra ...gomponents.Node) gomponents.Node {
	return html.Div(
		html.Class("alert alert-success mb-0"),
		html.Strong(gomponents.Text(msg)),
		gomponents.Group(extra),
	)
}

// Failure is feedback for a rejected submit. msg is escaped.
func Failure(msg string) gomponents.Node {
	return html.Div(html.Class("text-danger"), gomponents.Text(msg))
}
