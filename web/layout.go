package web

import (
	"strings"

	"github.com/Kellerman81/go_business_admin/i18n"
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

const (
	bootstrapCSS = "https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css"
	bootstrapJS  = "https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/js/bootstrap.bundle.min.js"
	htmxJS       = "https://unpkg.com/htmx.org@1.9.12"
)

type navEntry struct {
	Path  string
	Label string
}

var navEntries = []navEntry{
	{"/", "Dashboard"},
	{"/users/management", "Users"},
	{"/companies/management", "Companies"},
	{"/items/management", "Items"},
	{"/orders/management", "Orders"},
}

// layout wraps content into the page shell of a logged in user.
func (s *Server) layout(sess Session, tr *i18n.Catalog, active, title string, content ...gomponents.Node) gomponents.Node {
	return html.Doctype(
		html.HTML(
			html.Lang(tr.Lang),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.Meta(html.Name("csrf-token"), html.Content(sess.CSRFToken)),
				html.Title(tr.T(title)),
				html.Link(html.Rel("stylesheet"), html.Href(bootstrapCSS)),
				html.Script(html.Src(htmxJS)),
			),
			html.Body(
				s.navbar(sess, tr, active),
				html.Main(html.Class("container py-4"),
					html.H1(html.Class("h3 mb-4"), gomponents.Text(tr.T(title))),
					gomponents.Group(content),
				),
				html.Div(
					html.ID("page-data"),
					gomponents.Attr("data-role", sess.User.Role),
					gomponents.Attr("data-company-id", sess.User.CompanyID),
				),
				translations(tr),
				html.Script(html.Src(bootstrapJS)),
				html.Script(gomponents.Raw(delegateJS)),
			),
		),
	)
}

func (s *Server) navbar(sess Session, tr *i18n.Catalog, active string) gomponents.Node {
	links := make([]gomponents.Node, 0, len(navEntries))
	for _, e := range navEntries {
		class := "nav-link"
		if e.Path == active {
			class += " active"
		}
		links = append(links, html.Li(html.Class("nav-item"),
			html.A(html.Class(class), html.Href(e.Path), gomponents.Text(tr.T(e.Label))),
		))
	}

	right := []gomponents.Node{languageLinks(s.opts.Bundle, tr.Lang)}
	if len(sess.OAuthInfo) == 0 {
		right = append(right, html.A(html.Class("btn btn-sm btn-outline-light me-2"), html.Href("/auth/github/link"), gomponents.Text(tr.T("Link GitHub account"))))
	}
	right = append(right,
		html.Span(html.Class("navbar-text me-3"), gomponents.Text(sess.User.Username)),
		html.A(html.Class("btn btn-sm btn-light"), html.Href("/logout"), gomponents.Text(tr.T("Logout"))),
	)

	return html.Nav(
		html.Class("navbar navbar-expand-lg navbar-dark bg-dark"),
		html.Div(html.Class("container"),
			html.A(html.Class("navbar-brand"), html.Href("/"), gomponents.Text("Business Admin")),
			html.Ul(html.Class("navbar-nav me-auto"), gomponents.Group(links)),
			html.Div(html.Class("d-flex align-items-center"), gomponents.Group(right)),
		),
	)
}

func languageLinks(b *i18n.Bundle, current string) gomponents.Node {
	langs := b.Languages()
	items := make([]gomponents.Node, 0, len(langs))
	for _, lang := range langs {
		class := "btn btn-sm btn-outline-secondary"
		if lang == current {
			class = "btn btn-sm btn-secondary"
		}
		items = append(items, html.A(html.Class(class), html.Href("/set_language?lang="+lang), gomponents.Text(strings.ToUpper(lang))))
	}
	return html.Div(html.Class("btn-group me-3"), gomponents.Group(items))
}

// translations embeds the dictionary for scripts. A closing tag inside a
// value must not end the script element.
func translations(tr *i18n.Catalog) gomponents.Node {
	data := strings.ReplaceAll(tr.JSON(), "</", `<\/`)
	return html.Script(html.ID("js-translations"), html.Type("application/json"), gomponents.Raw(data))
}

// loginPage renders the entry page of an anonymous visitor.
func (s *Server) loginPage(tr *i18n.Catalog, errorMsg string) gomponents.Node {
	return html.Doctype(
		html.HTML(
			html.Lang(tr.Lang),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.Title(tr.T("Log in")),
				html.Link(html.Rel("stylesheet"), html.Href(bootstrapCSS)),
			),
			html.Body(html.Class("bg-light"),
				html.Div(html.Class("container py-5"), html.Style("max-width: 420px"),
					html.Div(html.Class("d-flex justify-content-end mb-3"), languageLinks(s.opts.Bundle, tr.Lang)),
					html.Div(html.Class("card shadow-sm"),
						html.Div(html.Class("card-body p-4"),
							html.H1(html.Class("h4 mb-4 text-center"), gomponents.Text("Business Admin")),
							gomponents.If(errorMsg != "",
								html.Div(html.Class("alert alert-danger"), html.Role("alert"), gomponents.Text(errorMsg)),
							),
							html.Form(
								html.Method("POST"),
								html.Action("/login"),
								html.ID("loginForm"),
								html.Div(html.Class("mb-3"),
									html.Label(html.For("identifier"), html.Class("form-label"), gomponents.Text(tr.T("Username or email"))),
									html.Input(html.Type("text"), html.Name("identifier"), html.ID("identifier"), html.Class("form-control"),
										html.Required(), gomponents.Attr("autocomplete", "username")),
								),
								html.Div(html.Class("mb-3"),
									html.Label(html.For("password"), html.Class("form-label"), gomponents.Text(tr.T("Password"))),
									html.Input(html.Type("password"), html.Name("password"), html.ID("password"), html.Class("form-control"),
										html.Required(), gomponents.Attr("autocomplete", "current-password")),
								),
								html.Button(html.Type("submit"), html.Class("btn btn-primary w-100"), gomponents.Text(tr.T("Log in"))),
							),
							html.Hr(),
							html.A(html.Class("btn btn-outline-dark w-100"), html.Href("/auth/github/login"), gomponents.Text(tr.T("Log in with GitHub"))),
						),
					),
				),
			),
		),
	)
}

// delegateJS routes clicks on [data-action] elements to the page endpoint
// and reacts to the events sent back in HX-Trigger headers.
const delegateJS = `
(function () {
	var csrf = (document.querySelector('meta[name="csrf-token"]') || {}).content || '';
	document.body.addEventListener('htmx:configRequest', function (e) {
		e.detail.headers['X-CSRF-Token'] = csrf;
	});

	document.addEventListener('click', function (e) {
		var el = e.target.closest('[data-action]');
		if (!el) return;
		var page = el.closest('[data-actions-url]');
		if (!page) return;
		e.preventDefault();
		var question = el.getAttribute('data-confirm');
		if (question && !window.confirm(question)) return;
		htmx.ajax('POST', page.getAttribute('data-actions-url') + '/' + encodeURIComponent(el.getAttribute('data-action')), {
			source: el,
			target: el,
			swap: 'none',
			values: { id: el.getAttribute('data-id') || '' }
		});
	});

	document.body.addEventListener('modal:show', function (e) {
		var el = document.getElementById(e.detail.value);
		if (el) bootstrap.Modal.getOrCreateInstance(el).show();
	});
	document.body.addEventListener('modal:focus', function (e) {
		var input = document.getElementById(e.detail.value);
		if (input) input.focus();
	});
	document.body.addEventListener('app:alert', function (e) {
		window.alert(e.detail.value);
	});

	document.addEventListener('hidden.bs.modal', function (e) {
		var url = e.target.getAttribute('data-hide-url');
		if (url) htmx.ajax('POST', url, { source: e.target, target: e.target, swap: 'none' });
	});

	document.addEventListener('change', function (e) {
		if (!e.target.classList.contains('order-item-check')) return;
		var row = e.target.closest('tr');
		var qty = row && row.querySelector('.order-item-qty');
		if (qty) qty.disabled = !e.target.checked;
	});
})();
`
