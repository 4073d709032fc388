// Package management assembles management pages: form modals, open and
// custom actions and paginated tables owned by one page runtime.
package management

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/Kellerman81/go_business_admin/actions"
	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/modal"
	"github.com/Kellerman81/go_business_admin/pagination"
	"github.com/Kellerman81/go_business_admin/table"
	"maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

// ModalShowEvent is triggered in the browser after a modal was filled.
const ModalShowEvent = "modal:show"

// AlertEvent carries a message shown as a blocking alert.
const AlertEvent = "app:alert"

// OpenAction shows ModalID when Action is clicked. With WithID the data-id
// of the clicked element becomes the record id of the open.
type OpenAction struct {
	Action  string
	ModalID string
	WithID  bool
}

// CustomAction runs a mutation. A nil error refreshes the page table, an
// error is shown as alert and leaves the table untouched.
type CustomAction struct {
	Name    string
	Handler func(ctx context.Context, id string) error
}

// TableConfig configures one paginated table of a page.
type TableConfig struct {
	ContainerID string
	Title       string
	Schema      table.Schema
	TableName   string
	PageSize    int
	Filters     map[string]any
	Actions     table.ActionRenderer
}

// Config declares a management page.
type Config struct {
	Name          string
	Modals        []modal.Descriptor
	OpenActions   []OpenAction
	CustomActions []CustomAction
	// Table is refreshed after successful mutations.
	Table *TableConfig
	// Views are additional read only tables.
	Views []TableConfig
}

// Deps are the per session collaborators of a page.
type Deps struct {
	Fetcher    pagination.Fetcher
	Translator i18n.Translator
	User       modal.CurrentUser
	// BasePath prefixes every endpoint of the page, e.g. /p/{token}.
	BasePath string
}

// Page is the server side runtime of one rendered management page.
type Page struct {
	Name string

	cfg      Config
	deps     Deps
	registry *actions.Registry
	modals   map[string]*modal.Instance
	order    []string

	mu          sync.Mutex
	controllers map[string]*pagination.Controller
	views       []string
	main        string
}

// Init mounts the modals, registers the actions into a page owned registry
// and loads the first page of every table. Only an expired session or a
// configuration mistake fails the page; a table that cannot be loaded is
// rendered with its error.
func Init(ctx context.Context, cfg Config, deps Deps) (*Page, error) {
	if deps.Translator == nil {
		deps.Translator = identity{}
	}
	p := &Page{
		Name:        cfg.Name,
		cfg:         cfg,
		deps:        deps,
		registry:    actions.NewRegistry(),
		modals:      make(map[string]*modal.Instance, len(cfg.Modals)),
		controllers: make(map[string]*pagination.Controller),
	}

	for _, d := range cfg.Modals {
		p.modals[d.ID] = modal.New(d, deps.Translator, deps.BasePath+"/modals/"+d.ID)
		p.order = append(p.order, d.ID)
	}
	for _, oa := range cfg.OpenActions {
		m, ok := p.modals[oa.ModalID]
		if !ok {
			return nil, apperrors.New(apperrors.ErrClassConfig, "init "+cfg.Name, "action "+oa.Action+" opens unknown modal "+oa.ModalID)
		}
		p.registry.Register(oa.Action, p.openHandler(m, oa.WithID))
	}
	for _, ca := range cfg.CustomActions {
		p.registry.Register(ca.Name, p.customHandler(ca))
	}

	if cfg.Table != nil {
		if err := p.mount(ctx, *cfg.Table); err != nil {
			return nil, err
		}
		p.main = cfg.Table.ContainerID
	}
	for _, v := range cfg.Views {
		if err := p.mount(ctx, v); err != nil {
			return nil, err
		}
		p.views = append(p.views, v.ContainerID)
	}

	if dead := p.DeadActions(); len(dead) > 0 {
		logger.Logtype(logger.StatusWarning, 0).
			Str("page", cfg.Name).
			Strs("actions", dead).
			Msg("Rendered actions without handler")
	}
	return p, nil
}

type identity struct{}

func (identity) T(key string) string { return key }

func (p *Page) mount(ctx context.Context, tc TableConfig) error {
	_, err := p.MountTable(ctx, pagination.Options{
		ContainerID: tc.ContainerID,
		Title:       p.deps.Translator.T(tc.Title),
		Schema:      p.translateSchema(tc.Schema),
		TableName:   tc.TableName,
		Actions:     tc.Actions,
		Filters:     tc.Filters,
		PageSize:    tc.PageSize,
	})
	if err != nil && apperrors.IsSessionExpired(err) {
		return err
	}
	return nil
}

func (p *Page) translateSchema(s table.Schema) table.Schema {
	out := table.Schema{HeaderButton: s.HeaderButton, Columns: make([]table.Column, len(s.Columns))}
	for i, c := range s.Columns {
		c.Label = p.deps.Translator.T(c.Label)
		out.Columns[i] = c
	}
	return out
}

// MountTable creates the controller of a container, replacing an earlier
// one with the same id, and loads its first page. The returned node is the
// container; a load failure other than an expired session is rendered into
// it and returned alongside.
func (p *Page) MountTable(ctx context.Context, opts pagination.Options) (gomponents.Node, error) {
	opts.Fetcher = p.deps.Fetcher
	opts.BasePath = p.deps.BasePath + "/tables/" + opts.ContainerID
	c := pagination.New(opts)

	p.mu.Lock()
	p.controllers[opts.ContainerID] = c
	p.mu.Unlock()

	_, err := c.Load(ctx, 0)
	if err != nil {
		if apperrors.IsSessionExpired(err) {
			return nil, err
		}
		logger.Logtype(logger.StatusError, 0).
			Str("page", p.Name).
			Str("table", opts.TableName).
			Err(err).
			Msg("Failed to load table")
	}
	return c.Container(), err
}

func (p *Page) openHandler(m *modal.Instance, withID bool) actions.Handler {
	return func(ctx context.Context, id string) (actions.Outcome, error) {
		open := modal.OpenContext{User: p.deps.User, Host: p}
		if withID {
			open.RecordID = id
		}
		node, err := m.Show(ctx, open)
		if errors.Is(err, modal.ErrStale) {
			return actions.Outcome{}, nil
		}
		if err != nil {
			return actions.Outcome{}, err
		}
		return actions.Outcome{
			Render: node,
			Target: "#" + modal.ContentID(m.ID()),
			Swap:   "innerHTML",
			Events: map[string]any{ModalShowEvent: m.ID()},
		}, nil
	}
}

func (p *Page) customHandler(ca CustomAction) actions.Handler {
	return func(ctx context.Context, id string) (actions.Outcome, error) {
		if err := ca.Handler(ctx, id); err != nil {
			if apperrors.IsSessionExpired(err) {
				return actions.Outcome{}, err
			}
			logger.Logtype(logger.StatusWarning, 0).
				Str("page", p.Name).
				Str("action", ca.Name).
				Str("id", id).
				Err(err).
				Msg("Action failed")
			return actions.Outcome{Alert: apperrors.UserMessage(err, p.deps.Translator.T("Request failed"))}, nil
		}
		return actions.Outcome{Refresh: true}, nil
	}
}

// Registry returns the action table of the page.
func (p *Page) Registry() *actions.Registry {
	return p.registry
}

// Modal returns the mounted modal id.
func (p *Page) Modal(id string) (*modal.Instance, bool) {
	m, ok := p.modals[id]
	return m, ok
}

// Table returns the controller rendering into container.
func (p *Page) Table(container string) (*pagination.Controller, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.controllers[container]
	return c, ok
}


// Dispatch runs the action name for the record id. A refresh request is
// resolved here: the page table is reloaded and returned as the render.
// handled is false for unknown actions.
func (p *Page) Dispatch(ctx context.Context, name, id string) (out actions.Outcome, handled bool, err error) {
	out, handled, err = p.registry.Dispatch(ctx, name, id)
	if err != nil || !out.Refresh {
		return out, handled, err
	}
	return p.refreshMain(ctx, out)
}

func (p *Page) refreshMain(ctx context.Context, out actions.Outcome) (actions.Outcome, bool, error) {
	c, ok := p.Table(p.main)
	if !ok {
		return out, true, nil
	}
	node, err := c.Refresh(ctx)
	switch {
	case err == nil:
		out.Render = node
		out.Target = "#" + c.ContainerID()
		out.Swap = "innerHTML"
	case apperrors.IsSessionExpired(err):
		return actions.Outcome{}, true, err
	case errors.Is(err, pagination.ErrStale):
	default:
		out.Alert = apperrors.UserMessage(err, p.deps.Translator.T("Failed to load data"))
	}
	return out, true, nil
}

// LoadTable loads page of the table in container. It returns
// pagination.ErrStale when a newer load superseded this one.
func (p *Page) LoadTable(ctx context.Context, container string, page int) (gomponents.Node, error) {
	c, ok := p.Table(container)
	if !ok {
		return nil, apperrors.New(apperrors.ErrClassValidation, "load table", "unknown table "+container)
	}
	return c.Load(ctx, page)
}

// ParsePage reads a 0 based page number, defaulting to 0.
func ParsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// HideModal closes modal id. When a successful submit asks for it the page
// table is refreshed and returned as render.
func (p *Page) HideModal(ctx context.Context, id string) (actions.Outcome, error) {
	m, ok := p.modals[id]
	if !ok {
		return actions.Outcome{}, apperrors.New(apperrors.ErrClassValidation, "hide modal", "unknown modal "+id)
	}
	if !m.Hide() {
		return actions.Outcome{}, nil
	}
	out, _, err := p.refreshMain(ctx, actions.Outcome{Refresh: true})
	return out, err
}

// Render returns the page content: the tables followed by the modals.
// The wrapper tells the click delegate where to post actions.
func (p *Page) Render() gomponents.Node {
	p.mu.Lock()
	containers := make([]string, 0, len(p.views)+1)
	if p.main != "" {
		containers = append(containers, p.main)
	}
	containers = append(containers, p.views...)
	tables := make([]gomponents.Node, 0, len(containers))
	for _, id := range containers {
		if c, ok := p.controllers[id]; ok {
			tables = append(tables, html.Div(html.Class("mb-4"), c.Container()))
		}
	}
	p.mu.Unlock()

	modals := make([]gomponents.Node, 0, len(p.order))
	for _, id := range p.order {
		modals = append(modals, p.modals[id].Mount())
	}
	return html.Div(
		html.ID("management-page"),
		gomponents.Attr("data-page", p.Name),
		gomponents.Attr("data-actions-url", p.deps.BasePath+"/actions"),
		gomponents.Group(tables),
		gomponents.Group(modals),
	)
}

// DeadActions lists the action names rendered on the page without handler.
func (p *Page) DeadActions() []string {
	var b strings.Builder
	if err := p.Render().Render(&b); err != nil {
		return nil
	}
	dead, err := p.registry.Audit(b.String())
	if err != nil {
		return nil
	}
	return dead
}
