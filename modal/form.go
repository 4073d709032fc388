package modal

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/pagination"
	"maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	"maragu.dev/gomponents/html"
)

// ErrInvalidTransition is returned for an operation the current state does not allow.
var ErrInvalidTransition = errors.New("invalid modal state transition")

// ErrStale is returned by Show when a newer Show or Hide started while its
// OnLoad was running. The older result is dropped.
var ErrStale = errors.New("stale modal load discarded")

// State is the lifecycle state of a form modal.
type State int

const (
	Hidden State = iota
	Loading
	Idle
	Submitting
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	default:
		return "hidden"
	}
}

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
}

// Field is one labelled input of a form modal.
type Field struct {
	ID          string
	Label       string
	Type        string // text, email, number, password or select
	Required    bool
	Placeholder string
	// Attrs are added to the input, e.g. html.Min("0").
	Attrs []gomponents.Node
	// Custom replaces the generated input.
	Custom func(v Values) gomponents.Node
}

// Values is the state a form is rendered from. OnLoad builds it fresh for
// every open, so no value survives from an earlier open.
type Values struct {
	Fields  map[string]string
	Options map[string][]Option
	Nodes   map[string]gomponents.Node
}

func NewValues() Values {
	return Values{
		Fields:  map[string]string{},
		Options: map[string][]Option{},
		Nodes:   map[string]gomponents.Node{},
	}
}

func (v Values) Set(field, value string) {
	v.Fields[field] = value
}

func (v Values) SetOptions(field string, opts []Option) {
	v.Options[field] = opts
}

func (v Values) SetNode(field string, n gomponents.Node) {
	v.Nodes[field] = n
}

// CurrentUser is the logged in user as exposed to forms.
type CurrentUser struct {
	ID        string
	Username  string
	Role      string
	CompanyID string
}

// IsSuperadmin reports whether the user may act across companies.
func (u CurrentUser) IsSuperadmin() bool {
	return u.Role == "superadmin"
}

// Host mounts nested paginated tables, e.g. the item picker of an order form.
type Host interface {
	MountTable(ctx context.Context, opts pagination.Options) (gomponents.Node, error)
}

// OpenContext is the per open state of a modal, replacing ids stashed on the element.
type OpenContext struct {
	// RecordID is the record being edited, empty for create forms.
	RecordID string
	User     CurrentUser
	Host     Host
}

// SubmitContext is handed to OnSubmit.
type SubmitContext struct {
	Open OpenContext
	Form url.Values
	// result is set by WriteResult.
	result gomponents.Node
}

// WriteResult shows n in the feedback region. The modal stays open.
func (s *SubmitContext) WriteResult(n gomponents.Node) {
	s.result = n
}

// Descriptor declares a form modal. It is turned into an Instance once per page.
type Descriptor struct {
	ID     string
	Title  string
	Fields []Field
	// OnLoad runs on every open and returns the values to render.
	OnLoad func(ctx context.Context, open OpenContext) (Values, error)
	// OnSubmit reports success. Feedback goes through WriteResult. A returned
	// error is shown as failure, an expired session closes the modal.
	OnSubmit func(ctx context.Context, sc *SubmitContext) (bool, error)
	// ReloadOnSuccess refreshes the page table when the modal is closed
	// after a successful submit.
	ReloadOnSuccess bool
	// ReadOnly modals only display data and have no save button.
	ReadOnly bool
}

// Instance is a mounted form modal reused across opens.
type Instance struct {
	desc     Descriptor
	tr       i18n.Translator
	basePath string

	mu        sync.Mutex
	state     State
	open      OpenContext
	values    Values
	result    gomponents.Node
	succeeded bool
	seq       uint64
}

type identity struct{}

func (identity) T(key string) string { return key }

// New creates the instance of d. basePath prefixes the submit and close
// endpoints, e.g. /p/{token}/modals/{id}.
func New(d Descriptor, tr i18n.Translator, basePath string) *Instance {
	if tr == nil {
		tr = identity{}
	}
	return &Instance{desc: d, tr: tr, basePath: basePath, values: NewValues()}
}

func (m *Instance) ID() string {
	return m.desc.ID
}

func (m *Instance) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open returns the context of the current open.
func (m *Instance) Open() OpenContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Mount renders the modal with an empty form for the initial page.
func (m *Instance) Mount() gomponents.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	opts := m.optionsLocked(NewValues(), nil)
	opts.Attrs = []gomponents.Node{gomponents.Attr("data-hide-url", m.basePath+"/hide")}
	return Shell(opts)
}

// Values returns the values the form was last rendered from.
func (m *Instance) Values() Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values
}

// Show runs OnLoad and returns the fresh modal content. Only an expired
// session is returned as error; other load failures are shown in the form.
// A Show overtaken by a newer Show or Hide returns ErrStale and leaves the
// modal untouched.
func (m *Instance) Show(ctx context.Context, open OpenContext) (gomponents.Node, error) {
	m.mu.Lock()
	if m.state == Submitting {
		m.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	m.seq++
	seq := m.seq
	m.state = Loading
	m.open = open
	m.result = nil
	m.succeeded = false
	m.mu.Unlock()

	values := NewValues()
	var loadErr error
	if m.desc.OnLoad != nil {
		values, loadErr = m.desc.OnLoad(ctx, open)
		if values.Fields == nil {
			values = NewValues()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		logger.Logtype(logger.StatusDebug, 0).
			Str("modal", m.desc.ID).
			Str("record", open.RecordID).
			Msg("Discarding stale modal load")
		if apperrors.IsSessionExpired(loadErr) {
			return nil, loadErr
		}
		return nil, ErrStale
	}
	if loadErr != nil {
		if apperrors.IsSessionExpired(loadErr) {
			m.state = Hidden
			return nil, loadErr
		}
		logger.Logtype(logger.StatusWarning, 0).
			Str("modal", m.desc.ID).
			Err(loadErr).
			Msg("Failed to load modal data")
		m.result = Failure(apperrors.UserMessage(loadErr, m.tr.T("Failed to load data")))
	}
	m.values = values
	m.state = Idle
	return Sections(m.optionsLocked(values, m.result)), nil
}

// SubmitResult is the answer to a submit.
type SubmitResult struct {
	// Node replaces the feedback region.
	Node    gomponents.Node
	Success bool
	// Focus is the input id to focus after a failed required check.
	Focus string
}

// Submit validates required fields and runs OnSubmit. A failed required check
// makes no call to OnSubmit.
func (m *Instance) Submit(ctx context.Context, form url.Values) (SubmitResult, error) {
	m.mu.Lock()
	if m.state != Idle || m.desc.ReadOnly {
		m.mu.Unlock()
		return SubmitResult{}, ErrInvalidTransition
	}
	for _, f := range m.desc.Fields {
		if f.Required && f.Custom == nil && strings.TrimSpace(form.Get(f.ID)) == "" {
			m.result = Failure(m.tr.T("Please fill in the required field") + ": " + m.tr.T(f.Label))
			res := SubmitResult{Node: m.resultBoxLocked(), Focus: m.inputID(f.ID)}
			m.mu.Unlock()
			return res, nil
		}
	}
	m.state = Submitting
	open := m.open
	m.mu.Unlock()

	sc := &SubmitContext{Open: open, Form: form}
	ok := false
	var err error
	if m.desc.OnSubmit != nil {
		ok, err = m.desc.OnSubmit(ctx, sc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if apperrors.IsSessionExpired(err) {
			m.state = Hidden
			return SubmitResult{}, err
		}
		ok = false
		sc.result = Failure(apperrors.UserMessage(err, m.tr.T("Unexpected error occurred")))
	}
	if m.state != Submitting {
		// closed while the request was in flight
		return SubmitResult{Node: resultBox(m.desc.ID, sc.result), Success: ok}, nil
	}
	m.state = Idle
	m.result = sc.result
	if ok {
		m.succeeded = true
	}
	return SubmitResult{Node: m.resultBoxLocked(), Success: ok}, nil
}

// Hide closes the modal. It reports whether the page table must be refreshed.
func (m *Instance) Hide() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	reload := m.desc.ReloadOnSuccess && m.succeeded
	m.seq++
	m.state = Hidden
	m.open = OpenContext{}
	m.result = nil
	m.succeeded = false
	return reload
}

func (m *Instance) inputID(field string) string {
	return m.desc.ID + "-" + field
}

// ResultID is the id of the feedback region of modal id.
func ResultID(id string) string {
	return id + "-result"
}

// FormID is the id of the form of modal id.
func FormID(id string) string {
	return id + "-form"
}

func (m *Instance) resultBoxLocked() gomponents.Node {
	return resultBox(m.desc.ID, m.result)
}

// resultBox stays hidden until something is written to it.
func resultBox(id string, result gomponents.Node) gomponents.Node {
	return html.Div(
		html.ID(ResultID(id)),
		html.Class("alert alert-info mt-3"),
		gomponents.If(result == nil, html.Style("display:none")),
		result,
	)
}

func (m *Instance) optionsLocked(values Values, result gomponents.Node) Options {
	id := m.desc.ID
	fields := make([]gomponents.Node, 0, len(m.desc.Fields))
	for _, f := range m.desc.Fields {
		fields = append(fields, html.Div(
			html.Class("mb-3"),
			gomponents.If(f.Label != "", html.Label(html.For(m.inputID(f.ID)), html.Class("form-label"), gomponents.Text(m.tr.T(f.Label)))),
			m.input(f, values),
		))
	}

	body := gomponents.Group([]gomponents.Node{
		html.Form(
			html.ID(FormID(id)),
			hx.Post(m.basePath+"/submit"),
			hx.Target("#"+ResultID(id)),
			hx.Swap("outerHTML"),
			gomponents.Group(fields),
		),
		resultBox(id, result),
	})
	buttons := []gomponents.Node{
		html.Button(
			html.Type("button"),
			html.Class("btn btn-secondary"),
			gomponents.Attr("data-bs-dismiss", "modal"),
			gomponents.Text(m.tr.T("Close")),
		),
	}
	if !m.desc.ReadOnly {
		buttons = append(buttons, html.Button(
			html.Type("submit"),
			html.Class("btn btn-primary"),
			html.ID(id+"-submit-btn"),
			gomponents.Attr("form", FormID(id)),
			gomponents.Text(m.tr.T("Save")),
		))
	}
	footer := gomponents.Group(buttons)
	return Options{ID: id, Title: m.tr.T(m.desc.Title), Body: body, Footer: footer}
}

func (m *Instance) input(f Field, values Values) gomponents.Node {
	if f.Custom != nil {
		return f.Custom(values)
	}
	value := values.Fields[f.ID]
	common := []gomponents.Node{
		html.ID(m.inputID(f.ID)),
		html.Name(f.ID),
		gomponents.If(f.Required, html.Required()),
		gomponents.Group(f.Attrs),
	}
	if f.Type == "select" {
		opts := []gomponents.Node{html.Option(html.Value(""), gomponents.Text("-- "+m.tr.T("Select")+" --"))}
		for _, o := range values.Options[f.ID] {
			opts = append(opts, html.Option(
				html.Value(o.Value),
				gomponents.If(o.Value == value, html.Selected()),
				gomponents.Text(o.Label),
			))
		}
		return html.Select(html.Class("form-select"), gomponents.Group(common), gomponents.Group(opts))
	}
	typ := f.Type
	if typ == "" {
		typ = "text"
	}
	return html.Input(
		html.Type(typ),
		html.Class("form-control"),
		gomponents.Group(common),
		gomponents.If(f.Placeholder != "", html.Placeholder(f.Placeholder)),
		gomponents.If(value != "", html.Value(value)),
	)
}
