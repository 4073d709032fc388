package modal

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"maragu.dev/gomponents"
)

func parse(t *testing.T, n gomponents.Node) *html.Node {
	t.Helper()
	var b strings.Builder
	require.NoError(t, n.Render(&b))
	doc, err := htmlquery.Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	return doc
}

func itemDescriptor(calls *int, answer func() (bool, string)) Descriptor {
	return Descriptor{
		ID:    "createItemModal",
		Title: "Create Item",
		Fields: []Field{
			{ID: "name", Label: "Name", Required: true},
			{ID: "price", Label: "Price", Type: "number", Required: true},
			{ID: "note", Label: "Note"},
		},
		OnSubmit: func(_ context.Context, sc *SubmitContext) (bool, error) {
			*calls++
			ok, msg := answer()
			if ok {
				sc.WriteResult(Success("Item created successfully!"))
			} else {
				sc.WriteResult(Failure(msg))
			}
			return ok, nil
		},
		ReloadOnSuccess: true,
	}
}

func TestShellMarkup(t *testing.T) {
	doc := parse(t, Shell(Options{ID: "m1", Title: "Hello", Body: gomponents.Text("body"), Footer: gomponents.Text("foot")}))

	root := htmlquery.FindOne(doc, "//div[@id='m1']")
	require.NotNil(t, root)
	assert.Equal(t, "modal fade", htmlquery.SelectAttr(root, "class"))
	assert.Equal(t, "Hello", htmlquery.InnerText(htmlquery.FindOne(doc, "//h5[@class='modal-title']")))
	assert.NotNil(t, htmlquery.FindOne(doc, "//button[@class='btn-close'][@data-bs-dismiss='modal']"))
	assert.Equal(t, "body", htmlquery.InnerText(htmlquery.FindOne(doc, "//div[@class='modal-body']")))
	assert.Equal(t, "foot", htmlquery.InnerText(htmlquery.FindOne(doc, "//div[@class='modal-footer']")))
	assert.NotNil(t, htmlquery.FindOne(doc, "//div[@id='m1-content']"))
}

func TestMountRendersFormAndHiddenResult(t *testing.T) {
	calls := 0
	m := New(itemDescriptor(&calls, nil), nil, "/p/tok/modals/createItemModal")
	doc := parse(t, m.Mount())

	form := htmlquery.FindOne(doc, "//form[@id='createItemModal-form']")
	require.NotNil(t, form)
	assert.Equal(t, "/p/tok/modals/createItemModal/submit", htmlquery.SelectAttr(form, "hx-post"))
	assert.Len(t, htmlquery.Find(form, ".//div[@class='mb-3']"), 3)

	price := htmlquery.FindOne(doc, "//input[@id='createItemModal-price']")
	require.NotNil(t, price)
	assert.Equal(t, "number", htmlquery.SelectAttr(price, "type"))
	assert.Equal(t, "price", htmlquery.SelectAttr(price, "name"))
	assert.True(t, hasAttr(price, "required"))
	assert.False(t, hasAttr(htmlquery.FindOne(doc, "//input[@id='createItemModal-note']"), "required"))

	result := htmlquery.FindOne(doc, "//div[@id='createItemModal-result']")
	assert.Equal(t, "display:none", htmlquery.SelectAttr(result, "style"))
	assert.NotNil(t, htmlquery.FindOne(doc, "//button[@id='createItemModal-submit-btn'][@form='createItemModal-form']"))
	assert.Equal(t, "/p/tok/modals/createItemModal/hide", htmlquery.SelectAttr(htmlquery.FindOne(doc, "//div[@id='createItemModal']"), "data-hide-url"))
	assert.Equal(t, Hidden, m.State())
}

// An empty required field blocks the submit without calling the backend.
func TestSubmitRequiredFieldBlocks(t *testing.T) {
	calls := 0
	m := New(itemDescriptor(&calls, func() (bool, string) { return true, "" }), nil, "/x")
	_, err := m.Show(context.Background(), OpenContext{})
	require.NoError(t, err)

	res, err := m.Submit(context.Background(), url.Values{"name": {"  "}, "price": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.False(t, res.Success)
	assert.Equal(t, "createItemModal-name", res.Focus)
	assert.Contains(t, htmlquery.InnerText(parse(t, res.Node)), "Name")
	assert.Equal(t, Idle, m.State())
}

func TestSubmitSuccessAndFailureFeedback(t *testing.T) {
	calls := 0
	ok, msg := true, ""
	m := New(itemDescriptor(&calls, func() (bool, string) { return ok, msg }), nil, "/x")
	_, err := m.Show(context.Background(), OpenContext{})
	require.NoError(t, err)
	form := url.Values{"name": {"Bolt"}, "price": {"1.5"}}

	res, err := m.Submit(context.Background(), form)
	require.NoError(t, err)
	assert.True(t, res.Success)
	doc := parse(t, res.Node)
	assert.Contains(t, htmlquery.InnerText(doc), "Item created successfully!")
	assert.Empty(t, htmlquery.SelectAttr(htmlquery.FindOne(doc, "//div[@id='createItemModal-result']"), "style"))

	ok, msg = false, "SKU exists"
	res, err = m.Submit(context.Background(), form)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "SKU exists", htmlquery.InnerText(htmlquery.FindOne(parse(t, res.Node), "//div[@class='text-danger']")))
	assert.Equal(t, Idle, m.State(), "the modal stays open")
	assert.Equal(t, 2, calls)
}

func TestSubmitErrorBecomesFeedback(t *testing.T) {
	m := New(Descriptor{
		ID: "m",
		OnSubmit: func(context.Context, *SubmitContext) (bool, error) {
			return false, apperrors.New(apperrors.ErrClassBackend, "create", "Username taken")
		},
	}, nil, "/x")
	_, err := m.Show(context.Background(), OpenContext{})
	require.NoError(t, err)

	res, err := m.Submit(context.Background(), url.Values{})
	require.NoError(t, err)
	assert.Contains(t, htmlquery.InnerText(parse(t, res.Node)), "Username taken")
}

func TestSubmitSessionExpiredCloses(t *testing.T) {
	m := New(Descriptor{
		ID: "m",
		OnSubmit: func(context.Context, *SubmitContext) (bool, error) {
			return false, apperrors.NewSessionExpired("POST /items/create")
		},
	}, nil, "/x")
	_, err := m.Show(context.Background(), OpenContext{})
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), url.Values{})
	assert.True(t, apperrors.IsSessionExpired(err))
	assert.Equal(t, Hidden, m.State())
}

func TestSubmitWhileHiddenIsInvalid(t *testing.T) {
	m := New(Descriptor{ID: "m"}, nil, "/x")
	_, err := m.Submit(context.Background(), url.Values{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestShowPassesOpenContextAndRefills(t *testing.T) {
	var seen []string
	m := New(Descriptor{
		ID:     "editUserModal",
		Fields: []Field{{ID: "username", Label: "Username", Required: true}},
		OnLoad: func(_ context.Context, open OpenContext) (Values, error) {
			seen = append(seen, open.RecordID)
			v := NewValues()
			if open.RecordID == "7" {
				v.Set("username", "anna")
			}
			return v, nil
		},
	}, nil, "/x")

	node, err := m.Show(context.Background(), OpenContext{RecordID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "anna", htmlquery.SelectAttr(htmlquery.FindOne(parse(t, node), "//input[@name='username']"), "value"))
	assert.Equal(t, "7", m.Open().RecordID)

	m.Hide()
	node, err = m.Show(context.Background(), OpenContext{RecordID: "8"})
	require.NoError(t, err)
	assert.False(t, hasAttr(htmlquery.FindOne(parse(t, node), "//input[@name='username']"), "value"), "no value survives from the earlier open")
	assert.Equal(t, []string{"7", "8"}, seen)
}

func TestShowLoadFailureIsShownInForm(t *testing.T) {
	m := New(Descriptor{
		ID: "m",
		OnLoad: func(context.Context, OpenContext) (Values, error) {
			return Values{}, apperrors.New(apperrors.ErrClassBackend, "load", "User not found")
		},
	}, nil, "/x")

	node, err := m.Show(context.Background(), OpenContext{RecordID: "1"})
	require.NoError(t, err)
	assert.Contains(t, htmlquery.InnerText(parse(t, node)), "User not found")
	assert.Equal(t, Idle, m.State())
}

func TestShowSessionExpired(t *testing.T) {
	m := New(Descriptor{
		ID: "m",
		OnLoad: func(context.Context, OpenContext) (Values, error) {
			return Values{}, apperrors.NewSessionExpired("GET /users/get/1")
		},
	}, nil, "/x")

	_, err := m.Show(context.Background(), OpenContext{})
	assert.True(t, apperrors.IsSessionExpired(err))
	assert.Equal(t, Hidden, m.State())
}

func TestOverlappingShowKeepsNewestRecord(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m := New(Descriptor{
		ID:     "editUserModal",
		Fields: []Field{{ID: "username", Label: "Username"}},
		OnLoad: func(_ context.Context, open OpenContext) (Values, error) {
			if open.RecordID == "1" {
				close(started)
				<-release
			}
			v := NewValues()
			v.Set("username", "user-"+open.RecordID)
			return v, nil
		},
	}, nil, "/x")

	type result struct {
		node gomponents.Node
		err  error
	}
	first := make(chan result, 1)
	go func() {
		node, err := m.Show(context.Background(), OpenContext{RecordID: "1"})
		first <- result{node, err}
	}()
	<-started

	node, err := m.Show(context.Background(), OpenContext{RecordID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "user-2", htmlquery.SelectAttr(htmlquery.FindOne(parse(t, node), "//input[@name='username']"), "value"))

	close(release)
	old := <-first
	assert.ErrorIs(t, old.err, ErrStale)
	assert.Nil(t, old.node)
	assert.Equal(t, "2", m.Open().RecordID)
	assert.Equal(t, "user-2", m.Values().Fields["username"])
	assert.Equal(t, Idle, m.State())
}

func TestShowOvertakenByHideIsStale(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m := New(Descriptor{
		ID: "m",
		OnLoad: func(context.Context, OpenContext) (Values, error) {
			close(started)
			<-release
			return NewValues(), nil
		},
	}, nil, "/x")

	errc := make(chan error, 1)
	go func() {
		_, err := m.Show(context.Background(), OpenContext{RecordID: "1"})
		errc <- err
	}()
	<-started
	m.Hide()
	close(release)

	assert.ErrorIs(t, <-errc, ErrStale)
	assert.Equal(t, Hidden, m.State())
	assert.Empty(t, m.Open().RecordID)
}

func TestHideReportsReloadAfterSuccess(t *testing.T) {
	calls := 0
	m := New(itemDescriptor(&calls, func() (bool, string) { return true, "" }), nil, "/x")

	_, _ = m.Show(context.Background(), OpenContext{})
	assert.False(t, m.Hide(), "no reload without a successful submit")

	_, _ = m.Show(context.Background(), OpenContext{})
	_, err := m.Submit(context.Background(), url.Values{"name": {"a"}, "price": {"1"}})
	require.NoError(t, err)
	assert.True(t, m.Hide())
	assert.Equal(t, Hidden, m.State())
	assert.False(t, m.Hide())
}

func TestSelectRendersOptions(t *testing.T) {
	m := New(Descriptor{
		ID:     "createUserModal",
		Fields: []Field{{ID: "role", Label: "Role", Type: "select", Required: true}},
		OnLoad: func(context.Context, OpenContext) (Values, error) {
			v := NewValues()
			v.SetOptions("role", []Option{{Value: "manager", Label: "manager"}, {Value: "employee", Label: "employee"}})
			v.Set("role", "employee")
			return v, nil
		},
	}, nil, "/x")

	node, err := m.Show(context.Background(), OpenContext{})
	require.NoError(t, err)
	doc := parse(t, node)
	opts := htmlquery.Find(doc, "//select[@name='role']/option")
	require.Len(t, opts, 3)
	assert.True(t, hasAttr(opts[2], "selected"))
	assert.False(t, hasAttr(opts[1], "selected"))
}

func hasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func TestReadOnlyModalHasNoSubmit(t *testing.T) {
	m := New(Descriptor{
		ID:       "orderDetailsModal",
		ReadOnly: true,
		Fields: []Field{{ID: "details", Custom: func(v Values) gomponents.Node {
			return v.Nodes["details"]
		}}},
		OnLoad: func(context.Context, OpenContext) (Values, error) {
			v := NewValues()
			v.SetNode("details", gomponents.Text("Status: pending"))
			return v, nil
		},
	}, nil, "/x")

	node, err := m.Show(context.Background(), OpenContext{RecordID: "4"})
	require.NoError(t, err)
	doc := parse(t, node)
	assert.Nil(t, htmlquery.FindOne(doc, "//button[@type='submit']"))
	assert.Nil(t, htmlquery.FindOne(doc, "//label"))
	assert.Contains(t, htmlquery.InnerText(doc), "Status: pending")

	_, err = m.Submit(context.Background(), url.Values{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
