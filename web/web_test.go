package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/modal"
	"github.com/antchfx/htmlquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	mu     sync.Mutex
	mux    *http.ServeMux
	bodies map[string]string
}

func (b *backend) handle(pattern string, status int, body string) {
	b.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

func (b *backend) called(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.bodies[key]
	return s, ok
}

type fixture struct {
	t       *testing.T
	backend *backend
	server  *Server
	router  *gin.Engine
}

func newFixture(t *testing.T, configure ...func(*Options)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &backend{mux: http.NewServeMux(), bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies[r.Method+" "+r.URL.Path] = string(data)
		b.mu.Unlock()
		b.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	bundle, err := i18n.Load("en")
	require.NoError(t, err)
	opts := Options{
		Client:             apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api"}),
		Bundle:             bundle,
		LoginRatePerMinute: 100,
		LoginBurst:         10,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	s := NewServer(opts)
	return &fixture{t: t, backend: b, server: s, router: s.Router()}
}

func (f *fixture) login(user modal.CurrentUser) Session {
	sess := f.server.opts.Sessions.Create("tok", user, "")
	return *sess
}

type request struct {
	method  string
	path    string
	form    url.Values
	session *Session
	csrf    bool
	htmx    bool
	headers map[string]string
}

func (f *fixture) do(r request) *httptest.ResponseRecorder {
	f.t.Helper()
	var body io.Reader
	if r.form != nil {
		body = strings.NewReader(r.form.Encode())
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if r.session != nil {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: r.session.ID})
		if r.csrf {
			req.Header.Set(csrfHeader, r.session.CSRFToken)
		}
	}
	if r.htmx {
		req.Header.Set("HX-Request", "true")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// openPage renders the management page of entity and returns its base path.
func (f *fixture) openPage(sess *Session, entity string) string {
	f.t.Helper()
	w := f.do(request{method: http.MethodGet, path: "/" + entity + "/management", session: sess})
	require.Equal(f.t, http.StatusOK, w.Code)
	doc, err := htmlquery.Parse(strings.NewReader(w.Body.String()))
	require.NoError(f.t, err)
	root := htmlquery.FindOne(doc, `//div[@id='management-page']`)
	require.NotNil(f.t, root)
	return strings.TrimSuffix(htmlquery.SelectAttr(root, "data-actions-url"), "/actions")
}

var admin = modal.CurrentUser{ID: "1", Username: "root", Role: "superadmin"}

func TestLoginPageForAnonymous(t *testing.T) {
	f := newFixture(t)
	w := f.do(request{method: http.MethodGet, path: "/?error=Nope"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="loginForm"`)
	assert.Contains(t, w.Body.String(), "Nope")
}

func TestLoginCreatesSession(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/users/login", 200,
		`{"id":7,"username":"anna","access_token":"abc","token_type":"bearer","role":"admin","company_id":3}`)

	w := f.do(request{method: http.MethodPost, path: "/login", form: url.Values{"identifier": {"anna"}, "password": {"pw"}}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	sent, _ := f.backend.called("POST /api/users/login")
	assert.JSONEq(t, `{"identifier":"anna","password":"pw"}`, sent)

	var id string
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			id = c.Value
		}
	}
	require.NotEmpty(t, id)
	sess, ok := f.server.opts.Sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, "abc", sess.Token)
	assert.Equal(t, modal.CurrentUser{ID: "7", Username: "anna", Role: "admin", CompanyID: "3"}, sess.User)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/users/login", 401, `{"detail":"Invalid credentials"}`)

	w := f.do(request{method: http.MethodPost, path: "/login", form: url.Values{"identifier": {"anna"}, "password": {"bad"}}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/?error=Invalid+credentials", w.Header().Get("Location"))
	assert.Equal(t, 0, f.server.opts.Sessions.Len())
}

func TestLoginThrottled(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.LoginRatePerMinute = 1
		o.LoginBurst = 1
	})
	f.backend.handle("POST /api/users/login", 401, `{}`)

	form := url.Values{"identifier": {"anna"}, "password": {"bad"}}
	f.do(request{method: http.MethodPost, path: "/login", form: form})
	w := f.do(request{method: http.MethodPost, path: "/login", form: form})
	assert.Contains(t, w.Header().Get("Location"), "Too+many+login+attempts")
}

func TestManagementRequiresSession(t *testing.T) {
	f := newFixture(t)
	w := f.do(request{method: http.MethodGet, path: "/users/management"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = f.do(request{method: http.MethodGet, path: "/users/management", htmx: true})
	assert.Equal(t, "/", w.Header().Get("HX-Redirect"))
}

func TestManagementPageRendersShell(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[{"id":1,"name":"Bolt","is_active":true}],"total":1}`)
	sess := f.login(modal.CurrentUser{ID: "2", Username: "eve", Role: "admin", CompanyID: "4"})

	w := f.do(request{method: http.MethodGet, path: "/items/management", session: &sess})
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := htmlquery.Parse(strings.NewReader(w.Body.String()))
	require.NoError(t, err)

	data := htmlquery.FindOne(doc, `//div[@id='page-data']`)
	require.NotNil(t, data)
	assert.Equal(t, "admin", htmlquery.SelectAttr(data, "data-role"))
	assert.Equal(t, "4", htmlquery.SelectAttr(data, "data-company-id"))
	assert.NotNil(t, htmlquery.FindOne(doc, `//script[@id='js-translations'][@type='application/json']`))
	assert.Equal(t, sess.CSRFToken, htmlquery.SelectAttr(htmlquery.FindOne(doc, `//meta[@name='csrf-token']`), "content"))
	assert.NotNil(t, htmlquery.FindOne(doc, `//div[@id='createItemModal'][@data-hide-url]`))
	assert.Equal(t, 1, f.server.opts.Pages.Len())
}

func TestCustomActionRefreshesTable(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[{"id":1,"name":"Bolt","is_active":true}],"total":1}`)
	f.backend.handle("POST /api/items/toggle_item_is_active/1", 200, `{"success":true}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "items")

	w := f.do(request{method: http.MethodPost, path: base + "/actions/toggle-item", form: url.Values{"id": {"1"}}, session: &sess, csrf: true, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#items-table", w.Header().Get("HX-Retarget"))
	assert.Equal(t, "innerHTML", w.Header().Get("HX-Reswap"))
	_, ok := f.backend.called("POST /api/items/toggle_item_is_active/1")
	assert.True(t, ok)
}

func TestActionWithoutCSRFIsForbidden(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[],"total":0}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "items")

	w := f.do(request{method: http.MethodPost, path: base + "/actions/toggle-item", form: url.Values{"id": {"1"}}, session: &sess})
	assert.Equal(t, http.StatusForbidden, w.Code)
	_, ok := f.backend.called("POST /api/items/toggle_item_is_active/1")
	assert.False(t, ok)
}

func TestOpenActionShowsModal(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[],"total":0}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "items")

	w := f.do(request{method: http.MethodPost, path: base + "/actions/open-create-item-modal", form: url.Values{"id": {""}}, session: &sess, csrf: true, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#createItemModal-content", w.Header().Get("HX-Retarget"))
	assert.JSONEq(t, `{"modal:show":"createItemModal"}`, w.Header().Get("HX-Trigger-After-Swap"))
	assert.Contains(t, w.Body.String(), `name="price"`)

	w = f.do(request{method: http.MethodPost, path: base + "/modals/createItemModal/submit", form: url.Values{"name": {""}}, session: &sess, csrf: true, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"modal:focus":"createItemModal-name"}`, w.Header().Get("HX-Trigger-After-Swap"))
	_, ok := f.backend.called("POST /api/items/create")
	assert.False(t, ok)
}

func TestSubmitWithoutOpenConflicts(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[],"total":0}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "items")

	w := f.do(request{method: http.MethodPost, path: base + "/modals/createItemModal/submit", form: url.Values{"name": {"x"}}, session: &sess, csrf: true, htmx: true})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHideAfterSuccessRefreshes(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/companies/paginate", 200, `{"data":[],"total":0}`)
	f.backend.handle("POST /api/companies/create", 200, `{"message":"ok"}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "companies")

	f.do(request{method: http.MethodPost, path: base + "/actions/open-create-company-modal", form: url.Values{}, session: &sess, csrf: true, htmx: true})
	w := f.do(request{method: http.MethodPost, path: base + "/modals/createCompanyModal/submit",
		form: url.Values{"company_name": {"Acme"}, "field": {"retail"}}, session: &sess, csrf: true, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Company created successfully!")

	w = f.do(request{method: http.MethodPost, path: base + "/modals/createCompanyModal/hide", form: url.Values{}, session: &sess, csrf: true, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#companies-table", w.Header().Get("HX-Retarget"))
}

func TestSessionExpiryDuringActionRedirects(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[],"total":0}`)
	f.backend.handle("POST /api/items/toggle_item_is_active/1", 401, `{}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "items")

	w := f.do(request{method: http.MethodPost, path: base + "/actions/toggle-item", form: url.Values{"id": {"1"}}, session: &sess, csrf: true, htmx: true})
	assert.Equal(t, "/", w.Header().Get("HX-Redirect"))
	_, ok := f.server.opts.Sessions.Get(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, f.server.opts.Pages.Len())
}

func TestBackendRejectionAlerts(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/companies/paginate", 200, `{"data":[],"total":0}`)
	f.backend.handle("POST /api/companies/delete/3", 400, `{"detail":"Company has users"}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "companies")

	w := f.do(request{method: http.MethodPost, path: base + "/actions/delete-company", form: url.Values{"id": {"3"}}, session: &sess, csrf: true, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", w.Header().Get("HX-Reswap"))
	assert.JSONEq(t, `{"app:alert":"Company has users"}`, w.Header().Get("HX-Trigger-After-Swap"))
}

func TestUnknownPageViewRefreshes(t *testing.T) {
	f := newFixture(t)
	sess := f.login(admin)
	w := f.do(request{method: http.MethodPost, path: "/p/missing/actions/toggle-item", form: url.Values{}, session: &sess, csrf: true, htmx: true})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "true", w.Header().Get("HX-Refresh"))
}

func TestPageViewOfOtherSessionIsHidden(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[],"total":0}`)
	owner := f.login(admin)
	base := f.openPage(&owner, "items")

	intruder := f.login(admin)
	w := f.do(request{method: http.MethodPost, path: base + "/actions/toggle-item", form: url.Values{"id": {"1"}}, session: &intruder, csrf: true, htmx: true})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestTableEndpointLoadsPage(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/orders/paginate", 200, `{"data":[{"id":6,"status":"completed"}],"total":12}`)
	sess := f.login(admin)
	base := f.openPage(&sess, "orders")

	w := f.do(request{method: http.MethodGet, path: base + "/tables/orders-table?page=2", session: &sess, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	sent, _ := f.backend.called("POST /api/orders/paginate")
	assert.JSONEq(t, `{"limit":5,"offset":10,"filters":{}}`, sent)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("GET /api/users/get_user_stats", 200, `{"total_users":12,"online_users":3}`)
	f.backend.handle("GET /api/orders/order_counts", 200, `{"pending":1,"completed":2,"cancelled":0}`)
	f.backend.handle("POST /api/users/paginate", 200, `{"data":[],"total":0}`)
	f.backend.handle("POST /api/companies/paginate", 200, `{"data":[],"total":0}`)
	sess := f.login(admin)

	w := f.do(request{method: http.MethodGet, path: "/", session: &sess})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Total Users: ")
	assert.Contains(t, w.Body.String(), `id="online-users-table"`)
}

func TestLogoutEndsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/users/logout", 200, `{"message":"bye"}`)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[],"total":0}`)
	sess := f.login(admin)
	f.openPage(&sess, "items")

	w := f.do(request{method: http.MethodGet, path: "/logout", session: &sess})
	assert.Equal(t, http.StatusFound, w.Code)
	_, called := f.backend.called("POST /api/users/logout")
	assert.True(t, called)
	assert.Equal(t, 0, f.server.opts.Sessions.Len())
	assert.Equal(t, 0, f.server.opts.Pages.Len())
}

func TestSetLanguage(t *testing.T) {
	f := newFixture(t)
	sess := f.login(admin)
	w := f.do(request{method: http.MethodGet, path: "/set_language?lang=cs", session: &sess,
		headers: map[string]string{"Referer": "http://example.com/items/management?x=1"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/items/management?x=1", w.Header().Get("Location"))
	stored, _ := f.server.opts.Sessions.Get(sess.ID)
	assert.Equal(t, "cs", stored.Lang)

	w = f.do(request{method: http.MethodGet, path: "/set_language?lang=xx", session: &sess})
	assert.Equal(t, "/", w.Header().Get("Location"))
	stored, _ = f.server.opts.Sessions.Get(sess.ID)
	assert.Equal(t, "cs", stored.Lang)
}

func TestCanonicalHostRedirect(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.CanonicalHost = "admin.example.com" })
	w := f.do(request{method: http.MethodGet, path: "/items/management?page=1"})
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "http://admin.example.com/items/management?page=1", w.Header().Get("Location"))
}

func TestGithubLoginRedirects(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("GET /api/users/auth/github/login", 200, `{"redirect_url":"https://github.com/login/oauth/authorize?x=1"}`)
	w := f.do(request{method: http.MethodGet, path: "/auth/github/login"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://github.com/login/oauth/authorize?x=1", w.Header().Get("Location"))
}

func TestOAuthSuccessStartsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("GET /api/users/me", 200, `{"id":9,"username":"octo","role":"user","company_id":null,"oauth_info":{"provider":"github"}}`)
	w := f.do(request{method: http.MethodGet, path: "/auth/oauth-success?token=gh"})
	assert.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, 1, f.server.opts.Sessions.Len())
}

func TestSweepDropsExpiredSessionsWithPages(t *testing.T) {
	f := newFixture(t)
	f.backend.handle("POST /api/items/paginate", 200, `{"data":[],"total":0}`)
	sess := f.login(admin)
	f.openPage(&sess, "items")

	f.server.opts.Sessions.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	summary := f.server.Sweep()
	assert.Contains(t, summary, "sessions=1")
	assert.Equal(t, 0, f.server.opts.Pages.Len())
}

func TestSessionStoreExpiry(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	sess := ss.Create("tok", admin, "en")
	_, ok := ss.Get(sess.ID)
	assert.True(t, ok)
	assert.NotEqual(t, sess.ID, ss.Create("tok", admin, "en").ID)

	ss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok = ss.Get(sess.ID)
	assert.False(t, ok)
	assert.Len(t, ss.Cleanup(), 1)
}

func TestLoginLimiter(t *testing.T) {
	l := newLoginLimiter(1, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Sweep(-time.Second))
	assert.True(t, newLoginLimiter(0, 0).Allow("a"))
}
