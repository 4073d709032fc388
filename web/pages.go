package web

import (
	"errors"
	"net/http"

	"github.com/Kellerman81/go_business_admin/actions"
	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/entities"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/management"
	"github.com/Kellerman81/go_business_admin/modal"
	"github.com/Kellerman81/go_business_admin/pagination"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"maragu.dev/gomponents"
)

// FocusEvent asks the browser to focus an input after a swap.
const FocusEvent = "modal:focus"

var pageTitles = map[string]string{
	"users":     "Users",
	"companies": "Companies",
	"items":     "Items",
	"orders":    "Orders",
}

func (s *Server) env(sess Session, tr *i18n.Catalog) entities.Env {
	return entities.Env{
		Client: s.opts.Client.WithToken(sess.Token),
		User:   sess.User,
		Tr:     tr,
		Pool:   s.opts.Pool,
	}
}

// mount initialises cfg as a new page view of the session.
func (s *Server) mount(c *gin.Context, sess Session, env entities.Env, cfg management.Config) (gomponents.Node, error) {
	token := management.NewToken()
	p, err := management.Init(c.Request.Context(), cfg, management.Deps{
		Fetcher:    env.Client,
		Translator: env.Tr,
		User:       sess.User,
		BasePath:   management.BasePath(token),
	})
	if err != nil {
		return nil, err
	}
	s.opts.Pages.Put(token, sess.ID, p)
	return p.Render(), nil
}

// home is the dashboard of a logged in user and the login page otherwise.
func (s *Server) home(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		render(c, http.StatusOK, s.loginPage(s.translator(c, Session{}), c.Query("error")))
		return
	}
	c.Set(sessionCtxKey, sess)
	tr := s.translator(c, sess)
	env := s.env(sess, tr)

	cards, err := entities.DashboardCards(c.Request.Context(), env)
	if err != nil {
		s.fail(c, err)
		return
	}
	content, err := s.mount(c, sess, env, entities.Dashboard(env))
	if err != nil {
		s.fail(c, err)
		return
	}
	nodes := []gomponents.Node{cards, content}
	if msg := c.Query("error"); msg != "" {
		nodes = append([]gomponents.Node{modal.Failure(msg)}, nodes...)
	}
	render(c, http.StatusOK, s.layout(sess, tr, "/", "Dashboard", nodes...))
}

// managementPage renders a fresh page view of entity.
func (s *Server) managementPage(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		tr := s.translator(c, sess)
		env := s.env(sess, tr)
		cfg, ok := entities.Page(entity, env)
		if !ok {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		content, err := s.mount(c, sess, env, cfg)
		if err != nil {
			s.fail(c, err)
			return
		}
		render(c, http.StatusOK, s.layout(sess, tr, "/"+entity+"/management", pageTitles[entity], content))
	}
}

// page resolves the page view of the token. A page that expired or belongs
// to another session makes the browser reload.
func (s *Server) page(c *gin.Context) (*management.Page, bool) {
	p, ok := s.opts.Pages.Get(c.Param("token"), currentSession(c).ID)
	if !ok {
		logger.Logtype(logger.StatusDebug, 0).Str("token", c.Param("token")).Msg("Unknown page view")
		c.Header("HX-Refresh", "true")
		c.AbortWithStatus(http.StatusGone)
		return nil, false
	}
	return p, true
}

func (s *Server) pageAction(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	out, handled, err := p.Dispatch(c.Request.Context(), c.Param("name"), c.PostForm("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !handled {
		logger.Logtype(logger.StatusDebug, 0).Str("page", p.Name).Str("action", c.Param("name")).Msg("No handler for action")
	}
	writeOutcome(c, out)
}

func (s *Server) pageTable(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	node, err := p.LoadTable(c.Request.Context(), c.Param("container"), management.ParsePage(c.Query("page")))
	switch {
	case err == nil:
		render(c, http.StatusOK, node)
	case errors.Is(err, pagination.ErrStale):
		c.Header("HX-Reswap", "none")
		c.Status(http.StatusNoContent)
	default:
		s.fail(c, err)
	}
}

func (s *Server) modalSubmit(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	m, ok := p.Modal(c.Param("id"))
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	res, err := m.Submit(c.Request.Context(), c.Request.PostForm)
	if errors.Is(err, modal.ErrInvalidTransition) {
		c.Header("HX-Reswap", "none")
		c.Status(http.StatusConflict)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Focus != "" {
		setTrigger(c, map[string]any{FocusEvent: res.Focus})
	}
	render(c, http.StatusOK, res.Node)
}

func (s *Server) modalHide(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	out, err := p.HideModal(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeOutcome(c, out)
}

func setTrigger(c *gin.Context, events map[string]any) {
	data, err := json.Marshal(events)
	if err != nil {
		logger.Logtype(logger.StatusError, 0).Err(err).Msg("Failed to encode trigger")
		return
	}
	c.Header("HX-Trigger-After-Swap", string(data))
}

// writeOutcome maps an action outcome to htmx response headers.
func writeOutcome(c *gin.Context, out actions.Outcome) {
	events := make(map[string]any, len(out.Events)+1)
	for k, v := range out.Events {
		events[k] = v
	}
	if out.Alert != "" {
		events[management.AlertEvent] = out.Alert
	}
	if len(events) > 0 {
		setTrigger(c, events)
	}
	if out.Render == nil {
		c.Header("HX-Reswap", "none")
		c.Status(http.StatusOK)
		return
	}
	c.Header("HX-Retarget", out.Target)
	c.Header("HX-Reswap", out.Swap)
	render(c, http.StatusOK, out.Render)
}

// fail answers an error. An expired session ends the session and leaves
// the page, anything else is shown as alert.
func (s *Server) fail(c *gin.Context, err error) {
	if apperrors.IsSessionExpired(err) {
		logger.Logtype(logger.StatusInfo, 0).Str("path", c.Request.URL.Path).Msg("Session expired")
		sess := currentSession(c)
		s.endSession(c, sess.ID)
		s.redirectToLogin(c, apperrors.RedirectTarget(err))
		return
	}
	apperrors.LogClassifiedError(logger.Logtype(logger.StatusError, 0), err).
		Str("path", c.Request.URL.Path).
		Msg("Request failed")
	msg := apperrors.UserMessage(err, s.translator(c, currentSession(c)).T("Unexpected error occurred"))
	if isHTMX(c) {
		setTrigger(c, map[string]any{management.AlertEvent: msg})
		c.Header("HX-Reswap", "none")
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusBadGateway, "text/plain; charset=utf-8", []byte(msg))
}
