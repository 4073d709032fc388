package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/modal"
	"github.com/Kellerman81/go_business_admin/table"
	"github.com/gin-gonic/gin"
)

const (
	langCookie    = "lang"
	csrfHeader    = "X-CSRF-Token"
	sessionCtxKey = "session"
)

// loginResponse is the answer of /users/login and /users/me.
type loginResponse struct {
	ID          any            `json:"id"`
	Username    string         `json:"username"`
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	Role        string         `json:"role"`
	CompanyID   any            `json:"company_id"`
	OAuthInfo   map[string]any `json:"oauth_info"`
}

func (r loginResponse) user() modal.CurrentUser {
	id, _ := table.FormatValue(r.ID)
	company, _ := table.FormatValue(r.CompanyID)
	return modal.CurrentUser{ID: id, Username: r.Username, Role: r.Role, CompanyID: company}
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// currentSession returns the session stored by requireAuth.
func currentSession(c *gin.Context) Session {
	if v, ok := c.Get(sessionCtxKey); ok {
		if sess, ok := v.(Session); ok {
			return sess
		}
	}
	return Session{}
}

func (s *Server) lookupSession(c *gin.Context) (Session, bool) {
	id, err := c.Cookie(SessionCookie)
	if err != nil || id == "" {
		return Session{}, false
	}
	return s.opts.Sessions.Get(id)
}

// requireAuth sends requests without a valid session to the entry page.
func (s *Server) requireAuth(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		s.redirectToLogin(c, "/")
		return
	}
	c.Set(sessionCtxKey, sess)
	c.Next()
}

// requireCSRF checks the token of state changing requests.
func (s *Server) requireCSRF(c *gin.Context) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		c.Next()
		return
	}
	token := c.GetHeader(csrfHeader)
	if token == "" {
		token = c.PostForm("csrf_token")
	}
	if token == "" || token != currentSession(c).CSRFToken {
		logger.Logtype(logger.StatusWarning, 0).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Msg("Invalid CSRF token")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

// redirectToLogin clears the session cookie and leaves the page. htmx
// requests are redirected through HX-Redirect.
func (s *Server) redirectToLogin(c *gin.Context, target string) {
	s.clearCookie(c)
	if isHTMX(c) {
		c.Header("HX-Redirect", target)
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func (s *Server) setCookie(c *gin.Context, sess *Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	maxAge := int(sess.ExpiresAt.Sub(sess.CreatedAt).Seconds())
	c.SetCookie(SessionCookie, sess.ID, maxAge, "/", "", s.opts.SecureCookies, true)
}

func (s *Server) clearCookie(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", s.opts.SecureCookies, true)
}

// endSession forgets the session id with all its pages.
func (s *Server) endSession(c *gin.Context, id string) {
	if id != "" {
		s.opts.Sessions.Delete(id)
		s.opts.Pages.DropOwner(id)
	}
	s.clearCookie(c)
}

// language resolves the display language: session, cookie, browser, default.
func (s *Server) language(c *gin.Context, sess Session) string {
	if sess.Lang != "" && s.opts.Bundle.Supported(sess.Lang) {
		return sess.Lang
	}
	if lang, err := c.Cookie(langCookie); err == nil && s.opts.Bundle.Supported(lang) {
		return lang
	}
	return s.opts.Bundle.Match(c.GetHeader("Accept-Language"))
}

func (s *Server) translator(c *gin.Context, sess Session) *i18n.Catalog {
	return s.opts.Bundle.Catalog(s.language(c, sess))
}

// handleLogin forwards the credentials to the backend and opens a session.
func (s *Server) handleLogin(c *gin.Context) {
	tr := s.translator(c, Session{})
	if !s.limiter.Allow(c.ClientIP()) {
		logger.Logtype(logger.StatusWarning, 0).Str("client_ip", c.ClientIP()).Msg("Login throttled")
		c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(tr.T("Too many login attempts, try again later")))
		return
	}

	identifier := strings.TrimSpace(c.PostForm("identifier"))
	password := c.PostForm("password")
	var resp loginResponse
	err := s.opts.Client.Post(c.Request.Context(), "/users/login", map[string]string{
		"identifier": identifier,
		"password":   password,
	}, &resp)
	if err == nil && resp.AccessToken == "" {
		err = apperrors.New(apperrors.ErrClassBackend, "login", "")
	}
	if err != nil {
		msg := tr.T("Invalid credentials")
		if !apperrors.IsSessionExpired(err) {
			msg = apperrors.UserMessage(err, msg)
		}
		logger.Logtype(logger.StatusInfo, 0).
			Str("identifier", identifier).
			Str("client_ip", c.ClientIP()).
			Err(err).
			Msg("Login failed")
		c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(msg))
		return
	}

	s.startSession(c, resp.AccessToken, resp)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) startSession(c *gin.Context, token string, resp loginResponse) {
	if old, ok := s.lookupSession(c); ok {
		s.endSession(c, old.ID)
	}
	lang := ""
	if l, err := c.Cookie(langCookie); err == nil && s.opts.Bundle.Supported(l) {
		lang = l
	}
	sess := s.opts.Sessions.Create(token, resp.user(), lang)
	s.opts.Sessions.Update(sess.ID, func(st *Session) { st.OAuthInfo = resp.OAuthInfo })
	s.setCookie(c, sess)
	logger.Logtype(logger.StatusInfo, 0).
		Str("user", resp.Username).
		Str("role", resp.Role).
		Msg("User logged in")
}

// handleLogout tells the backend, then drops the session regardless of its answer.
func (s *Server) handleLogout(c *gin.Context) {
	if sess, ok := s.lookupSession(c); ok {
		if err := s.opts.Client.WithToken(sess.Token).Post(c.Request.Context(), "/users/logout", nil, nil); err != nil {
			logger.Logtype(logger.StatusWarning, 0).Err(err).Msg("Backend logout failed")
		}
		s.endSession(c, sess.ID)
	}
	c.Redirect(http.StatusFound, "/")
}

type redirectResponse struct {
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) githubRedirect(c *gin.Context, client *apiclient.Client, endpoint string) {
	var resp redirectResponse
	err := client.Get(c.Request.Context(), endpoint, &resp)
	if err == nil && resp.RedirectURL == "" {
		err = apperrors.New(apperrors.ErrClassBackend, endpoint, "no redirect url")
	}
	if err != nil {
		logger.Logtype(logger.StatusError, 0).Str("endpoint", endpoint).Err(err).Msg("GitHub login unavailable")
		c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(apperrors.UserMessage(err, "GitHub login unavailable")))
		return
	}
	c.Redirect(http.StatusFound, resp.RedirectURL)
}

func (s *Server) githubLogin(c *gin.Context) {
	s.githubRedirect(c, s.opts.Client, "/users/auth/github/login")
}

func (s *Server) githubLink(c *gin.Context) {
	s.githubRedirect(c, s.opts.Client.WithToken(currentSession(c).Token), "/users/auth/github/link")
}

// oauthSuccess completes a GitHub login or link. A login carries a new
// token, a link keeps the token of the current session.
func (s *Server) oauthSuccess(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if sess, ok := s.lookupSession(c); ok {
			token = sess.Token
		}
	}
	if token == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	var me loginResponse
	if err := s.opts.Client.WithToken(token).Get(c.Request.Context(), "/users/me", &me); err != nil {
		logger.Logtype(logger.StatusError, 0).Err(err).Msg("OAuth login failed")
		c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(apperrors.UserMessage(err, "GitHub login failed")))
		return
	}
	if sess, ok := s.lookupSession(c); ok && sess.Token == token {
		s.opts.Sessions.Update(sess.ID, func(st *Session) {
			st.User = me.user()
			st.OAuthInfo = me.OAuthInfo
		})
	} else {
		s.startSession(c, token, me)
	}
	c.Redirect(http.StatusFound, "/")
}

// setLanguage stores the language choice and returns to the referring page.
func (s *Server) setLanguage(c *gin.Context) {
	lang := c.Query("lang")
	if s.opts.Bundle.Supported(lang) {
		c.SetCookie(langCookie, lang, 365*24*3600, "/", "", s.opts.SecureCookies, false)
		if sess, ok := s.lookupSession(c); ok {
			s.opts.Sessions.Update(sess.ID, func(st *Session) { st.Lang = lang })
		}
	}
	target := "/"
	if ref, err := url.Parse(c.GetHeader("Referer")); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == c.Request.Host) {
		target = ref.RequestURI()
	}
	c.Redirect(http.StatusFound, target)
}
