// Package web serves the admin dashboard: login, the page shell and the
// htmx endpoints of the management pages.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DeanThompson/ginpprof"
	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/entities"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/management"
	"github.com/alitto/pond/v2"
	"github.com/gin-gonic/gin"
	"maragu.dev/gomponents"
)

// Options configures a Server.
type Options struct {
	// Client is the unauthenticated backend client. Requests use copies
	// carrying the session token.
	Client   *apiclient.Client
	Bundle   *i18n.Bundle
	Pages    *management.Store
	Sessions *SessionStore
	// Pool loads independent form options concurrently. Nil loads them in turn.
	Pool pond.Pool

	CanonicalHost      string
	SecureCookies      bool
	LoginRatePerMinute int
	LoginBurst         int
	// Debug mounts the pprof handlers.
	Debug bool
}

// Server holds the collaborators of the HTTP handlers.
type Server struct {
	opts    Options
	limiter *loginLimiter
}

func NewServer(opts Options) *Server {
	if opts.Sessions == nil {
		opts.Sessions = NewSessionStore(0)
	}
	if opts.Pages == nil {
		opts.Pages = management.NewStore(0)
	}
	return &Server{opts: opts, limiter: newLoginLimiter(opts.LoginRatePerMinute, opts.LoginBurst)}
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(logger.GinLogger(), logger.ErrorLogger(), gin.Recovery(), s.canonicalHost)
	if s.opts.Debug {
		ginpprof.Wrap(router)
	}

	router.GET("/", s.home)
	router.POST("/login", s.handleLogin)
	router.GET("/logout", s.handleLogout)
	router.GET("/set_language", s.setLanguage)
	router.GET("/auth/github/login", s.githubLogin)
	router.GET("/auth/oauth-success", s.oauthSuccess)
	router.GET("/auth/oauth-linked", s.oauthSuccess)

	auth := router.Group("/", s.requireAuth, s.requireCSRF)
	auth.GET("/auth/github/link", s.githubLink)
	for _, name := range entities.Names() {
		auth.GET("/"+name+"/management", s.managementPage(name))
	}

	page := auth.Group("/p/:token")
	page.POST("/actions/:name", s.pageAction)
	page.GET("/tables/:container", s.pageTable)
	page.POST("/modals/:id/submit", s.modalSubmit)
	page.POST("/modals/:id/hide", s.modalHide)
	return router
}

// Sweep drops expired sessions with their pages, expired page views and
// idle login limiters. It returns a summary for the job log.
func (s *Server) Sweep() string {
	sessions := s.opts.Sessions.Cleanup()
	for _, id := range sessions {
		s.opts.Pages.DropOwner(id)
	}
	pages := s.opts.Pages.Sweep()
	visitors := s.limiter.Sweep(time.Hour)
	return "sessions=" + strconv.Itoa(len(sessions)) + " pages=" + strconv.Itoa(pages) + " limiters=" + strconv.Itoa(visitors)
}

// canonicalHost redirects requests on another host permanently.
func (s *Server) canonicalHost(c *gin.Context) {
	want := s.opts.CanonicalHost
	if want == "" || strings.EqualFold(c.Request.Host, want) {
		c.Next()
		return
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	c.Redirect(http.StatusMovedPermanently, scheme+"://"+want+c.Request.URL.RequestURI())
	c.Abort()
}

// render writes node as an HTML document or fragment.
func render(c *gin.Context, status int, node gomponents.Node) {
	var buf strings.Builder
	if err := node.Render(&buf); err != nil {
		logger.Logtype(logger.StatusError, 0).Err(err).Str("path", c.Request.URL.Path).Msg("Render failed")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "text/html; charset=utf-8", []byte(buf.String()))
}
