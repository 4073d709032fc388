package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Options struct {
	// Name is added to every request line when set.
	Name string

	// Custom logger
	Logger *zerolog.Logger

	// SkipPaths are path prefixes that are never logged (static assets).
	SkipPaths []string
}

var (
	NameFieldName       = "name"
	ClientIPFieldName   = "client_ip"
	UserAgentFieldName  = "user_agent"
	DurationFieldName   = "elapsed"
	MethodFieldName     = "method"
	PathFieldName       = "path"
	RefererFieldName    = "referer"
	StatusCodeFieldName = "status_code"
	DataLengthFieldName = "data_length"
	HxTargetFieldName   = "hx_target"
)

// ErrorLogger renders errors collected on the gin context as JSON
// when no handler wrote a response.
func ErrorLogger() gin.HandlerFunc {
	return ErrorLoggerT(gin.ErrorTypeAny)
}

func ErrorLoggerT(typ gin.ErrorType) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !c.Writer.Written() {
			json := c.Errors.ByType(typ).JSON()
			if json != nil {
				c.JSON(-1, json)
			}
		}
	}
}

// GinLogger is a gin middleware which uses zerolog.
// Request bodies are never logged since login and user forms carry credentials.
func GinLogger() gin.HandlerFunc {
	return LoggerWithOptions(&Options{SkipPaths: []string{"/static/"}})
}

// LoggerWithOptions is a gin middleware which uses zerolog.
func LoggerWithOptions(opt *Options) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		z := opt.Logger
		if z == nil {
			z = &log
		}

		if z.GetLevel() == zerolog.Disabled || opt.skipped(ctx.Request.URL.Path) {
			ctx.Next()
			return
		}

		begin := time.Now()
		path := ctx.Request.URL.Path
		if raw := ctx.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		ctx.Next()

		statusCode := ctx.Writer.Status()
		var event *zerolog.Event
		switch {
		case statusCode >= 500:
			event = z.Error()
		case statusCode >= 400:
			event = z.Warn()
		default:
			event = z.Info()
		}

		if opt.Name != "" {
			event.Str(NameFieldName, opt.Name)
		}
		event.Str(ClientIPFieldName, ctx.ClientIP()).
			Str(MethodFieldName, ctx.Request.Method).
			Str(PathFieldName, path).
			Int(StatusCodeFieldName, statusCode).
			Dur(DurationFieldName, time.Since(begin))
		if ua := ctx.Request.UserAgent(); ua != "" {
			event.Str(UserAgentFieldName, ua)
		}
		if ref := ctx.Request.Referer(); ref != "" {
			event.Str(RefererFieldName, ref)
		}
		if ctx.Writer.Size() > 0 {
			event.Int(DataLengthFieldName, ctx.Writer.Size())
		}
		if target := ctx.GetHeader("HX-Target"); target != "" {
			event.Str(HxTargetFieldName, target)
		}

		message := ctx.Errors.String()
		if message == "" {
			message = "Request"
		}
		event.Msg(message)
	}
}

func (o *Options) skipped(path string) bool {
	for _, p := range o.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
