package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Kellerman81/go_business_admin/apiclient"
	"github.com/Kellerman81/go_business_admin/config"
	"github.com/Kellerman81/go_business_admin/i18n"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/Kellerman81/go_business_admin/management"
	"github.com/Kellerman81/go_business_admin/tasks"
	"github.com/Kellerman81/go_business_admin/web"
	"github.com/alitto/pond/v2"
	"github.com/gin-gonic/gin"
)

var (
	version    string
	buildstamp string
	githash    string
)

// main loads the configuration, wires the backend client, the session and
// page stores and the sweep job, then serves the admin interface until
// an interrupt arrives.
func main() {
	if err := config.LoadCfg(); err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}
	general := config.GetSettingsGeneral()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if general.EnableFileWatcher {
		if err := config.Watch(watchCtx, nil); err != nil {
			fmt.Printf("creating a new watcher: %s\n", err)
		}
	}

	logger.InitLogger(general.LoggerConfig())
	logger.LogDynamicany("info", "Starting go_business_admin")
	logger.LogDynamicany("info", "Version", "version", version, "commit", githash, "build", buildstamp)
	logger.LogDynamicany("info", "Backend", "url", general.APIURL)
	logger.LogDynamicany("info", "------------------------------")

	bundle, err := i18n.Load(general.DefaultLanguage)
	if err != nil {
		logger.Logtype(logger.StatusFatal, 0).Err(err).Msg("Translations could not be loaded")
		return
	}

	pool := pond.NewPool(general.OptionWorkers)
	sessions := web.NewSessionStore(time.Duration(general.SessionHours) * time.Hour)
	pages := management.NewStore(time.Duration(general.PageTTLMinutes) * time.Minute)

	debug := strings.EqualFold(general.LogLevel, logger.StrDebug)
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server := web.NewServer(web.Options{
		Client: apiclient.New(apiclient.Config{
			Name:      "backend",
			BaseURL:   general.APIURL,
			UserAgent: general.APIUserAgent,
		}),
		Bundle:             bundle,
		Pages:              pages,
		Sessions:           sessions,
		Pool:               pool,
		CanonicalHost:      general.CanonicalHost,
		SecureCookies:      general.SecureCookies,
		LoginRatePerMinute: general.LoginRatePerMinute,
		LoginBurst:         general.LoginBurst,
		Debug:              debug,
	})

	logger.LogDynamicany("info", "Starting Scheduler")
	scheduler := tasks.NewScheduler("maintenance")
	if err := scheduler.AddCron("sweep", general.SweepCron, server.Sweep); err != nil {
		logger.Logtype(logger.StatusError, 0).Err(err).Str("cron", general.SweepCron).Msg("Sweep job not scheduled")
	}
	scheduler.Start()

	httpServer := http.Server{
		Addr:              ":" + general.WebPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logtype(logger.StatusError, 0).Err(err).Msg("listen")
		}
	}()
	logger.LogDynamicany("info", "Started Webserver on port", "port", general.WebPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.LogDynamicany("info", "Server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		logger.Logtype(logger.StatusWarning, 0).Err(err).Msg("scheduler stop")
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Logtype(logger.StatusError, 0).Err(err).Msg("server shutdown")
	}
	pool.StopAndWait()

	logger.LogDynamicany("info", "Server exiting")
}
