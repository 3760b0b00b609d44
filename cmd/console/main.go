package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-admin-console/backend"
	"github.com/jrsteele09/go-admin-console/console"
	"github.com/jrsteele09/go-admin-console/gateway"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/jrsteele09/go-admin-console/notify"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/jrsteele09/go-admin-console/storage"
	"github.com/jrsteele09/go-admin-console/storage/filestore"
	"github.com/jrsteele09/go-admin-console/storage/redisstore"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Registered once: run may be restarted.
	metrics := gateway.NewMetrics(prometheus.DefaultRegisterer)

	for {
		if err := run(metrics); err != nil {
			log.Error().Err(err).Msg("Error running console")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Console stopped")
}

func run(metrics *gateway.Metrics) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()
	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	sess := session.New(store)
	if err := sess.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to restore session, starting signed out")
	}

	feed := notify.NewFeed(c.GetNotificationBacklog())
	gw := gateway.New(c, sess, notify.Multi(feed, notify.NewLog(log.Logger)),
		gateway.WithMetrics(metrics))

	auth := backend.NewAuth(gw)
	gw.SetRefresher(auth.Refresh)
	gw.OnSessionExpired(func(ctx context.Context) {
		sess.Logout(ctx, auth)
	})

	handler, err := console.New(c, console.Deps{
		Session: sess,
		Gateway: gw,
		Auth:    auth,
		Feed:    feed,
		Metrics: promhttp.Handler(),
	})
	if err != nil {
		return fmt.Errorf("[main run] console: %w", err)
	}

	server := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func openStore(ctx context.Context, c config.Config) (storage.Store, error) {
	switch backendName := c.GetStorageBackend(); backendName {
	case config.StorageBackendRedis:
		s, err := redisstore.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("[main openStore] redis: %w", err)
		}
		return s, nil
	case config.StorageBackendFile:
		s, err := filestore.New(filestore.Config{Folder: c.GetDataFolder(), SealKey: c.GetStorageKey()})
		if err != nil {
			return nil, fmt.Errorf("[main openStore] file: %w", err)
		}
		log.Info().Str("path", s.Path()).Msg("Session storage")
		return s, nil
	default:
		return nil, fmt.Errorf("[main openStore] unknown storage backend %q", backendName)
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Console listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
