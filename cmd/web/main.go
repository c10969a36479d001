// cmd/web/main.go
//
// Signup – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Bootstrap console logger so config errors are visible.
//
//  2. Load config (.env → conf/global.yaml → SIGNUP_ env).  Vault is only
//     contacted when a value is written as vault:<path>#<key>.
//
//  3. Start the daily rotating logger (tees to console in a TTY).
//
//  4. Open the optional GeoLite2 database.
//
//  5. Load form definitions: embedded defaults, then <root>/forms overrides.
//
//  6. Start the webhook queue and build the dispatcher.
//
//  7. Build the router and serve until SIGINT or SIGTERM, then stop the
//     listener and drain the webhook queue.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/signup/internal/config"
	"github.com/yanizio/signup/internal/form"
	"github.com/yanizio/signup/internal/logger"
	"github.com/yanizio/signup/internal/message"
	"github.com/yanizio/signup/internal/requestinfo"
	"github.com/yanizio/signup/internal/server"
	"github.com/yanizio/signup/internal/vault"
	"github.com/yanizio/signup/internal/web"
)

const (
	formID       = form.RegistrationID
	drainTimeout = 15 * time.Second
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	if err := run(); err != nil {
		zap.S().Errorw("signup exited", "err", err)
		_ = zap.L().Sync()
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Bootstrap logger ────────────────────────────────────────────
	//
	boot, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("bootstrap logger: %v", err)
	}
	zap.ReplaceGlobals(boot)

	//
	// ── 2.  Config ──────────────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx, func(ctx context.Context) (config.SecretResolver, error) {
		cli, err := vault.New(ctx, zap.S())
		if err != nil {
			return nil, err
		}
		return cli, nil
	})
	if err != nil {
		return err
	}

	//
	// ── 3.  File logger ─────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Paths.Root, runningInTTY(), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 4.  Geo database (optional) ─────────────────────────────────────
	//
	if cfg.Geo.DBPath != "" {
		if err := requestinfo.InitGeo(cfg.Geo.DBPath); err != nil {
			logOut.Warnw("geo lookup disabled", "err", err)
		} else {
			defer requestinfo.CloseGeo()
		}
	}

	//
	// ── 5.  Form definitions ────────────────────────────────────────────
	//
	if err := form.RegisterDefaults(); err != nil {
		return err
	}
	if err := form.RegisterForms([]string{filepath.Join(cfg.Paths.Root, "forms")}); err != nil {
		return err
	}
	def, ok := form.GetFormDef(formID)
	if !ok {
		return errors.New("registration form definition missing")
	}

	//
	// ── 6.  Webhook queue + dispatcher ──────────────────────────────────
	//
	queue := message.NewQueue(&http.Client{Timeout: cfg.Webhook.Timeout},
		cfg.Webhook.QueueSize, cfg.Webhook.Workers, logOut)
	queue.Start()

	dispatcher, err := form.NewWebhookDispatcher(def, cfg.Webhook.URL, queue)
	if err != nil {
		return err
	}

	//
	// ── 7.  Router + server ─────────────────────────────────────────────
	//
	site, err := web.New(def, dispatcher, form.NewCSRF(cfg.Form.CSRFKey), web.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		ForceHTTPS:     cfg.HTTP.ForceHTTPS,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
		TrustProxy:     cfg.HTTP.TrustProxy,
		MaxSessions:    cfg.Form.MaxSessions,
	}, form.WithLogger(logOut))
	if err != nil {
		return err
	}

	srv := server.New(cfg.HTTP.ListenAddr, site.Router(), server.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr, "form", def.ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logOut.Infow("shutting down")

		shutCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logOut.Warnw("http shutdown", "err", err)
		}
		// Handlers are done, so nothing enqueues anymore.
		return queue.Close(shutCtx)
	})
	return g.Wait()
}
