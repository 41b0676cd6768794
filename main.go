package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitovia/briefs/app"
	"github.com/sitovia/briefs/config"
	"github.com/sitovia/briefs/database"
	"github.com/sitovia/briefs/httpx"
	"github.com/sitovia/briefs/importer"
	"github.com/sitovia/briefs/log"
	"github.com/sitovia/briefs/metrics"
	"github.com/sitovia/briefs/render"
	"github.com/sitovia/briefs/routes"
	"github.com/sitovia/briefs/store"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	if cfg.AdminUser != "" {
		if err = database.EnsureAdmin(ctx, db, cfg.AdminUser, cfg.AdminPassword); err != nil {
			log.Fatal("main.db.admin:", err)
		}
		log.Infof("admin user %q ready", cfg.AdminUser)
	}

	var blobs store.BlobStore = store.NewSQLBlobStore(db)
	if cfg.RedisURL != "" {
		redisBlobs, err := store.NewRedisBlobStore(ctx, cfg.RedisURL, "briefs:")
		if err != nil {
			log.Fatal("main.redis:", err)
		}
		defer redisBlobs.Close()
		blobs = redisBlobs
		log.Info("storing drafts and forms in Redis")
	}

	renderer, err := render.New()
	if err != nil {
		log.Fatal("main.render:", err)
	}

	m := metrics.New()
	source := importer.NewGoogleForms(&http.Client{Timeout: cfg.ImportTimeout}, cfg.Relays)

	app := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
		Forms:        store.NewForms(blobs),
		Drafts:       store.NewDrafts(blobs),
		Submissions:  store.NewSQLSubmissionLog(db),
		Importer:     importer.New(source, m),
		Renderer:     renderer,
		Metrics:      m,
	}

	handler := routes.Wire(app)

	err = runServer(ctx, cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30*time.Second + cfg.SubmitDelay,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("main.shutdown: %s", err)
		}
	}()

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
