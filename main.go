package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-server/auth"
	"social-server/config"
	"social-server/core"
	"social-server/handlers/api/groups"
	"social-server/handlers/api/messages"
	"social-server/handlers/api/notifications"
	"social-server/handlers/api/presence"
	"social-server/handlers/api/streams"
	"social-server/handlers/websocket"
	appmw "social-server/middleware"
	"social-server/realtime"
	"social-server/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type server struct {
	store     stores.Store
	verifier  core.IdentityVerifier
	registry  *realtime.Registry
	router    *realtime.Router
	lifecycle *realtime.Lifecycle
}

func setupRouter(cfg *config.Config, s server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"status":      "ok",
			"connections": s.lifecycle.Active(),
			"online":      s.registry.Len(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(appmw.Authenticate(s.verifier))

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", messages.HandleSend(s.store, s.store, s.router))
			r.Delete("/{messageId}", messages.HandleDelete(s.store, s.store, s.router))
			r.Get("/conversation/{peerId}", messages.HandleConversation(s.store))
			r.Get("/group/{groupId}", messages.HandleGroupHistory(s.store, s.store))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", groups.HandleCreate(s.store))
			r.Get("/{groupId}", groups.HandleGet(s.store))
		})

		r.Post("/notifications", notifications.HandleCreate(s.store, s.router))
		r.Post("/streams/{streamId}/screen-share", streams.HandleScreenShare(s.router))

		r.Get("/presence", presence.HandleList(s.registry))
		r.Get("/presence/{userId}", presence.HandleGet(s.registry))
	})

	return r
}

func mintToken(cfg *config.Config) error {
	token, err := auth.NewVerifier(cfg.JWTSecret).Issue(core.UserID(cfg.MintToken), auth.DefaultTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(cfg.LogLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.MintToken != "" {
		if err := mintToken(cfg); err != nil {
			logrus.WithError(err).Fatal("Failed to mint token")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	store := stores.GetStore(cfg)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	registry := realtime.NewRegistry()

	ioo := websocket.SetupSocketIO(cfg)
	router := realtime.NewRouter(registry, websocket.NewTransport(ioo))
	lifecycle := realtime.NewLifecycle(ctx, registry, router, verifier, store, store)
	websocket.BindLifecycle(ioo, lifecycle)

	r := setupRouter(cfg, server{
		store:     store,
		verifier:  verifier,
		registry:  registry,
		router:    router,
		lifecycle: lifecycle,
	})
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", cfg.ListenAddr).Info("starting server")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down...")

	ioo.Close(nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("Closing storage")
		}
	}
}
