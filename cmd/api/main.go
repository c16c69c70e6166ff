package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lbertin/causerie/internal/config"
	"github.com/lbertin/causerie/internal/handler"
	"github.com/lbertin/causerie/internal/handler/ws"
	"github.com/lbertin/causerie/internal/service/conversation"
	routersvc "github.com/lbertin/causerie/internal/service/router"
	"github.com/lbertin/causerie/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// The stores are built once here and handed to the router by reference;
	// nothing else in the process mutates them.
	sessions := session.NewStore()
	conversations := conversation.NewStore(sessions)
	hub := ws.NewHub()
	rt := routersvc.New(sessions, conversations, hub)

	mux := handler.NewRouter(rt, hub, cfg)

	startServer(ctx, cfg, mux)
}

func startServer(ctx context.Context, cfg config.Config, mux http.Handler) {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("causerie server listening on %s", cfg.Addr())
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
