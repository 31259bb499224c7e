package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/app"
	"github.com/crewdesk/meetlive/internal/attendance"
	"github.com/crewdesk/meetlive/internal/auth"
	"github.com/crewdesk/meetlive/internal/config"
	"github.com/crewdesk/meetlive/internal/httpapi"
	"github.com/crewdesk/meetlive/internal/ratelimit"
	"github.com/crewdesk/meetlive/internal/room"
	sigws "github.com/crewdesk/meetlive/internal/signal"
	"github.com/crewdesk/meetlive/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.TokenSecret == "" {
		log.Fatal().Msg("token_secret must be set")
	}

	st, err := store.OpenSQLite(cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Str("dsn", cfg.StoreDSN).Msg("failed to open store")
	}
	defer st.Close()

	reg := room.NewRegistry()
	signalLimiter := ratelimit.NewLimiter(cfg.SignalLimit, cfg.SignalWindow)
	connLimiter := ratelimit.NewLimiter(cfg.ConnectLimit, cfg.ConnectWindow)
	acc := attendance.NewAccountant(st)
	orch := app.NewOrchestrator(st, reg, signalLimiter, acc)
	verifier := auth.NewVerifier(cfg.TokenSecret)
	ctl := sigws.NewController(cfg, verifier, orch, connLimiter)

	r := httpapi.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("MeetLive signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
