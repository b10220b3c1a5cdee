package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gochat/config"
	"gochat/logging"
	"gochat/server"
)

var rootCmd = &cobra.Command{
	Use:   "chat-server",
	Short: "Real-time chat server",
	RunE:  runServer,
}

var (
	flagAddr     string
	flagLogLevel string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAddr, "addr", "", "listen address, host:port (overrides CHAT_HOST/CHAT_PORT)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides CHAT_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat-server command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, Console: true}); err != nil {
		return err
	}

	addr := cfg.Addr()
	if flagAddr != "" {
		addr = flagAddr
	}

	srv := server.New(server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		PingInterval:   cfg.PingInterval,
		PingTimeout:    cfg.PingTimeout,
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("chat server listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
