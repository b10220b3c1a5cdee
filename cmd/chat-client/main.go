package main

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gochat/client"
	"gochat/client/session"
	"gochat/client/transport"
	"gochat/client/ui"
	"gochat/config"
	"gochat/logging"
)

var rootCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "Terminal chat client",
	RunE:  runClient,
}

var (
	flagServer   string
	flagLogFile  string
	flagLogLevel string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", "", "chat server base URL (overrides CHAT_SERVER_URL)")
	flags.StringVar(&flagLogFile, "log-file", "", "write logs to a file instead of discarding them")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat-client command")
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, Output: out}); err != nil {
		return err
	}

	wsURL, err := transport.WebsocketURL(cfg.ServerURL)
	if err != nil {
		return err
	}

	tr := transport.NewClient(wsURL, transport.Options{})
	defer tr.Close()

	sess := session.New(cfg.ServerURL, cfg.HTTPTimeout)

	app := ui.NewApp()
	ctrl := client.New(tr, sess, app)
	app.SetController(ctrl)
	ctrl.Bind(tr)

	go func() {
		if err := tr.Connect(); err != nil {
			log.Warn().Err(err).Msg("initial connect failed, retrying")
		}
	}()

	return app.Run()
}
