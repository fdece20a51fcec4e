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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/rpampin-cresteo/chatbot-widget/internal/config"
	"github.com/rpampin-cresteo/chatbot-widget/internal/feedback"
	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
	"github.com/rpampin-cresteo/chatbot-widget/internal/memory"
	"github.com/rpampin-cresteo/chatbot-widget/internal/observability"
	"github.com/rpampin-cresteo/chatbot-widget/internal/ratelimit"
	serverHTTP "github.com/rpampin-cresteo/chatbot-widget/internal/server/http"
	"github.com/rpampin-cresteo/chatbot-widget/internal/session"
	"github.com/rpampin-cresteo/chatbot-widget/internal/upstream"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "widget-proxy",
		Short: "Edge proxy between the chat widget and the upstream chat service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	rootCmd.PersistentFlags().String("port", "", "listen port (overrides PORT)")
	rootCmd.PersistentFlags().String("chat-api-url", "", "upstream chat service URL (overrides CHAT_API_URL)")
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("chat-api-url", rootCmd.PersistentFlags().Lookup("chat-api-url"))

	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("widget-proxy dev")
		},
	}
}

func runServe() error {
	logger := logging.NewComponentLogger("Main")

	cfg, err := config.Load(config.DefaultEnvLookup)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if v := viper.GetString("port"); v != "" {
		cfg.Port = v
	}
	if v := viper.GetString("chat-api-url"); v != "" {
		cfg.ChatAPIURL = v
	}

	logger.Info("=== Widget Proxy Configuration ===")
	logger.Info("Environment: %s", cfg.Environment)
	logger.Info("Port: %s", cfg.Port)
	logger.Info("Chat API URL: %s", cfg.ChatAPIURL)
	logger.Info("Allowed origins: %d configured", len(cfg.AllowedOrigins))
	logger.Info("Rate limit: %d requests / %s", cfg.RateLimitCeiling, cfg.RateLimitWindow)
	logger.Info("Server memory: %t", cfg.ServerMemoryEnabled)
	logger.Info("==================================")

	metrics := observability.NewMetrics()
	sessions := session.NewManager(
		cfg.SessionCookieName,
		cfg.SessionSecret,
		cfg.SessionMaxAge,
		cfg.IsProduction(),
		logging.NewComponentLogger("Session"),
	)
	gateway := memory.NewGateway(memory.RedisConfig{
		Enabled: cfg.ServerMemoryEnabled,
		URL:     cfg.RedisURL,
		Token:   cfg.RedisToken,
	}, logging.NewComponentLogger("Memory"))

	router := serverHTTP.NewRouter(serverHTTP.RouterDeps{
		Config:     cfg,
		Sessions:   sessions,
		Limiter:    ratelimit.New(ratelimit.Config{Window: cfg.RateLimitWindow, Ceiling: cfg.RateLimitCeiling}),
		Dispatcher: upstream.NewDispatcher(cfg.ChatAPIURL, logging.NewComponentLogger("Upstream")),
		Gateway:    gateway,
		Feedback:   feedback.NewStore(4096, 24*time.Hour),
		Metrics:    metrics,
		Logger:     logging.NewComponentLogger("HTTP"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses have no fixed bound
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
