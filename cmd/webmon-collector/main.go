// cmd/webmon-collector/main.go
//
// webmon-collector is the development collector: it terminates the
// SDK's wire protocol (POST /collect with Bearer auth and optional
// gzip, plus the ?apiKey= beacon variant), validates every event, and
// exposes counters at /metrics. It stores nothing; pair it with the
// headless agent to watch a full pipeline locally.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("WEBMON")
	v.AutomaticEnv()
	v.SetDefault("addr", ":8787")
	v.SetDefault("api_key", "dev-key")
	v.SetDefault("max_body_bytes", int64(1<<20))
	v.SetDefault("debug", false)

	var w io.Writer = os.Stderr
	level := zerolog.InfoLevel
	if v.GetBool("debug") {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}
	log := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", "webmon-collector").
		Logger()

	h := &handler{
		apiKey:  v.GetString("api_key"),
		maxBody: v.GetInt64("max_body_bytes"),
		log:     log,
		metrics: &collectorMetrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/collect", h.handleCollect)
	mux.HandleFunc("/metrics", h.handleMetrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         v.GetString("addr"),
		Handler:      mux,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("collector listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server terminated")
	}
	log.Info().Msg("shutdown complete")
}
