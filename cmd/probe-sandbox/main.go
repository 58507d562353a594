// probe-sandbox drives the request queue against a live grid world in the terminal
//
// Keys: arrows move the player, space casts a ray synchronously, s queues an area scan,
// a adds an agent, r resets stats, q or Esc quits
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lixenwraith/castqueue/config"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	agents := flag.Int("agents", 24, "initial flock size")
	debug := flag.Bool("debug", false, "write logs to file")
	sound := flag.Bool("sound", false, "play a tone when the player's ray hits")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "world seed")
	flag.Parse()

	if err := run(*configPath, *agents, *debug, *sound, *metricsAddr, *seed); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, agents int, debug, sound bool, metricsAddr string, seed uint64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger, logFile := setupLogging(debug, cfg.Log.File, level)
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sb, err := newSandbox(ctx, cfg, logger, seed)
	if err != nil {
		return err
	}
	defer sb.close()

	if sound {
		if err := sb.initAudio(); err != nil {
			logger.Warn().Err(err).Msg("audio unavailable")
		}
	}
	for i := 0; i < agents; i++ {
		sb.addAgent()
	}

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, logger, sb.collectors()...)
		defer srv.Shutdown(context.Background())
	}

	sb.loop()
	return nil
}

func serveMetrics(addr string, logger zerolog.Logger, collectors ...prometheus.Collector) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
