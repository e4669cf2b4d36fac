// Command server runs the room relay: it accepts logins, maintains the
// roster, and fans MESSAGE frames out unchanged between clients.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"roomrelay/internal/acceptor"
	"roomrelay/internal/config"
	"roomrelay/internal/metrics"
	"roomrelay/internal/roster"
	"roomrelay/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to an INI config file (optional; built-in defaults are used otherwise)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			logrus.Fatalf("[Server] failed to load config: %v", err)
		}
		cfg = loaded
	}

	rost := roster.New()
	var metricsCollector *metrics.Collector
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(rost)
		registry := prometheus.NewRegistry()
		registry.MustRegister(metricsCollector)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			logrus.Infof("[Metrics] listening on %s", cfg.Metrics.ListenAddress)
			if err := http.ListenAndServe(cfg.Metrics.ListenAddress, mux); err != nil {
				logrus.WithError(err).Error("[Metrics] HTTP server stopped")
			}
		}()
	}

	acc := acceptor.New(rost, metricsCollector)
	srv := server.New(cfg.Address(), acc)

	go func() {
		if err := srv.Start(); err != nil {
			logrus.Fatalf("[Server] failed to start: %v", err)
		}
	}()

	fmt.Printf("[Server] listening on %s\n", cfg.Address())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	fmt.Println("\n[Server] shutting down...")
	srv.Stop()
}
