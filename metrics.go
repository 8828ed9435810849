package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics. These mirror the in-process counters so the server
// can be scraped; the authoritative values for Stats() stay on the Router
// and registries.
var (
	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_connections_total",
		Help: "Total number of accepted TCP connections",
	})

	clientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatd_clients_active",
		Help: "Current number of registered clients",
	})

	channelsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatd_channels_active",
		Help: "Current number of channels",
	})

	messagesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_messages_processed_total",
		Help: "Total number of inbound lines handled by the router",
	})

	commandsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_commands_processed_total",
		Help: "Total number of slash-commands handled",
	})

	messagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_messages_sent_total",
		Help: "Total number of messages sent to clients",
	})

	bytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_bytes_received_total",
		Help: "Total number of payload bytes received from clients",
	})

	bytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_bytes_sent_total",
		Help: "Total number of payload bytes sent to clients",
	})

	poolQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatd_pool_queue_depth",
		Help: "Current number of tasks waiting in the worker pool queue",
	})

	poolActiveTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatd_pool_active_tasks",
		Help: "Current number of tasks executing in the worker pool",
	})

	slowClientsDisconnected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_slow_clients_disconnected_total",
		Help: "Total number of clients disconnected for not draining their socket",
	})
)

func init() {
	prometheus.MustRegister(connectionsTotal)
	prometheus.MustRegister(clientsActive)
	prometheus.MustRegister(channelsActive)

	prometheus.MustRegister(messagesProcessed)
	prometheus.MustRegister(commandsProcessed)
	prometheus.MustRegister(messagesSent)
	prometheus.MustRegister(bytesReceived)
	prometheus.MustRegister(bytesSent)

	prometheus.MustRegister(poolQueueDepth)
	prometheus.MustRegister(poolActiveTasks)
	prometheus.MustRegister(slowClientsDisconnected)
}

// startMetrics serves /metrics on the configured port, if one is set.
func (s *Server) startMetrics() {
	if s.config.MetricsPort == 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.ListenHost, s.config.MetricsPort),
		Handler: mux,
	}

	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
}

// stopMetrics tears down the metrics listener, if any.
func (s *Server) stopMetrics() {
	if s.metricsServer != nil {
		_ = s.metricsServer.Close()
	}
}
