package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
)

const namespace = "tictactoe"

// Metrics holds the bot's Prometheus collectors. It implements
// bot.Observer and session.Observer.
type Metrics struct {
	registry *prometheus.Registry

	events           *prometheus.CounterVec
	commands         *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	deliveryFailures prometheus.Counter
	panics           prometheus.Counter
	activeSessions   prometheus.Gauge
	gamesFinished    *prometheus.CounterVec
	gameMoves        prometheus.Histogram
}

// NewMetrics creates and registers the collectors on a private registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound chat events by filter verdict.",
		}, []string{"filter"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed commands by name and result.",
		}, []string{"command", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Commands that failed because the platform rejected a reply.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Recovered command handler panics.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Game channels currently registered.",
		}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games by outcome and opponent kind.",
		}, []string{"outcome", "opponent"}),
		gameMoves: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "game_moves",
			Help:      "Moves played in finished games.",
			Buckets:   prometheus.LinearBuckets(5, 1, 5),
		}),
	}
	m.registry.MustRegister(
		m.events,
		m.commands,
		m.commandDuration,
		m.deliveryFailures,
		m.panics,
		m.activeSessions,
		m.gamesFinished,
		m.gameMoves,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EventReceived counts an inbound event.
func (m *Metrics) EventReceived(filter string) {
	m.events.WithLabelValues(filter).Inc()
}

// CommandHandled counts a command execution.
func (m *Metrics) CommandHandled(command string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
		if chat.IsDeliveryFailure(err) {
			m.deliveryFailures.Inc()
		}
	}
	m.commands.WithLabelValues(command, result).Inc()
	m.commandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// HandlerPanicked counts a recovered panic.
func (m *Metrics) HandlerPanicked() {
	m.panics.Inc()
}

// SessionCreated implements session.Observer.
func (m *Metrics) SessionCreated(chat.Channel) {
	m.activeSessions.Inc()
}

// SessionEvicted implements session.Observer.
func (m *Metrics) SessionEvicted(chat.Channel) {
	m.activeSessions.Dec()
}

// GameFinished implements session.Observer.
func (m *Metrics) GameFinished(r session.Result) {
	outcome := "win"
	if r.Draw {
		outcome = "draw"
	}
	opponent := "human"
	if r.Profile != "" {
		opponent = "ai"
	}
	m.gamesFinished.WithLabelValues(outcome, opponent).Inc()
	m.gameMoves.Observe(float64(r.Moves))
}
