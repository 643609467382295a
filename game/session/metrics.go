package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/protocol"
)

// Metrics holds the room counters. A nil *Metrics records nothing.
type Metrics struct {
	RoomsActive       prometheus.Gauge
	ConnectionsActive prometheus.Gauge
	Messages          *prometheus.CounterVec
	Advisories        *prometheus.CounterVec
	WordsAdded        prometheus.Counter
	GamesCompleted    prometheus.Counter
	TurnTimeouts      prometheus.Counter
	PersistErrors     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cheesepants_rooms_active",
			Help: "Rooms with a running actor.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cheesepants_connections_active",
			Help: "Open player connections.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cheesepants_messages_total",
			Help: "Inbound messages processed, by type.",
		}, []string{"type"}),
		Advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cheesepants_advisories_total",
			Help: "Rejected actions, by reason.",
		}, []string{"type"}),
		WordsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cheesepants_words_added_total",
			Help: "Words appended to sentences.",
		}),
		GamesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cheesepants_games_completed_total",
			Help: "Games that reached the complete phase.",
		}),
		TurnTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cheesepants_turn_timeouts_total",
			Help: "Turns skipped because the time limit ran out.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cheesepants_persist_errors_total",
			Help: "Failed writes of a game record.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RoomsActive, m.ConnectionsActive, m.Messages, m.Advisories,
			m.WordsAdded, m.GamesCompleted, m.TurnTimeouts, m.PersistErrors,
		)
	}
	return m
}

var advisoryLabels = map[error]string{
	engine.ErrGameNotStarted:      "game_not_started",
	engine.ErrGameComplete:        "game_complete",
	engine.ErrAlreadyStarted:      "already_started",
	engine.ErrNotAdmin:            "not_admin",
	engine.ErrNotYourTurn:         "not_your_turn",
	engine.ErrNoPlayers:           "no_players",
	engine.ErrWordIndexOutOfRange: "word_index_out_of_range",
	engine.ErrPlayerNotFound:      "player_not_found",
	engine.ErrNotMember:           "not_member",
	engine.ErrEmptyWord:           "empty_word",
	engine.ErrNameRequired:        "name_required",
}

func advisoryLabel(err error) string {
	for target, label := range advisoryLabels {
		if errors.Is(err, target) {
			return label
		}
	}
	return "other"
}

func (m *Metrics) message(t protocol.Type) {
	if m != nil {
		m.Messages.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) advisory(err error) {
	if m != nil {
		m.Advisories.WithLabelValues(advisoryLabel(err)).Inc()
	}
}

func (m *Metrics) wordAdded(completed bool) {
	if m == nil {
		return
	}
	m.WordsAdded.Inc()
	if completed {
		m.GamesCompleted.Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.TurnTimeouts.Inc()
	}
}

func (m *Metrics) persistError() {
	if m != nil {
		m.PersistErrors.Inc()
	}
}

func (m *Metrics) roomStarted() {
	if m != nil {
		m.RoomsActive.Inc()
	}
}

func (m *Metrics) roomStopped() {
	if m != nil {
		m.RoomsActive.Dec()
	}
}

// ConnectionOpened and ConnectionClosed are called by the transport
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.ConnectionsActive.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.ConnectionsActive.Dec()
	}
}
