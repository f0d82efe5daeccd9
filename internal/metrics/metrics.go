// Package metrics exposes Prometheus instruments for matchmaking and rooms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "naijaplay_connections_open",
			Help: "Current number of connected peers",
		},
	)

	queueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "naijaplay_queue_length",
			Help: "Entries waiting per game type, summed over stakes",
		},
		[]string{"game_type"},
	)

	matchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naijaplay_matches_total",
			Help: "Pairs formed by the matchmaking queue",
		},
		[]string{"game_type"},
	)

	queueTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naijaplay_queue_timeouts_total",
			Help: "Queue entries removed after reaching the wait ceiling",
		},
		[]string{"game_type"},
	)

	roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "naijaplay_rooms_active",
			Help: "Rooms that are not finished",
		},
	)

	roomOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naijaplay_room_operations_total",
			Help: "Room lifecycle operations by outcome",
		},
		[]string{"operation", "status"},
	)

	droppedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "naijaplay_outbound_dropped_total",
			Help: "Outbound messages dropped because a connection buffer was full",
		},
	)
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetConnections(n int) {
	connectionsOpen.Set(float64(n))
}

// SetQueueLength reports the waiting entries for a game type. Stakes are
// client-chosen so they stay out of the label set.
func SetQueueLength(gameType string, n int) {
	queueLength.WithLabelValues(gameType).Set(float64(n))
}

func IncMatches(gameType string) {
	matchesTotal.WithLabelValues(gameType).Inc()
}

func IncQueueTimeouts(gameType string) {
	queueTimeouts.WithLabelValues(gameType).Inc()
}

func SetRoomsActive(n int) {
	roomsActive.Set(float64(n))
}

// TrackRoomOperation counts a room operation; status is "ok" or a short error class.
func TrackRoomOperation(operation, status string) {
	roomOperations.WithLabelValues(operation, status).Inc()
}

func IncDropped() {
	droppedMessages.Inc()
}
