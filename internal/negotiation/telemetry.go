package negotiation

import (
	"log/slog"

	"github.com/irdkwmnsb/webrtc-ingest/internal/metrics"
)

type StateKind string

const (
	StateKindICEGathering  = StateKind("ice_gathering")
	StateKindICEConnection = StateKind("ice_connection")
	StateKindConnection    = StateKind("connection")
	StateKindTrack         = StateKind("track")
	StateKindTrackFinished = StateKind("track_finished")
)

const telemetryBufferCapacity = 256

// StateEvent is a peer connection observation. Events only feed logging and
// metrics; negotiation never waits on them.
type StateEvent struct {
	SessionID string
	Kind      StateKind
	State     string
}

// StateObserver receives every StateEvent on the telemetry goroutine.
type StateObserver func(StateEvent)

type telemetry struct {
	events    chan StateEvent
	done      chan struct{}
	finished  chan struct{}
	observers []StateObserver
}

func newTelemetry(observers []StateObserver) *telemetry {
	t := &telemetry{
		events:    make(chan StateEvent, telemetryBufferCapacity),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		observers: observers,
	}
	go t.run()
	return t
}

// publish never blocks; events are dropped when the buffer is full.
func (t *telemetry) publish(ev StateEvent) {
	select {
	case t.events <- ev:
	default:
		slog.Debug("telemetry buffer full, event dropped", "sessionID", ev.SessionID, "kind", ev.Kind)
	}
}

func (t *telemetry) run() {
	defer close(t.finished)
	for {
		select {
		case ev := <-t.events:
			t.handle(ev)
		case <-t.done:
			for {
				select {
				case ev := <-t.events:
					t.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (t *telemetry) handle(ev StateEvent) {
	slog.Info("peer connection state changed", "sessionID", ev.SessionID, "kind", ev.Kind, "state", ev.State)
	metrics.PeerConnectionStateChanges.WithLabelValues(string(ev.Kind), ev.State).Inc()
	for _, observe := range t.observers {
		observe(ev)
	}
}

func (t *telemetry) stop() {
	close(t.done)
	<-t.finished
}
