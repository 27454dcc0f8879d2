package notify

import (
	"log/slog"
	"sync"
	"time"

	"stitch/internal/logging"
)

// subscriberBuffer bounds the per-subscriber channel. A consumer that falls
// behind loses its oldest events rather than stalling publishers.
const subscriberBuffer = 64

// Hub routes job events to the subscribers of their session.
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]map[*Subscription]struct{}
	groups      map[groupKey]*groupState
	closed      bool
}

type groupKey struct {
	sessionID string
	groupID   string
}

type groupState struct {
	seq         uint64
	lastPercent float64
	terminal    bool
}

// Subscription is one consumer's view of a session event stream.
type Subscription struct {
	hub       *Hub
	sessionID string
	ch        chan Event
	once      sync.Once
}

// Events returns the receive channel. It is closed when the subscription or
// the hub shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.once.Do(func() {
		close(s.ch)
	})
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		logger:      logging.NewComponentLogger(logger, "notify"),
		subscribers: make(map[string]map[*Subscription]struct{}),
		groups:      make(map[groupKey]*groupState),
	}
}

// Subscribe attaches a consumer to a session stream. No events emitted
// before the call are replayed.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		hub:       h,
		sessionID: sessionID,
		ch:        make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() {
			close(sub.ch)
		})
		return sub
	}
	set := h.subscribers[sessionID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subscribers[sessionID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subscribers[sub.sessionID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, sub.sessionID)
	}
}

// Close shuts the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var subs []*Subscription
	for _, set := range h.subscribers {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.subscribers = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() {
			close(sub.ch)
		})
	}
}

// Progress emits a job-progress event. Events that would move a group's
// percent backwards, or that arrive after the group finished, are dropped.
func (h *Hub) Progress(sessionID, groupID string, jobID int64, stage string, percent float64, message string) {
	h.publish(Event{
		Type:      EventJobProgress,
		SessionID: sessionID,
		GroupID:   groupID,
		JobID:     jobID,
		Stage:     stage,
		Percent:   percent,
		Message:   message,
	})
}

// Completed emits the terminal job-complete event for a group.
func (h *Hub) Completed(sessionID, groupID string, jobID int64, output string) {
	h.publish(Event{
		Type:      EventJobComplete,
		SessionID: sessionID,
		GroupID:   groupID,
		JobID:     jobID,
		Percent:   100,
		Output:    output,
	})
}

// Failed emits the terminal job-error event for a group.
func (h *Hub) Failed(sessionID, groupID string, jobID int64, kind, message string) {
	h.publish(Event{
		Type:      EventJobError,
		SessionID: sessionID,
		GroupID:   groupID,
		JobID:     jobID,
		ErrorKind: kind,
		Message:   message,
	})
}

func (h *Hub) publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	key := groupKey{sessionID: event.SessionID, groupID: event.GroupID}
	state := h.groups[key]
	if state == nil {
		state = &groupState{}
		h.groups[key] = state
	}
	if state.terminal {
		return
	}
	switch event.Type {
	case EventJobProgress:
		if event.Percent < state.lastPercent {
			return
		}
		state.lastPercent = event.Percent
	case EventJobComplete:
		state.lastPercent = 100
		state.terminal = true
	case EventJobError:
		state.terminal = true
	}

	state.seq++
	event.Seq = state.seq
	event.Timestamp = time.Now().UTC()

	for sub := range h.subscribers[event.SessionID] {
		h.send(sub, event)
	}
}

// send delivers without blocking. When the subscriber buffer is full the
// oldest pending event is evicted first so FIFO order is preserved.
func (h *Hub) send(sub *Subscription, event Event) {
	for {
		select {
		case sub.ch <- event:
			return
		default:
		}
		select {
		case dropped := <-sub.ch:
			h.logger.Debug("dropped event for slow subscriber",
				logging.String(logging.FieldSessionID, dropped.SessionID),
				logging.String(logging.FieldGroupID, dropped.GroupID),
				logging.String(logging.FieldEventType, string(dropped.Type)))
		default:
		}
	}
}

// ResetGroup clears ordering state for a group so a retried job can emit a
// fresh event series.
func (h *Hub) ResetGroup(sessionID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, groupKey{sessionID: sessionID, groupID: groupID})
}

var _ Publisher = (*Hub)(nil)
