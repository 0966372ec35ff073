package service

import (
	"sort"
	"sync"
	"time"

	"github.com/acbops/tracker"
)

const subscriberBuffer = 32

// Subscriber is one long-lived viewer connection registered with the
// presence service. Its channel is owned by the service and closed on
// Unsubscribe.
type Subscriber struct {
	ch chan tracker.PresenceEvent
}

// Events returns the subscriber's delivery channel. It is closed when the
// subscriber is removed.
func (s *Subscriber) Events() <-chan tracker.PresenceEvent {
	return s.ch
}

// PresenceService tracks who is editing which shipment and fans presence
// changes out to subscribers. All state is volatile: nothing survives a
// process restart, and there is no cross-process fan-out.
//
// The editor map and the subscriber set share one mutex; mutation volume is
// low enough that a single critical section beats per-record locking.
type PresenceService struct {
	mu      sync.Mutex
	editors map[string]map[string]tracker.Editor
	subs    map[*Subscriber]struct{}

	expiry     time.Duration
	sweepEvery time.Duration

	done     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

func NewPresenceService(expiry, sweepEvery time.Duration) *PresenceService {
	return &PresenceService{
		editors:    make(map[string]map[string]tracker.Editor),
		subs:       make(map[*Subscriber]struct{}),
		expiry:     expiry,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the background sweep. Stop must be called on shutdown.
func (s *PresenceService) Start() {
	go func() {
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.sweepOnce(s.now())
			}
		}
	}()
}

// Stop terminates the sweep loop. Safe to call more than once.
func (s *PresenceService) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Begin marks a user as editing a shipment. Calling it again refreshes the
// heartbeat timestamp instead of adding a second entry. Malformed signals
// are ignored.
func (s *PresenceService) Begin(shipmentID string, editor tracker.Editor) {
	if shipmentID == "" || editor.UserID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	editor.LastSeenAt = s.now()
	current, ok := s.editors[shipmentID]
	if !ok {
		current = make(map[string]tracker.Editor)
		s.editors[shipmentID] = current
	}
	current[editor.UserID] = editor

	s.broadcastLocked(tracker.PresenceEvent{
		Type:       tracker.EventPresenceUpdate,
		ShipmentID: shipmentID,
		Editors:    editorListLocked(current),
	})
}

// End removes a user's presence entry. It broadcasts even when removal
// changed nothing so viewers cannot miss an update in a begin/end race, and
// it is idempotent: ending twice, or after expiry, is not an error.
func (s *PresenceService) End(shipmentID, userID string) {
	if shipmentID == "" || userID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.editors[shipmentID]
	if current != nil {
		delete(current, userID)
		if len(current) == 0 {
			delete(s.editors, shipmentID)
		}
	}

	s.broadcastLocked(tracker.PresenceEvent{
		Type:       tracker.EventPresenceUpdate,
		ShipmentID: shipmentID,
		Editors:    editorListLocked(current),
	})
}

// Snapshot returns the full current mapping of shipment to editor list.
func (s *PresenceService) Snapshot() []tracker.RecordEditors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a new viewer connection and seeds it with a state
// event holding the current snapshot. Registration and the seed share the
// lock so no update between them can be missed.
func (s *PresenceService) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan tracker.PresenceEvent, subscriberBuffer)}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub] = struct{}{}
	sub.ch <- tracker.PresenceEvent{
		Type:  tracker.EventPresenceState,
		Items: s.snapshotLocked(),
	}
	return sub
}

// Unsubscribe removes a viewer connection and closes its channel.
func (s *PresenceService) Unsubscribe(sub *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

// sweepOnce evicts editors whose heartbeat is older than the expiry window,
// broadcasting once per shipment whose editor set changed.
func (s *PresenceService) sweepOnce(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for shipmentID, current := range s.editors {
		changed := false
		for userID, editor := range current {
			if now.Sub(editor.LastSeenAt) > s.expiry {
				delete(current, userID)
				changed = true
			}
		}
		if len(current) == 0 {
			delete(s.editors, shipmentID)
		}
		if changed {
			s.broadcastLocked(tracker.PresenceEvent{
				Type:       tracker.EventPresenceUpdate,
				ShipmentID: shipmentID,
				Editors:    editorListLocked(current),
			})
		}
	}
}

// broadcastLocked delivers an event to every subscriber, best-effort. A
// subscriber whose buffer is full is skipped; one slow connection must not
// block the rest. Callers hold s.mu.
func (s *PresenceService) broadcastLocked(event tracker.PresenceEvent) {
	for sub := range s.subs {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func (s *PresenceService) snapshotLocked() []tracker.RecordEditors {
	items := make([]tracker.RecordEditors, 0, len(s.editors))
	for shipmentID, current := range s.editors {
		items = append(items, tracker.RecordEditors{
			ShipmentID: shipmentID,
			Editors:    editorListLocked(current),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ShipmentID < items[j].ShipmentID })
	return items
}

func editorListLocked(current map[string]tracker.Editor) []tracker.Editor {
	editors := make([]tracker.Editor, 0, len(current))
	for _, editor := range current {
		editors = append(editors, editor)
	}
	sort.Slice(editors, func(i, j int) bool { return editors[i].UserID < editors[j].UserID })
	return editors
}
