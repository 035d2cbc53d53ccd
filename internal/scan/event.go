package scan

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventSessionStarted     EventKind = "session_started"
	EventResolved           EventKind = "resolved"
	EventDuplicate          EventKind = "duplicate"
	EventUnknown            EventKind = "unknown"
	EventLookupFailed       EventKind = "lookup_failed"
	EventCaptureUnavailable EventKind = "capture_unavailable"
	EventSessionEnded       EventKind = "session_ended"
)

// 終了理由
const (
	ReasonStopped          = "stopped"
	ReasonFrameAcquisition = "frame_acquisition_failure"
)

// Resolution: 照合成功時に操作者へ表示する内容
type Resolution struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	MembershipType string `json:"membership_type"`
}

type Event struct {
	Kind       EventKind   `json:"kind"`
	SessionID  string      `json:"session_id"`
	Identifier string      `json:"identifier,omitempty"`
	Member     *Resolution `json:"member,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Error      string      `json:"error,omitempty"`
	At         time.Time   `json:"at"`
}

// Notifier: セッションからの通知先
type Notifier interface {
	Notify(ev Event)
}

// Hub: 購読者へイベントを配る。遅い購読者の分は捨ててループを止めない
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Subscribe(buf int) (<-chan Event, func()) {
	ch := make(chan Event, buf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Notify(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
