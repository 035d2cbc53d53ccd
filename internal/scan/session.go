// Package scan はカメラ映像から QR コードを読み取り、会員と照合して出席を記録するセッションを扱う。
package scan

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"attendance-checker/internal/attendance"
	"attendance-checker/internal/members"
	"attendance-checker/internal/platform/metrics"
)

var (
	ErrCaptureUnavailable = errors.New("capture source unavailable")
	ErrFrameAcquisition   = errors.New("frame acquisition failed")
	ErrDuplicateScan      = errors.New("identifier already scanned in this session")
	ErrUnknownIdentifier  = errors.New("identifier not registered")
	ErrAlreadyRunning     = errors.New("scan session already running")
)

type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting" // キャプチャ元を開いている途中
	StateRunning  State = "running"
)

// ===== インターフェース群 =====

type Decoder interface {
	Decode(frame image.Image) ([]string, error)
}

// Registry: 識別子で会員を引く。見つからなければ (nil, nil)
type Registry interface {
	FindByName(ctx context.Context, name string) (*members.Member, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ===== Session本体 =====

type Status struct {
	State     State  `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Scanned   int    `json:"scanned"`
}

// Session: Idle ⇄ Running の2状態。キャプチャループは専用 goroutine で回し、
// cancel と done を握っておくことで Stop がカメラ解放まで待てる。
type Session struct {
	camera   Camera
	decoder  Decoder
	registry Registry
	ledger   *attendance.Ledger
	notifier Notifier
	metrics  *metrics.Scan
	clock    Clock
	ids      IDGen

	mu     sync.Mutex
	state  State
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Session)

func WithMetrics(m *metrics.Scan) Option { return func(s *Session) { s.metrics = m } }
func WithClock(c Clock) Option           { return func(s *Session) { s.clock = c } }
func WithIDGen(g IDGen) Option           { return func(s *Session) { s.ids = g } }

func NewSession(camera Camera, decoder Decoder, registry Registry, ledger *attendance.Ledger, notifier Notifier, opts ...Option) *Session {
	s := &Session{
		camera:   camera,
		decoder:  decoder,
		registry: registry,
		ledger:   ledger,
		notifier: notifier,
		clock:    realClock{},
		ids:      ulidGen{},
		state:    StateIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start: キャプチャ元を開いてループを起動する。呼び出し元はブロックしない。
// ctx はキャンセルを引き継がない（リクエスト終了でセッションは止まらない）。
// Open の間は Starting 状態でロックを離すので、Status や Stop は待たされない。
func (s *Session) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		id := s.id
		s.mu.Unlock()
		return id, ErrAlreadyRunning
	}
	id, err := s.ids.New()
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("session id: %w", err)
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.state = StateStarting
	s.id = id
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	src, err := s.camera.Open(loopCtx)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.cancel = nil
		s.mu.Unlock()
		cancel()
		close(done)

		if loopCtx.Err() != nil {
			log.Printf("[INFO] scan %s: stopped while opening capture", id)
		} else {
			log.Printf("[ERROR] scan %s: open capture: %v", id, err)
		}
		s.emit(Event{Kind: EventCaptureUnavailable, SessionID: id, Error: err.Error()})
		return "", fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	// Open 中に Stop されていれば、ループは最初の確認で抜けてカメラを閉じる
	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	s.metrics.Started()

	log.Printf("[INFO] scan %s: started", id)
	s.emit(Event{Kind: EventSessionStarted, SessionID: id})
	go s.run(loopCtx, id, src, done)
	return id, nil
}

// Stop: ループ（または Open 中のキャプチャ元）に停止を伝え、カメラが解放されるまで待つ。
// Idle なら何もしない
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Done: 実行中セッションの終了通知。Idle なら閉じたチャネル
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{State: s.state}
	if s.state != StateIdle {
		st.SessionID = s.id
	}
	s.mu.Unlock()
	st.Scanned = s.ledger.Len()
	return st
}

// Reset: スキャン済み集合とログを同時に空にする
func (s *Session) Reset() {
	s.ledger.Reset()
}

func (s *Session) run(ctx context.Context, id string, src FrameSource, done chan struct{}) {
	reason := ReasonStopped
	var cause error
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("[WARN] scan %s: close capture: %v", id, err)
		}
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.state = StateIdle
		s.cancel = nil
		s.mu.Unlock()

		s.metrics.Ended(reason)
		ev := Event{Kind: EventSessionEnded, SessionID: id, Reason: reason}
		if cause != nil {
			ev.Error = cause.Error()
			log.Printf("[WARN] scan %s: ended: %v", id, cause)
		} else {
			log.Printf("[INFO] scan %s: stopped", id)
		}
		s.emit(ev)
		close(done)
	}()

	for {
		// 停止指示はフレームの合間で確認する
		if ctx.Err() != nil {
			return
		}
		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				reason = ReasonFrameAcquisition
				cause = fmt.Errorf("%w: %v", ErrFrameAcquisition, err)
			}
			return
		}
		s.metrics.Frame()
		s.processFrame(ctx, id, frame)
	}
}

func (s *Session) processFrame(ctx context.Context, sid string, frame image.Image) {
	ids, err := s.decoder.Decode(frame)
	if err != nil {
		log.Printf("[WARN] scan %s: decode: %v", sid, err)
		return
	}
	for _, code := range ids {
		s.handle(ctx, sid, code)
	}
}

// handle: 1識別子分の判定。重複 → 照合 → 記録 の順
func (s *Session) handle(ctx context.Context, sid, code string) {
	if s.ledger.Seen(code) {
		s.outcome(Event{Kind: EventDuplicate, SessionID: sid, Identifier: code, Error: ErrDuplicateScan.Error()})
		return
	}

	m, err := s.registry.FindByName(ctx, code)
	if err != nil {
		log.Printf("[ERROR] scan %s: lookup %q: %v", sid, code, err)
		s.outcome(Event{Kind: EventLookupFailed, SessionID: sid, Identifier: code, Error: err.Error()})
		return
	}
	if m == nil {
		// 未登録は集合に入れない（次のフレームでも再度通知する）
		s.outcome(Event{Kind: EventUnknown, SessionID: sid, Identifier: code, Error: ErrUnknownIdentifier.Error()})
		return
	}

	at := s.clock.Now()
	if !s.ledger.Record(code, at) {
		s.outcome(Event{Kind: EventDuplicate, SessionID: sid, Identifier: code, Error: ErrDuplicateScan.Error()})
		return
	}
	log.Printf("[INFO] scan %s: %s checked in (%s)", sid, code, m.MembershipType)
	s.outcome(Event{
		Kind:       EventResolved,
		SessionID:  sid,
		Identifier: code,
		Member: &Resolution{
			FirstName:      m.FirstName,
			LastName:       m.LastName,
			MembershipType: m.MembershipType,
		},
		At: at,
	})
}

func (s *Session) outcome(ev Event) {
	s.metrics.Outcome(string(ev.Kind))
	s.emit(ev)
}

func (s *Session) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = s.clock.Now()
	}
	if s.notifier != nil {
		s.notifier.Notify(ev)
	}
}
