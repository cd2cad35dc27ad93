package transport

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the session connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned by Send when there is no live connection.
// Nothing is queued for later delivery; the caller re-sends if desired.
var ErrNotConnected = errors.New("transport: not connected")

// Handler receives dispatched inbound messages.
type Handler func(Message)

// DefaultReconnectDelay separates automatic reconnect attempts.
const DefaultReconnectDelay = 2 * time.Second

// DefaultMaxReconnects bounds automatic reconnect attempts per Connect.
const DefaultMaxReconnects = 5

// Session wraps the bidirectional message channel with typed
// send/receive helpers, a bounded reconnect policy and per-type event
// dispatch. On abnormal closure a reconnect is scheduled after a fixed
// delay while the attempt budget lasts; exhausting it surfaces a
// terminal "disconnected" event and the session stays down until an
// explicit new Connect. Disconnect zeroes the budget first, so a
// deliberate teardown never auto-reconnects.
type Session struct {
	url            string
	token          string
	reconnectDelay time.Duration
	maxReconnects  int

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempts int
	budget   int
	timer    *time.Timer

	writeMu sync.Mutex

	hmu      sync.RWMutex
	handlers map[string][]Handler
}

// NewSession creates a session for the given websocket URL and auth
// token with the default reconnect policy.
func NewSession(url, token string) *Session {
	return &Session{
		url:            url,
		token:          token,
		reconnectDelay: DefaultReconnectDelay,
		maxReconnects:  DefaultMaxReconnects,
		handlers:       map[string][]Handler{},
	}
}

// WithReconnect overrides the reconnect policy.
func (s *Session) WithReconnect(maxAttempts int, delay time.Duration) *Session {
	s.maxReconnects = maxAttempts
	if delay > 0 {
		s.reconnectDelay = delay
	}
	return s
}

// On registers a handler for one message type. Many handlers may be
// registered per type; all are invoked in registration order.
func (s *Session) On(msgType string, h Handler) {
	s.hmu.Lock()
	s.handlers[msgType] = append(s.handlers[msgType], h)
	s.hmu.Unlock()
}

// OnAny registers a catch-all handler invoked for every message after
// the typed handlers.
func (s *Session) OnAny(h Handler) { s.On(TypeAny, h) }

// State reports the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts reports reconnect attempts consumed since the last explicit
// Connect.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Connect establishes the channel and authenticates. It resets the
// reconnect budget; a session that exhausted its attempts stays
// disconnected until this is called again.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.attempts = 0
	s.budget = s.maxReconnects
	s.mu.Unlock()
	return s.dial()
}

// Disconnect deliberately tears the session down. The reconnect budget
// is zeroed before closing so the reader never schedules a reconnect.
// Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.budget = 0
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	wasUp := s.state != StateDisconnected
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasUp {
		s.emit(Message{Type: TypeDisconnected})
	}
}

// dial performs one connection attempt: websocket dial, auth message,
// reader startup.
func (s *Session) dial() error {
	s.mu.Lock()
	s.state = StateConnecting
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("transport: dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()
	s.emit(Message{Type: TypeConnected})

	s.writeMu.Lock()
	err = conn.WriteJSON(Outbound{Type: TypeAuth, Token: s.token})
	s.writeMu.Unlock()
	if err != nil {
		// The reader is not running yet, so this is the caller's error
		// to handle; Connect surfaces it and reconnect owns the retry
		// scheduling. Going through onLoss here would schedule a second
		// timer for the same loss.
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("transport: auth send: %w", err)
	}
	s.mu.Lock()
	if s.conn == conn {
		s.state = StateAuthenticated
	}
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// readLoop decodes inbound messages and dispatches them until the
// connection drops.
func (s *Session) readLoop(conn *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("transport: recovered in readLoop: %v", r)
		}
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.onLoss(conn, err)
			return
		}
		m, perr := parseMessage(data)
		if perr != nil {
			log.Printf("transport: undecodable message dropped: %v", perr)
			continue
		}
		s.dispatch(m)
	}
}

// onLoss handles abnormal closure of conn: schedule a reconnect while
// the budget lasts, otherwise go terminally disconnected.
func (s *Session) onLoss(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		// Stale reader: a Disconnect or newer connection superseded us.
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = nil
	s.state = StateDisconnected
	retry := s.attempts < s.budget
	if retry {
		s.attempts++
		s.timer = time.AfterFunc(s.reconnectDelay, s.reconnect)
	}
	attempt, budget := s.attempts, s.budget
	s.mu.Unlock()

	_ = conn.Close()
	s.emit(Message{Type: TypeError, Error: cause.Error()})
	if retry {
		log.Printf("transport: connection lost (%v), reconnect %d/%d in %v", cause, attempt, budget, s.reconnectDelay)
	} else {
		log.Printf("transport: connection lost (%v), attempts exhausted", cause)
		s.emit(Message{Type: TypeDisconnected})
	}
}

// reconnect runs on the timer; a failed dial consumes further budget.
func (s *Session) reconnect() {
	s.mu.Lock()
	if s.budget == 0 || s.conn != nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	if err := s.dial(); err != nil {
		s.mu.Lock()
		retry := s.attempts < s.budget
		if retry {
			s.attempts++
			s.timer = time.AfterFunc(s.reconnectDelay, s.reconnect)
		}
		s.mu.Unlock()
		if !retry {
			s.emit(Message{Type: TypeDisconnected})
		}
	}
}

// Send transmits one outbound envelope. It fails fast when there is no
// live connection.
func (s *Session) Send(out Outbound) error {
	s.mu.Lock()
	conn := s.conn
	ok := conn != nil && s.state >= StateConnected
	s.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(out)
}

// SendText sends a plain text message for the active chat/character.
func (s *Session) SendText(message, chatID, characterID string) error {
	return s.Send(Outbound{Type: TypeText, Message: message, ChatID: chatID, CharacterID: characterID})
}

// SendAudio sends one encoded utterance.
func (s *Session) SendAudio(data, format string, sampleRate int, chatID, characterID string) error {
	return s.Send(Outbound{
		Type: TypeAudio, Data: data, Format: format, SampleRate: sampleRate,
		ChatID: chatID, CharacterID: characterID,
	})
}

// SendCharacterSwitch swaps the active character.
func (s *Session) SendCharacterSwitch(cs CharacterSwitch) error {
	return s.Send(Outbound{
		Type: TypeCharacterSwitch, CharacterID: cs.CharacterID, SystemPrompt: cs.SystemPrompt,
		VoiceModel: cs.VoiceModel, RVCModelPath: cs.RVCModelPath, RVCIndexPath: cs.RVCIndexPath,
	})
}

// SendCallStart announces call mode for the given chat/character.
func (s *Session) SendCallStart(chatID, characterID string) error {
	return s.Send(Outbound{Type: TypeCallStart, ChatID: chatID, CharacterID: characterID})
}

// SendCallEnd leaves call mode.
func (s *Session) SendCallEnd(chatID, characterID string) error {
	return s.Send(Outbound{Type: TypeCallEnd, ChatID: chatID, CharacterID: characterID})
}

// SendStopPlayback asks the server to stop streaming response audio
// (barge-in).
func (s *Session) SendStopPlayback(chatID, characterID string) error {
	return s.Send(Outbound{Type: TypeStopPlayback, ChatID: chatID, CharacterID: characterID})
}

// dispatch fans one message out to its typed handlers, then to the
// catch-all handlers.
func (s *Session) dispatch(m Message) {
	s.hmu.RLock()
	typed := append([]Handler(nil), s.handlers[m.Type]...)
	catchAll := append([]Handler(nil), s.handlers[TypeAny]...)
	s.hmu.RUnlock()
	for _, h := range typed {
		h(m)
	}
	for _, h := range catchAll {
		h(m)
	}
}

// emit dispatches a locally synthesized lifecycle event.
func (s *Session) emit(m Message) { s.dispatch(m) }
