package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/pkg/config"
	errprocess "social_realtime_client/pkg/err"
	"social_realtime_client/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler receives the raw payload of one subscribed event
type Handler func(payload json.RawMessage)

// ErrNoIdentity empty session identity yields no session
var ErrNoIdentity = fmt.Errorf("transport: empty session identity")

// Session 持有唯一一條 websocket 連線
// 所有 server 推送事件由這裡進入，依收到順序逐一派發給訂閱者
type Session struct {
	wsURL  string
	header http.Header
	userID string
	dial   config.DialConfig

	mu       sync.Mutex
	conn     *websocket.Conn
	closed   bool
	handlers map[string]map[int]Handler
	nextID   int

	onDisconnect func()

	done chan struct{}
}

// NewSession create a session bound to one identity.
// identity 為空時不建立連線
func NewSession(cfg config.Client, userID, accessToken string) (*Session, error) {
	if userID == "" {
		return nil, ErrNoIdentity
	}

	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}

	return &Session{
		wsURL:    cfg.WebsocketURL + "?user_id=" + url.QueryEscape(userID),
		header:   header,
		userID:   userID,
		dial:     cfg.Dial,
		handlers: make(map[string]map[int]Handler),
		done:     make(chan struct{}),
	}, nil
}

// UserID return the session identity
func (s *Session) UserID() string {
	return s.userID
}

// SetDisconnectHandler register a hook fired whenever the connection drops.
// Presence 在這裡被清空，重連後由 snapshot 重建
func (s *Session) SetDisconnectHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// Open dial the server and start the read loop.
// 失敗時進入離線模式，不視為致命錯誤
func (s *Session) Open() error {
	conn, err := s.dialWithRetry()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// dialWithRetry 連線失敗依設定重試
// identity 在 query string 裡，每次重連都會重新註冊
func (s *Session) dialWithRetry() (*websocket.Conn, error) {
	attempts := s.dial.RetryCount
	if attempts < 1 {
		attempts = 1
	}
	interval := time.Duration(s.dial.RetryInterval) * time.Second

	var lastErr error
	for i := 0; i < attempts; i++ {
		if s.isClosed() {
			return nil, errprocess.Set("transport: session closed while dialing")
		}
		conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, s.header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.Log.Warn("websocket dial failed",
			zap.String("userID", s.userID),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		if i < attempts-1 {
			time.Sleep(interval)
		}
	}
	return nil, errprocess.Setf("transport: connect failed for %s: %v", s.userID, lastErr)
}

// readLoop 單一 goroutine 讀取並依序派發，保證事件順序
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		var event domain.WSEvent
		if err := conn.ReadJSON(&event); err != nil {
			if s.isClosed() {
				return
			}
			logger.Log.Warn("websocket read error, reconnecting",
				zap.String("userID", s.userID),
				zap.Error(err),
			)
			s.dropConnection(conn)

			next, dialErr := s.dialWithRetry()
			if dialErr != nil {
				// 離線模式：不再派發任何事件
				logger.Log.Error("websocket reconnect gave up",
					zap.String("userID", s.userID),
					zap.Error(dialErr),
				)
				return
			}

			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				next.Close()
				return
			}
			s.conn = next
			s.mu.Unlock()
			conn = next
			continue
		}

		s.dispatch(event)
	}
}

func (s *Session) dropConnection(conn *websocket.Conn) {
	conn.Close()

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	fn := s.onDisconnect
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// dispatch call subscribers in registration order
func (s *Session) dispatch(event domain.WSEvent) {
	s.mu.Lock()
	subs := s.handlers[event.Event]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ordered := make([]Handler, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, subs[id])
	}
	s.mu.Unlock()

	for _, h := range ordered {
		h(event.Payload)
	}
}

// On subscribe a handler for one event, returns the subscription id
func (s *Session) On(event domain.Event, h Handler) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[string(event)]; !ok {
		s.handlers[string(event)] = make(map[int]Handler)
	}
	s.nextID++
	s.handlers[string(event)][s.nextID] = h
	return s.nextID
}

// Off remove a subscription. 元件 teardown 時必須呼叫
func (s *Session) Off(event domain.Event, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subs, ok := s.handlers[string(event)]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(s.handlers, string(event))
		}
	}
}

// Emit send one event to the server
func (s *Session) Emit(event domain.Event, payload interface{}) error {
	wsEvent, err := domain.NewWSEvent(event, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.conn == nil {
		return errprocess.Setf("transport: emit %s without live connection", event)
	}
	return s.conn.WriteJSON(wsEvent)
}

// Connected report whether a live connection currently exists
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.closed
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tear the session down. 不可重複開啟，identity 變更時建新的 Session
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.handlers = make(map[string]map[int]Handler)
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout"))
		return conn.Close()
	}
	return nil
}

// Done closed when the session is torn down
func (s *Session) Done() <-chan struct{} {
	return s.done
}
