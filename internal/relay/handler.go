package relay

import (
	"encoding/json"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RelayHandler 是 websocket 連線的進入點
// 依事件名稱把 client 事件轉送給正確的對象
type RelayHandler struct {
	hub *Hub
}

// NewRelayHandler create RelayHandler
func NewRelayHandler(hub *Hub) *RelayHandler {
	return &RelayHandler{hub: hub}
}

// Hub expose the hub for the reaper loop
func (h *RelayHandler) Hub() *Hub {
	return h.hub
}

// HandleConnection register the connection and relay events until it closes
func (h *RelayHandler) HandleConnection(conn *websocket.Conn) {
	userID := conn.Query("user_id")
	if userID == "" {
		logger.Log.Warn("websocket connect without user_id")
		conn.Close()
		return
	}

	connID := h.hub.Register(userID, conn)
	logger.Log.Info("websocket connected",
		zap.String("userID", userID),
		zap.Int64("connID", connID),
	)

	// 先給新連線完整 snapshot，再廣播上線 delta
	snapshot, _ := domain.NewWSEvent(domain.EventOnlineUsers, h.hub.OnlineUsers())
	if err := h.hub.SendToUser(userID, snapshot); err != nil {
		logger.Log.Errorf("snapshot send failed", err)
	}
	online, _ := domain.NewWSEvent(domain.EventUserStatus,
		domain.UserStatusPayload{UserID: userID, IsOnline: true})
	h.hub.Broadcast(online, connID)

	defer func() {
		wentOffline := h.hub.Unregister(userID, connID)
		conn.Close()
		logger.Log.Info("websocket closed", zap.String("userID", userID))
		if wentOffline {
			offline, _ := domain.NewWSEvent(domain.EventUserStatus,
				domain.UserStatusPayload{UserID: userID, IsOnline: false})
			h.hub.Broadcast(offline, 0)
		}
	}()

	for {
		var event domain.WSEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return
			}
			logger.Log.Warn("websocket read error", zap.String("userID", userID), zap.Error(err))
			return
		}
		h.execEvent(userID, connID, event)
	}
}

// execEvent dispatch one client event
func (h *RelayHandler) execEvent(userID string, connID int64, event domain.WSEvent) {
	switch domain.Event(event.Event) {
	case domain.EventHeartbeat:
		h.hub.Heartbeat(userID)

	case domain.EventNewMessage:
		h.relayMessage(userID, connID, event.Payload)

	case domain.EventDeleteMessage:
		// 刪除只帶 message id，雙方與自己的其他分頁都要收到
		h.hub.Broadcast(domain.WSEvent{Event: event.Event, Payload: event.Payload}, connID)

	case domain.EventCallUser:
		h.relayCall(userID, event.Payload)

	case domain.EventAnswerCall:
		h.relayToRoomPeer(userID, domain.EventAnswerCall, event.Payload, false)

	case domain.EventDeclineCall:
		h.relayToRoomPeer(userID, domain.EventDeclineCall, event.Payload, true)

	default:
		logger.Log.Warn("unknown event ignored",
			zap.String("userID", userID),
			zap.String("event", event.Event),
		)
	}
}

// relayMessage forward a chat message to the receiver and the
// sender's other tabs
func (h *RelayHandler) relayMessage(userID string, connID int64, payload json.RawMessage) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Log.Error("relay message decode failed", zap.Error(err))
		return
	}

	out, err := domain.NewWSEvent(domain.EventNewMessage, msg)
	if err != nil {
		logger.Log.Errorf("relay message encode failed", err)
		return
	}
	if err := h.hub.SendToUser(msg.ReceiverID, out); err != nil {
		// 對方離線，訊息仍留在 REST 歷史裡
		logger.Log.Info("receiver offline", zap.String("receiver", msg.ReceiverID))
	}
	h.echoToSender(userID, connID, out)
}

// echoToSender deliver to the sender's other connections only
func (h *RelayHandler) echoToSender(userID string, connID int64, event domain.WSEvent) {
	h.hub.mu.RLock()
	targets := make([]*client, 0)
	for id, c := range h.hub.conns[userID] {
		if id == connID {
			continue
		}
		targets = append(targets, c)
	}
	h.hub.mu.RUnlock()

	for _, c := range targets {
		_ = c.send(event)
	}
}

// relayCall track the room and push incoming_call to the callee.
// callee 離線時直接回 decline，caller 的 ringing 不會吊著
func (h *RelayHandler) relayCall(userID string, payload json.RawMessage) {
	var call domain.CallUserPayload
	if err := json.Unmarshal(payload, &call); err != nil {
		logger.Log.Error("call payload decode failed", zap.Error(err))
		return
	}

	h.hub.TrackRoom(call.RoomID, userID, call.TargetID)

	incoming, _ := domain.NewWSEvent(domain.EventIncomingCall,
		domain.IncomingCallPayload{RoomID: call.RoomID, CallerID: userID})
	if err := h.hub.SendToUser(call.TargetID, incoming); err != nil {
		logger.Log.Info("callee offline, declining",
			zap.String("callee", call.TargetID),
			zap.String("roomID", call.RoomID),
		)
		decline, _ := domain.NewWSEvent(domain.EventDeclineCall,
			domain.DeclineCallPayload{RoomID: call.RoomID})
		if err := h.hub.SendToUser(userID, decline); err != nil {
			logger.Log.Errorf("decline send failed", err)
		}
		h.hub.EndRoom(call.RoomID)
	}
}

// relayToRoomPeer forward an answer/decline to the other party of the room
func (h *RelayHandler) relayToRoomPeer(userID string, event domain.Event, payload json.RawMessage, end bool) {
	var ref domain.DeclineCallPayload
	if err := json.Unmarshal(payload, &ref); err != nil {
		logger.Log.Error("call room payload decode failed", zap.Error(err))
		return
	}

	peer, ok := h.hub.RoomPeer(ref.RoomID, userID)
	if !ok {
		// 已結束或不認識的 room，忽略
		logger.Log.Warn("event for unknown room ignored",
			zap.String("event", string(event)),
			zap.String("roomID", ref.RoomID),
		)
		return
	}

	out := domain.WSEvent{Event: string(event), Payload: payload}
	if err := h.hub.SendToUser(peer, out); err != nil {
		logger.Log.Errorf("room peer send failed", err)
	}
	if end {
		h.hub.EndRoom(ref.RoomID)
	}
}
