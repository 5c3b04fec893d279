package relay

import (
	"time"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RegisterRoutes 注册 relay 的路由
func RegisterRoutes(r *fiber.App, handler *RelayHandler) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		handler.HandleConnection(c)
	}))
}

// StartReaper broadcast offline for users whose heartbeat expired.
// stop channel 關閉時結束
func StartReaper(hub *Hub, ttl time.Duration, stop <-chan struct{}) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, userID := range hub.ExpiredUsers(ttl) {
					logger.Log.Info("presence expired", zap.String("userID", userID))
					offline, _ := domain.NewWSEvent(domain.EventUserStatus,
						domain.UserStatusPayload{UserID: userID, IsOnline: false})
					hub.Broadcast(offline, 0)
				}
			case <-stop:
				return
			}
		}
	}()
}
