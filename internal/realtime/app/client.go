package app

import (
	"errors"
	"sync"

	"social_realtime_client/internal/realtime/repository"
	"social_realtime_client/internal/realtime/transport"
	"social_realtime_client/pkg/config"
	"social_realtime_client/pkg/logger"

	"go.uber.org/zap"
)

// Client 整個 realtime core 的擁有者
// 一個 identity 一條 session；identity 變更時先拆掉舊的再建新的
type Client struct {
	cfg config.Client

	// NewAPI builds the REST collaborator for one identity; tests swap it
	NewAPI func(cfg config.Client, accessToken string) repository.ChatAPIRepository

	mu        sync.Mutex
	session   *transport.Session
	heartbeat *Heartbeat

	presence      *PresenceUseCase
	notifications *NotificationUseCase
	messages      *MessageUseCase
	calls         *CallUseCase
}

// NewClient create Client
func NewClient(cfg config.Client) *Client {
	return &Client{
		cfg: cfg,
		NewAPI: func(cfg config.Client, accessToken string) repository.ChatAPIRepository {
			return repository.NewRestAPIRepository(cfg, accessToken)
		},
	}
}

// Login build the session and all consumers for one identity.
// 連不上 server 時回傳錯誤但仍維持離線可用狀態
func (c *Client) Login(userID, accessToken string) error {
	// 同一個瀏覽器 context 不允許兩條活連線
	c.Logout()

	session, err := transport.NewSession(c.cfg, userID, accessToken)
	if err != nil {
		if errors.Is(err, transport.ErrNoIdentity) {
			// 空 identity 視同沒登入
			return nil
		}
		return err
	}

	api := c.NewAPI(c.cfg, accessToken)

	c.mu.Lock()
	c.session = session
	c.presence = NewPresenceUseCase(session)
	c.notifications = NewNotificationUseCase(session, api)
	c.messages = NewMessageUseCase(session, api, userID)
	c.calls = NewCallUseCase(session, userID)
	c.heartbeat = NewHeartbeat(session, c.cfg.HeartbeatInterval)

	session.SetDisconnectHandler(c.presence.Clear)
	c.mu.Unlock()

	if err := session.Open(); err != nil {
		// 離線模式：presence 保持空集合，UI 照常運作
		logger.Log.Warn("realtime session offline", zap.String("userID", userID), zap.Error(err))
		return err
	}

	c.heartbeat.Start()
	logger.Log.Info("realtime session open", zap.String("userID", userID))
	return nil
}

// Logout tear everything down. Identity 清空時所有訂閱一併失效
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	if c.presence != nil {
		c.presence.Close()
		c.presence = nil
	}
	if c.notifications != nil {
		c.notifications.Close()
		c.notifications = nil
	}
	if c.messages != nil {
		c.messages.Close()
		c.messages = nil
	}
	if c.calls != nil {
		c.calls.Close()
		c.calls = nil
	}
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
}

// Session current transport session, nil when logged out
func (c *Client) Session() *transport.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Presence presence consumer, nil when logged out
func (c *Client) Presence() *PresenceUseCase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence
}

// Notifications notification consumer, nil when logged out
func (c *Client) Notifications() *NotificationUseCase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifications
}

// Messages message consumer, nil when logged out
func (c *Client) Messages() *MessageUseCase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// Calls call signaling coordinator, nil when logged out
func (c *Client) Calls() *CallUseCase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// IsOnline convenience presence query tolerant of the logged-out state
func (c *Client) IsOnline(userID string) bool {
	c.mu.Lock()
	presence := c.presence
	c.mu.Unlock()
	if presence == nil {
		return false
	}
	return presence.IsOnline(userID)
}
