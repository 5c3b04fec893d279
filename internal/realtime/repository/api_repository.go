package repository

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/pkg/config"
	errprocess "social_realtime_client/pkg/err"

	"github.com/valyala/fasthttp"
)

// ChatAPIRepository REST collaborator surface consumed by the realtime core
type ChatAPIRepository interface {
	FetchContacts(ctx context.Context) ([]domain.Contact, error)
	FetchHistory(ctx context.Context, peerID string) ([]domain.ChatMessage, error)
	SendMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
	MarkConversationRead(ctx context.Context, peerID string) error
	DeleteMessage(ctx context.Context, messageID string) error
	FetchNotifications(ctx context.Context, page int) (domain.NotificationPage, error)
	SearchUsers(ctx context.Context, query string) ([]domain.Contact, error)
	StartConversation(ctx context.Context, userID string) (domain.Contact, error)
}

// RestAPIRepository fasthttp implementation of ChatAPIRepository
type RestAPIRepository struct {
	client  *fasthttp.Client
	baseURL string
	token   string
	timeout time.Duration
}

// NewRestAPIRepository create RestAPIRepository
func NewRestAPIRepository(cfg config.Client, accessToken string) *RestAPIRepository {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RestAPIRepository{
		client:  &fasthttp.Client{},
		baseURL: cfg.ServerURL,
		token:   accessToken,
		timeout: timeout,
	}
}

// do 發出一次 REST 請求並解析 JSON 回應
// out 為 nil 時只檢查狀態碼
func (r *RestAPIRepository) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.SetBody(raw)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remain := time.Until(deadline); remain < timeout {
			timeout = remain
		}
	}

	if err := r.client.DoTimeout(req, resp, timeout); err != nil {
		return errprocess.Setf("api request %s %s failed: %v", method, path, err)
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return errprocess.Setf("api request %s %s status %d", method, path, status)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

// FetchContacts get the contact list
func (r *RestAPIRepository) FetchContacts(ctx context.Context) ([]domain.Contact, error) {
	var contacts []domain.Contact
	if err := r.do(ctx, fasthttp.MethodGet, "/api/contacts", nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// FetchHistory get the full message history with one contact
func (r *RestAPIRepository) FetchHistory(ctx context.Context, peerID string) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	path := "/api/messages/" + url.PathEscape(peerID)
	if err := r.do(ctx, fasthttp.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage send one message, returns the server-confirmed copy
func (r *RestAPIRepository) SendMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	var confirmed domain.ChatMessage
	if err := r.do(ctx, fasthttp.MethodPost, "/api/messages", msg, &confirmed); err != nil {
		return domain.ChatMessage{}, err
	}
	return confirmed, nil
}

// MarkConversationRead mark every message from peerID as read
func (r *RestAPIRepository) MarkConversationRead(ctx context.Context, peerID string) error {
	path := "/api/messages/read/" + url.PathEscape(peerID)
	return r.do(ctx, fasthttp.MethodPut, path, nil, nil)
}

// DeleteMessage soft-delete one own message
func (r *RestAPIRepository) DeleteMessage(ctx context.Context, messageID string) error {
	path := "/api/messages/" + url.PathEscape(messageID)
	return r.do(ctx, fasthttp.MethodDelete, path, nil, nil)
}

// FetchNotifications get one page of notifications, newest first
func (r *RestAPIRepository) FetchNotifications(ctx context.Context, page int) (domain.NotificationPage, error) {
	var result domain.NotificationPage
	path := "/api/notifications?page=" + strconv.Itoa(page)
	if err := r.do(ctx, fasthttp.MethodGet, path, nil, &result); err != nil {
		return domain.NotificationPage{}, err
	}
	return result, nil
}

// SearchUsers search users by name
func (r *RestAPIRepository) SearchUsers(ctx context.Context, query string) ([]domain.Contact, error) {
	var users []domain.Contact
	path := "/api/users/search?q=" + url.QueryEscape(query)
	if err := r.do(ctx, fasthttp.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// StartConversation explicitly open a conversation with a user
func (r *RestAPIRepository) StartConversation(ctx context.Context, userID string) (domain.Contact, error) {
	var contact domain.Contact
	body := map[string]string{"user_id": userID}
	if err := r.do(ctx, fasthttp.MethodPost, "/api/conversations", body, &contact); err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}
