package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"social_realtime_client/internal/realtime/app"
	"social_realtime_client/internal/realtime/domain"
	"social_realtime_client/pkg/config"
	"social_realtime_client/pkg/logger"
	"social_realtime_client/pkg/token"

	"go.uber.org/zap"
)

// headless runner：登入、掛上 realtime core，收到訊號後登出
func main() {
	logger.Log = logger.Initialize(config.EnvConfig.RealtimeClient, config.EnvConfig.RealtimeClientLogPath)
	cfg := config.LoadConfig[config.Client](config.EnvConfig.RealtimeClient, config.EnvConfig.RealtimeClientYAMLPath)

	accessToken := config.EnvConfig.AccessToken
	userID, err := token.UserIDFromToken(accessToken)
	if err != nil {
		logger.Log.Fatal("invalid access token", zap.Error(err))
	}

	client := app.NewClient(cfg)
	if err := client.Login(userID, accessToken); err != nil {
		// 離線模式照常啟動
		logger.Log.Warn("starting in offline mode", zap.Error(err))
	}
	defer client.Logout()

	if n := client.Notifications(); n != nil {
		n.SetAlertHandler(func(notification domain.Notification) {
			fmt.Printf("[notification] %s: %s\n", notification.SenderName, notification.Content)
		})
	}
	if c := client.Calls(); c != nil {
		c.SetIncomingHandler(func(attempt domain.CallAttempt) {
			fmt.Printf("[call] incoming from %s (room %s)\n", attempt.CallerID, attempt.RoomID)
		})
		c.SetEndedHandler(func(attempt domain.CallAttempt) {
			fmt.Printf("[call] ended (room %s)\n", attempt.RoomID)
		})
	}

	logger.Log.Info("realtime client running", zap.String("userID", userID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down")
}
