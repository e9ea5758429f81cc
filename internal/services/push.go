package services

import (
	"context"
	"fmt"

	"heartlink/internal/config"
	"heartlink/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// PushService delivers mobile push notifications through Firebase Cloud
// Messaging. When Firebase is not configured the service is a no-op, so
// callers never need to branch on availability.
type PushService struct {
	db     *gorm.DB
	client *messaging.Client
}

func NewPushService(ctx context.Context, cfg *config.Config, db *gorm.DB) (*PushService, error) {
	service := &PushService{db: db}

	if cfg.FirebaseProjectID == "" {
		logrus.Info("Firebase not configured, push notifications disabled")
		return service, nil
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID},
		option.WithCredentialsFile(cfg.FirebasePrivateKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FCM client: %w", err)
	}

	service.client = client
	logrus.Info("Firebase push notifications enabled")
	return service, nil
}

// SendToUser pushes to the user's registered device token. Best effort:
// failures are logged, never propagated, since the in-app notification row
// already exists.
func (s *PushService) SendToUser(ctx context.Context, userID uint, title, body string, data map[string]string) {
	if s.client == nil {
		return
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "fcm_token").First(&user, userID).Error; err != nil {
		logrus.WithError(err).WithField("user_id", userID).Debug("push skipped, user not found")
		return
	}
	if user.FCMToken == nil || *user.FCMToken == "" {
		return
	}

	message := &messaging.Message{
		Token: *user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("push delivery failed")
	}
}

// RegisterToken stores the device's FCM registration token.
func (s *PushService) RegisterToken(ctx context.Context, userID uint, token string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("fcm_token", token).Error
}
