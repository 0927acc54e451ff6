package push

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/repository"
	"google.golang.org/api/option"
)

// PushService delivers FCM push notifications. It is a best-effort side
// channel of the notification fan-out: every failure is logged, never
// propagated.
type PushService struct {
	client   *messaging.Client
	userRepo *repository.UserRepository
}

// NewPushService creates a new FCM push service. Returns (nil, nil) when
// credentials are missing so the server can start with push disabled.
func NewPushService(credentialsFile string, userRepo *repository.UserRepository) (*PushService, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️ Failed to initialize Firebase app: %v (push notifications disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	log.Println("✅ Firebase FCM initialized")
	return &PushService{
		client:   client,
		userRepo: userRepo,
	}, nil
}

// Send pushes a notification to all of the user's registered devices
func (s *PushService) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	if s == nil || s.client == nil {
		return nil
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if !user.PushEnabled {
		return nil
	}

	devices, err := s.userRepo.GetUserDevices(userID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := s.client.SendMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if !resp.Success {
				log.Printf("⚠️ FCM failure for token %s: %v", tokens[idx], resp.Error)
			}
		}
	}

	return nil
}
