package push

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"courtyard/internal/middleware"
)

// multicastSender is the slice of messaging.Client the dispatcher needs.
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMDispatcher sends payloads through Firebase Cloud Messaging.
type FCMDispatcher struct {
	sender multicastSender
	// classify decides whether a per-token error is permanent.
	// Overridable in tests; firebase error values cannot be constructed
	// outside the SDK.
	classify func(error) bool
}

// NewFCMDispatcher builds a dispatcher from a service account credentials file.
// An empty credentials path returns an error; callers fall back to NoopDispatcher.
func NewFCMDispatcher(ctx context.Context, credentialsFile, projectID string) (*FCMDispatcher, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("push: FCM credentials file not configured")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID},
		option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("push: init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: init messaging client: %w", err)
	}

	return &FCMDispatcher{sender: client, classify: isPermanentTokenError}, nil
}

// Send delivers the payload to all tokens in batches of up to 500.
// Batches are independent: a transport failure in one batch is logged and
// counted against its tokens, and the remaining batches still go out.
func (d *FCMDispatcher) Send(ctx context.Context, tokens []string, payload Payload) (*Result, error) {
	result := &Result{}
	if len(tokens) == 0 {
		return result, nil
	}

	for _, batch := range batches(tokens) {
		msg := &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title:    payload.Title,
				Body:     payload.Body,
				ImageURL: payload.ImageURL,
			},
			Data: payload.Data,
		}

		resp, err := d.sender.SendEachForMulticast(ctx, msg)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "push batch send failed",
				slog.Int("tokens", len(batch)),
				slog.String("error", err.Error()),
			)
			result.Failed += len(batch)
			continue
		}

		for i, sr := range resp.Responses {
			if sr.Success {
				result.Delivered++
				continue
			}
			result.Failed++
			if d.classify(sr.Error) {
				result.Invalid = append(result.Invalid, batch[i])
			}
		}
	}

	return result, nil
}

// isPermanentTokenError reports whether the per-token error means the token
// will never work again and should be disabled.
func isPermanentTokenError(err error) bool {
	if err == nil {
		return false
	}
	return messaging.IsRegistrationTokenNotRegistered(err) || errorutils.IsInvalidArgument(err)
}
