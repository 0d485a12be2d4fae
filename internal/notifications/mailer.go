// Package notifications delivers digest emails produced by the digest sweep.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"puzzlemarket/internal/messaging"
	"puzzlemarket/internal/middleware"
)

// DigestEmail is the payload handed to the mail sender.
type DigestEmail struct {
	BatchID             string    `json:"batch_id"`
	PlayerID            uint      `json:"player_id"`
	Email               string    `json:"email"`
	DisplayName         string    `json:"display_name"`
	Locale              string    `json:"locale"`
	UnreadMessages      int64     `json:"unread_messages"`
	PendingRequests     int64     `json:"pending_requests"`
	UnreadNotifications int64     `json:"unread_notifications"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Empty reports whether the digest has nothing to say.
func (d DigestEmail) Empty() bool {
	return d.UnreadMessages == 0 && d.PendingRequests == 0 && d.UnreadNotifications == 0
}

// DigestMailer dispatches one digest. A nil error means the digest was
// handed off and must not be sent again for the same items.
type DigestMailer interface {
	SendDigest(ctx context.Context, email DigestEmail) error
}

// NATSDigestMailer enqueues digests on NATS for the mail sender.
type NATSDigestMailer struct {
	pub     messaging.Publisher
	subject string
}

// NewNATSDigestMailer returns a mailer publishing to messaging.SubjectDigestEmail.
func NewNATSDigestMailer(pub messaging.Publisher) *NATSDigestMailer {
	return &NATSDigestMailer{pub: pub, subject: messaging.SubjectDigestEmail}
}

func (m *NATSDigestMailer) SendDigest(ctx context.Context, email DigestEmail) error {
	if email.Email == "" {
		return fmt.Errorf("player %d has no email address", email.PlayerID)
	}
	payload, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("encode digest for player %d: %w", email.PlayerID, err)
	}
	return m.pub.Publish(ctx, m.subject, payload)
}

// LogDigestMailer writes digests to the application log. Used in
// development when NATS is not running.
type LogDigestMailer struct{}

func (LogDigestMailer) SendDigest(ctx context.Context, email DigestEmail) error {
	middleware.Logger.InfoContext(middleware.WithPlayer(ctx, email.PlayerID), "digest email",
		slog.String("batch_id", email.BatchID),
		slog.Int64("unread_messages", email.UnreadMessages),
		slog.Int64("pending_requests", email.PendingRequests),
		slog.Int64("unread_notifications", email.UnreadNotifications),
	)
	return nil
}
