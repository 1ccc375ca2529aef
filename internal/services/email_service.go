package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// EmailService sends account mail through the Gmail API. Without a client
// the messages are only logged, which is enough for local development.
type EmailService struct {
	GmailClient *gmail.Service
	From        string
	Log         *zap.Logger
}

func NewEmailService(client *gmail.Service, from string, log *zap.Logger) *EmailService {
	return &EmailService{GmailClient: client, From: from, Log: log}
}

// Send delivers a plain text message.
func (s *EmailService) Send(ctx context.Context, to, subject, body string) error {
	if s.GmailClient == nil {
		s.Log.Info("mail disabled, message not sent",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.String("body", body),
		)
		return nil
	}

	raw := base64.URLEncoding.EncodeToString(buildMessage(s.From, to, subject, body))
	err := retry(ctx, 3, time.Second, s.Log, func() error {
		_, err := s.GmailClient.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	s.Log.Info("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	if from != "" {
		b.WriteString("From: " + headerValue(from) + "\r\n")
	}
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", headerValue(subject)) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// headerValue drops line breaks so a value cannot add headers.
func headerValue(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// retry executes f with exponential backoff. Client errors other than rate
// limiting are returned immediately.
func retry(ctx context.Context, attempts int, sleep time.Duration, log *zap.Logger, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		log.Warn("gmail api error, retrying", zap.Error(err), zap.Duration("sleep", sleep))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func retryable(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 429 || gErr.Code >= 500
	}
	return true
}
