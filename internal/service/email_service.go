package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
)

// emailNamespace - пространство имен для детерминированных ключей идемпотентности (uuid v5)
var emailNamespace = uuid.MustParse("5b0b2f5e-3c55-4a8e-9d37-8f1f2c6a0d41")

// IdempotencyKey строит стабильный ключ письма по его смысловому идентификатору,
// например "reminder:<user>:<date>"
func IdempotencyKey(name string) string {
	return uuid.NewSHA1(emailNamespace, []byte(name)).String()
}

// Message - письмо для отправки
type Message struct {
	To             string
	Subject        string
	Body           string
	IsHTML         bool
	IdempotencyKey string
}

// Dispatcher отправляет уведомления. Ошибки не возвращаются: результат - true/false,
// подробности пишутся в лог.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) bool
	SendWithAttachment(ctx context.Context, msg Message, attachment []byte, filename string) bool
}

// NoopDispatcher используется, когда отправка писем не настроена
type NoopDispatcher struct{}

func (d *NoopDispatcher) Send(ctx context.Context, msg Message) bool {
	log.Printf("[EmailService] noop send to=%s subject=%q", msg.To, msg.Subject)
	return true
}

func (d *NoopDispatcher) SendWithAttachment(ctx context.Context, msg Message, attachment []byte, filename string) bool {
	log.Printf("[EmailService] noop send to=%s subject=%q attachment=%s (%d bytes)", msg.To, msg.Subject, filename, len(attachment))
	return true
}

// ResendDispatcher отправляет письма через Resend REST API
type ResendDispatcher struct {
	from   string
	client *resend.Client
}

func NewResendDispatcher(apiKey, from string) (*ResendDispatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendDispatcher{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

// NewDispatcher возвращает ResendDispatcher при заданном ключе, иначе NoopDispatcher
func NewDispatcher(apiKey, from string) Dispatcher {
	if strings.TrimSpace(apiKey) == "" {
		log.Println("[EmailService] RESEND_API_KEY не задан, письма не отправляются (noop)")
		return &NoopDispatcher{}
	}
	d, err := NewResendDispatcher(apiKey, from)
	if err != nil {
		log.Printf("[EmailService] Не удалось создать Resend клиент, используется noop: %v", err)
		return &NoopDispatcher{}
	}
	return d
}

func (d *ResendDispatcher) Send(ctx context.Context, msg Message) bool {
	return d.send(ctx, msg, nil)
}

func (d *ResendDispatcher) SendWithAttachment(ctx context.Context, msg Message, attachment []byte, filename string) bool {
	return d.send(ctx, msg, []*resend.Attachment{{
		Content:  attachment,
		Filename: filename,
	}})
}

func (d *ResendDispatcher) send(ctx context.Context, msg Message, attachments []*resend.Attachment) bool {
	if msg.To == "" || msg.Subject == "" {
		log.Printf("[EmailService] Пропуск письма без адресата или темы: to=%q subject=%q", msg.To, msg.Subject)
		return false
	}

	params := &resend.SendEmailRequest{
		From:        d.from,
		To:          []string{msg.To},
		Subject:     msg.Subject,
		Attachments: attachments,
	}
	if msg.IsHTML {
		params.Html = msg.Body
	} else {
		params.Text = msg.Body
	}

	options := &resend.SendEmailOptions{}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		options.IdempotencyKey = key
	}

	if err := d.sendWithRetry(ctx, params, options); err != nil {
		log.Printf("[EmailService] Ошибка отправки to=%s subject=%q: %v", msg.To, msg.Subject, err)
		return false
	}
	return true
}

func (d *ResendDispatcher) sendWithRetry(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := d.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
