package alerts

import (
	"context"
	"fmt"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/telegram"

	"github.com/zonewatch/zonewatch/pkg/types"
)

// Telegram sends each notification to one or more Telegram chats through a
// bot. The message is the first line, followed by the alert details.
type Telegram struct {
	token   string
	chatIDs []int64
	service serviceFunc
}

// NewTelegram returns a Telegram presenter for the bot token and chats.
func NewTelegram(token string, chatIDs []int64) *Telegram {
	t := &Telegram{token: token, chatIDs: chatIDs}
	t.service = t.botService
	return t
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Present(ctx context.Context, n types.Notification) error {
	body := fmt.Sprintf(
		"Alert type: %s\nZone: %s\nReceived: %s",
		n.AlertType,
		n.ZoneName,
		n.ReceivedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
	)
	if err := deliver(ctx, t.service, n.Message, body); err != nil {
		return fmt.Errorf("telegram: send to %d chats: %w", len(t.chatIDs), err)
	}
	return nil
}

func (t *Telegram) botService() (notify.Notifier, error) {
	svc, err := telegram.New(t.token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	svc.AddReceivers(t.chatIDs...)
	return svc, nil
}
