package service

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"perp_bot/pkg/logger"
)

// Notifier — односторонний канал к оператору. Отправка асинхронная, забитая
// очередь роняет сообщение, а не торговый путь.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	queue  chan string
}

func NewNotifier(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		bot:    bot,
		chatID: chatID,
		queue:  make(chan string, 256),
	}, nil
}

func (n *Notifier) Notify(text string) {
	select {
	case n.queue <- text:
	default:
		logger.Error("telegram queue full, dropping: %s", text)
	}
}

func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			msg := tgbotapi.NewMessage(n.chatID, text)
			if _, err := n.bot.Send(msg); err != nil {
				logger.Error("telegram send: %v", err)
			}
		}
	}
}

// NopNotifier — заглушка на случай пустого токена (локальный запуск).
type NopNotifier struct{}

func (NopNotifier) Notify(text string) {
	logger.Info("notify: %s", text)
}
