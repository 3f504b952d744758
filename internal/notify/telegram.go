package notify

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of the bot API used for reminders
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends review reminders through a Telegram bot
type Telegram struct {
	api sender
}

// NewTelegram connects to the Bot API with the given token
func NewTelegram(token string) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	log.Printf("Authorized on account %s", api.Self.UserName)
	return &Telegram{api: api}, nil
}

// SendReminders implements the scheduler.Notifier interface
func (t *Telegram) SendReminders(userID int64, count int) error {
	// В личных чатах chat ID совпадает с user ID
	msg := tgbotapi.NewMessage(userID, ReminderText(count))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to user %d: %w", userID, err)
	}
	log.Printf("Successfully sent reminder to user %d for %d items", userID, count)
	return nil
}

// ReminderText formats the reminder for count due items
func ReminderText(count int) string {
	return fmt.Sprintf("У вас %d %s для повторения! Начните занятие, чтобы не потерять прогресс.", count, itemsForm(count))
}

// itemsForm выбирает форму слова "карточка" для числа
func itemsForm(n int) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return "карточек"
	}
	switch n % 10 {
	case 1:
		return "карточка"
	case 2, 3, 4:
		return "карточки"
	}
	return "карточек"
}
