package telegram

import (
	"stockwatch-telegram-bot/internal/commands"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot telegram interaction client
type Bot struct {
	api      botAPI
	Config   BotConfig
	commands *commands.Handler
}

// Message a telegram message struct
type Message struct {
	ChatID      int64
	MessageID   int
	Text        string
	ReplyMarkup interface{}
}
