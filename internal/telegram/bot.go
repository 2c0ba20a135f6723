package telegram

import (
	"context"

	"stockwatch-telegram-bot/internal/commands"
	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/lib/helpers"
	"stockwatch-telegram-bot/lib/translation"

	"github.com/davecgh/go-spew/spew"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const callbackHelp = "help"

// NewBot creates new telegram bot
func NewBot(c BotConfig, handler *commands.Handler) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	api.Debug = c.Debug
	log.Debugf("Authorized on account %s", api.Self.UserName)

	return newBot(api, c, handler), nil
}

func newBot(api botAPI, c BotConfig, handler *commands.Handler) *Bot {
	return &Bot{
		api:      api,
		Config:   c,
		commands: handler,
	}
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() tgbotapi.UpdatesChannel {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.api.GetUpdatesChan(updatesConfig)
}

// StopReceivingUpdates ends long polling and closes the updates channel.
func (b *Bot) StopReceivingUpdates() {
	b.api.StopReceivingUpdates()
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if m.ReplyMarkup != nil {
		msg.ReplyMarkup = m.ReplyMarkup
	}
	_, err := b.api.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

// SendPhoto sends a PNG with a MarkdownV2 caption.
func (b *Bot) SendPhoto(chatID int64, replyTo int, image []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: image,
	})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdownV2
	photo.ReplyToMessageID = replyTo
	_, err := b.api.Send(photo)
	return errors.Wrapf(err, "could not send photo to chat %d", chatID)
}

// Notify delivers an alert text, with an optional image, to the owner's
// private chat. Errors match types.ErrDelivery.
func (b *Bot) Notify(ctx context.Context, ownerID int64, text string, image []byte) error {
	text = helpers.EscapeMarkdownV2(text)

	var err error
	if len(image) > 0 {
		err = b.SendPhoto(ownerID, 0, image, text)
	} else {
		err = b.SendMessage(Message{ChatID: ownerID, Text: text})
	}
	if err != nil {
		return errors.Wrapf(types.ErrDelivery, "owner %d: %v", ownerID, err)
	}
	return nil
}

// HandleUpdate routes one update and sends the reply. It reports whether
// the update was a command or price query the bot answered.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) (bool, error) {
	if u.CallbackQuery != nil {
		return true, b.HandleCallbackQuery(u.CallbackQuery)
	}

	if u.Message == nil || u.Message.Chat == nil {
		log.Debugf("Received non-message update: %s", spew.Sdump(u))
		return false, nil
	}

	m := u.Message
	ownerID := m.Chat.ID
	if m.From != nil {
		ownerID = m.From.ID
	}

	if m.IsCommand() {
		log.Debugf("received command: %s", m.Command())

		reply := Message{ChatID: m.Chat.ID, MessageID: m.MessageID}
		switch m.Command() {
		case "start":
			reply.Text = commands.CommandStart()
			reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(commands.HelpButtonLabel(), callbackHelp),
				),
			)
		case "add":
			reply.Text = b.commands.CommandAdd(ctx, ownerID, m.CommandArguments())
		case "list":
			reply.Text = b.commands.CommandList(ctx, ownerID)
		case "del":
			reply.Text = b.commands.CommandDelete(ctx, ownerID, m.CommandArguments())
		case "clear":
			reply.Text = b.commands.CommandClear(ctx, ownerID)
		default:
			reply.Text = commands.CommandHelp()
		}
		return true, b.SendMessage(reply)
	}

	symbol, ok := commands.ParseSymbolQuery(m.Text)
	if !ok {
		return false, nil
	}

	reply := b.commands.CommandPrice(ctx, symbol)
	if reply.Image != nil {
		err := b.SendPhoto(m.Chat.ID, m.MessageID, reply.Image, reply.Text)
		if err == nil {
			return true, nil
		}
		log.Error("error sending chart:", err)
	}
	return true, b.SendMessage(Message{ChatID: m.Chat.ID, MessageID: m.MessageID, Text: reply.Text})
}

func (b *Bot) HandleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) error {
	switch callbackQuery.Data {
	case callbackHelp:
		if callbackQuery.Message != nil {
			edit := tgbotapi.NewEditMessageText(
				callbackQuery.Message.Chat.ID,
				callbackQuery.Message.MessageID,
				commands.CommandHelp(),
			)
			edit.ParseMode = tgbotapi.ModeMarkdownV2
			if _, err := b.api.Send(edit); err != nil {
				log.Error("Failed to show help: ", err)
			}
		}
		_, err := b.api.Request(tgbotapi.NewCallback(callbackQuery.ID, ""))
		return errors.Wrap(err, "could not answer callback")
	default:
		_, err := b.api.Request(tgbotapi.NewCallback(callbackQuery.ID, translation.Translate("Unknown action. Please try again.")))
		return errors.Wrap(err, "could not answer callback")
	}
}
