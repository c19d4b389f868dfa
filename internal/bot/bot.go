// Package bot is an optional Telegram front end for the chat service.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/rex/internal/chat"
	"github.com/xaenox/rex/internal/classifier"
	"github.com/xaenox/rex/internal/models"
	"go.uber.org/zap"
)

const historyLimit = 5

// Chatter answers chat turns.
type Chatter interface {
	Handle(ctx context.Context, req chat.Request) chat.Reply
	Greeting(ctx context.Context) string
}

// History lists the messages of a conversation.
type History interface {
	MessagesOf(ctx context.Context, conversationID int64) []*models.Message
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	chat    Chatter
	history History
	logger  *zap.Logger

	mu            sync.Mutex
	conversations map[int64]int64
}

func New(token string, chatter Chatter, history History, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, chatter, history, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, chatter Chatter, history History, logger *zap.Logger) *Bot {
	return &Bot{
		sender:        s,
		chat:          chatter,
		history:       history,
		logger:        logger,
		conversations: make(map[int64]int64),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}

	req := chat.Request{Message: content}
	if message.From != nil {
		req.Username = message.From.FirstName
	}
	if id, ok := b.conversation(message.Chat.ID); ok {
		req.ConversationID = &id
	}

	reply := b.chat.Handle(ctx, req)
	if reply.ConversationID != nil {
		b.remember(message.Chat.ID, *reply.ConversationID)
	}

	b.sendMessage(message.Chat.ID, reply.Message)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "new":
		b.forget(message.Chat.ID)
		b.sendMessage(message.Chat.ID, "Let's start fresh. What's on your mind?")
	case "history":
		b.handleHistory(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	welcome := b.chat.Greeting(ctx) + "\n\n" + classifier.PickFollowUp(classifier.Neutral)
	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Say hello
/help - Show this help message
/new - Start a new conversation
/history - Show the last messages of this conversation

Anything else you send is part of our conversation.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	id, ok := b.conversation(message.Chat.ID)
	if !ok {
		b.sendMessage(message.Chat.ID, "We haven't talked yet.")
		return
	}

	messages := b.history.MessagesOf(ctx, id)
	if len(messages) == 0 {
		b.sendMessage(message.Chat.ID, "We haven't talked yet.")
		return
	}
	if len(messages) > historyLimit {
		messages = messages[len(messages)-historyLimit:]
	}

	var sb strings.Builder
	sb.WriteString("*Our recent messages:*\n\n")
	for _, msg := range messages {
		fmt.Fprintf(&sb, "*%s*\n%s\n\n", escapeMarkdown(msg.Sender), escapeMarkdown(msg.Content))
	}

	out := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	out.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.sender.Send(out); err != nil {
		b.logger.Error("Failed to send history",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) conversation(chatID int64) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.conversations[chatID]
	return id, ok
}

func (b *Bot) remember(chatID, conversationID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = conversationID
}

func (b *Bot) forget(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

// escapeMarkdown escapes the characters reserved by MarkdownV2.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
