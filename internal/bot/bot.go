// Package bot is the Telegram front end. It keeps no copy of the typing
// state: every reply is rendered from a fresh status fetched over the HTTP
// control API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autotyper/internal/engine"
	"autotyper/internal/network"
	"autotyper/internal/protocol"
)

// DefaultTypedTail is how many typed words "show typed" returns
const DefaultTypedTail = 20

// API is the part of *tgbotapi.BotAPI the bot needs
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Options configures a Bot
type Options struct {
	AuthorizedUsers []int64
	TypedTail       int
}

type inputKind int

const (
	inputErrorChance inputKind = iota + 1
	inputCustomDelay
)

// Bot routes Telegram updates to the control API
type Bot struct {
	api        API
	client     *network.Client
	authorized map[int64]bool
	users      []int64
	typedTail  int

	mu      sync.Mutex
	pending map[int64]inputKind
}

// New creates a bot that answers only the given users
func New(api API, client *network.Client, opts Options) *Bot {
	b := &Bot{
		api:        api,
		client:     client,
		authorized: make(map[int64]bool, len(opts.AuthorizedUsers)),
		typedTail:  opts.TypedTail,
		pending:    make(map[int64]inputKind),
	}
	for _, id := range opts.AuthorizedUsers {
		if !b.authorized[id] {
			b.authorized[id] = true
			b.users = append(b.users, id)
		}
	}
	if b.typedTail <= 0 {
		b.typedTail = DefaultTypedTail
	}
	return b
}

// Connect logs in to Telegram with token
func Connect(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("bot: no token configured")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: login: %w", err)
	}
	log.Printf("Bot: Authorized as @%s", api.Self.UserName)
	return api, nil
}

// Serve long-polls Telegram and handles updates until ctx is done
func Serve(ctx context.Context, b *Bot, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()
	b.Run(ctx, updates)
}

// Run handles updates from the channel until it closes or ctx is done
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	log.Printf("Bot: Serving %d authorized users", len(b.users))
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single message or callback query
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// HandleEvent tells every authorized user when a run ends. Telegram private
// chats share their id with the user, so users are messaged directly.
func (b *Bot) HandleEvent(ev protocol.EventPayload) {
	if ev.Type != string(engine.EventRunFinished) {
		return
	}
	text := "Typing finished: the queue is empty."
	if ev.Reason == engine.ReasonStopped {
		text = "Typing stopped."
	}
	for _, id := range b.users {
		b.send(tgbotapi.NewMessage(id, text))
	}
}

func (b *Bot) isAuthorized(user *tgbotapi.User) bool {
	return user != nil && b.authorized[user.ID]
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if !b.isAuthorized(msg.From) {
		b.reply(msg, "Access denied.")
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.setPending(chatID, 0)
		b.handleCommand(ctx, msg)
		return
	}

	if kind := b.takePending(chatID); kind != 0 {
		b.handleInput(ctx, msg, kind)
		return
	}
	b.reply(msg, "Send /menu to see the settings.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.send(tgbotapi.NewMessage(chatID, helpText))
		b.sendMenu(ctx, chatID)

	case "menu":
		b.sendMenu(ctx, chatID)

	case "starttyping":
		id, err := b.client.Start(ctx)
		if err != nil {
			b.reply(msg, describeError(err))
			return
		}
		b.reply(msg, "Typing started (run "+id+").")
		b.sendMenu(ctx, chatID)

	case "stopping":
		if err := b.client.Stop(ctx); err != nil {
			b.reply(msg, describeError(err))
			return
		}
		b.reply(msg, "Typing stopped.")
		b.sendMenu(ctx, chatID)

	case "status":
		st, err := b.client.Status(ctx)
		if err != nil {
			b.reply(msg, describeError(err))
			return
		}
		m := tgbotapi.NewMessage(chatID, settingsText(st))
		m.ParseMode = tgbotapi.ModeHTML
		b.send(m)

	case "typed":
		if text := b.typedText(ctx); text != "" {
			b.send(tgbotapi.NewMessage(chatID, text))
		} else {
			b.reply(msg, "Nothing typed yet.")
		}

	default:
		b.reply(msg, "Unknown command. Try /menu.")
	}
}

func (b *Bot) handleInput(ctx context.Context, msg *tgbotapi.Message, kind inputKind) {
	value := strings.TrimSpace(msg.Text)

	var err error
	var done string
	switch kind {
	case inputErrorChance:
		err = b.client.SetErrorChance(ctx, value)
		done = "Error chance: " + value + "%"
	case inputCustomDelay:
		err = b.client.SetCustomDelay(ctx, value)
		done = "Extra delay: " + value + " s"
	}
	if err != nil {
		b.reply(msg, describeError(err))
		return
	}
	b.reply(msg, done)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.isAuthorized(cq.From) {
		b.answer(cq.ID, "Access denied")
		return
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		b.answer(cq.ID, "")
		return
	}
	chatID, messageID := cq.Message.Chat.ID, cq.Message.MessageID

	if flag, ok := toggleFlags[cq.Data]; ok {
		on, err := b.client.Toggle(ctx, flag.name)
		if err != nil {
			b.answer(cq.ID, describeError(err))
			return
		}
		b.answer(cq.ID, flag.label+": "+onOff(on))
		b.redraw(ctx, chatID, messageID)
		return
	}

	switch data := cq.Data; {
	case data == cbForceParse:
		if err := b.client.ForceParse(ctx); err != nil {
			b.answer(cq.ID, describeError(err))
			return
		}
		b.answer(cq.ID, "Force parse requested")
		b.redraw(ctx, chatID, messageID)

	case data == cbShowTyped:
		text := b.typedText(ctx)
		if text == "" {
			b.answer(cq.ID, "Nothing typed yet.")
			return
		}
		b.answer(cq.ID, "Recently typed:")
		b.send(tgbotapi.NewMessage(chatID, text))

	case data == cbErrorChance:
		b.setPending(chatID, inputErrorChance)
		b.answer(cq.ID, "Send the error chance (0..100) in the chat.")
		b.send(tgbotapi.NewMessage(chatID, "Enter the error chance (0..100), e.g. 5:"))

	case data == cbCustomDelay:
		b.setPending(chatID, inputCustomDelay)
		b.answer(cq.ID, "Send the extra delay (0..5) in the chat.")
		b.send(tgbotapi.NewMessage(chatID, "Enter the extra delay in seconds (0..5), e.g. 0.2:"))

	case data == cbSpeedMenu:
		st, err := b.client.Status(ctx)
		if err != nil {
			b.answer(cq.ID, describeError(err))
			return
		}
		b.answer(cq.ID, "")
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
			"Choose a speed (current: "+st.Speed+"):", speedMenu(st.Profiles)))

	case data == cbMenu:
		b.answer(cq.ID, "")
		b.redraw(ctx, chatID, messageID)

	case strings.HasPrefix(data, speedPrefix):
		name := strings.TrimPrefix(data, speedPrefix)
		if err := b.client.SetSpeed(ctx, name); err != nil {
			b.answer(cq.ID, describeError(err))
		} else {
			b.answer(cq.ID, "Speed set: "+name)
		}
		b.redraw(ctx, chatID, messageID)

	default:
		b.answer(cq.ID, "Unknown action")
	}
}

func (b *Bot) typedText(ctx context.Context) string {
	words, err := b.client.Typed(ctx, b.typedTail)
	if err != nil {
		return describeError(err)
	}
	return strings.Join(words, "\n")
}

func (b *Bot) sendMenu(ctx context.Context, chatID int64) {
	st, err := b.client.Status(ctx)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, describeError(err)))
		return
	}
	m := tgbotapi.NewMessage(chatID, settingsText(st))
	m.ParseMode = tgbotapi.ModeHTML
	m.ReplyMarkup = mainMenu(st)
	b.send(m)
}

func (b *Bot) redraw(ctx context.Context, chatID int64, messageID int) {
	st, err := b.client.Status(ctx)
	if err != nil {
		log.Printf("Bot: Failed to fetch status: %v", err)
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, settingsText(st), mainMenu(st))
	edit.ParseMode = tgbotapi.ModeHTML
	b.send(edit)
}

func (b *Bot) setPending(chatID int64, kind inputKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if kind == 0 {
		delete(b.pending, chatID)
		return
	}
	b.pending[chatID] = kind
}

func (b *Bot) takePending(chatID int64) inputKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	kind := b.pending[chatID]
	delete(b.pending, chatID)
	return kind
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	if msg.Chat == nil {
		return
	}
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	b.send(m)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("Bot: Failed to answer callback: %v", err)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		log.Printf("Bot: Send failed: %v", err)
	}
}

func describeError(err error) string {
	var apiErr *network.APIError
	if errors.As(err, &apiErr) {
		return "Error: " + apiErr.Message
	}
	return "Network error: " + err.Error()
}
