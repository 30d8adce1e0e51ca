package notification

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/raykavin/kagiline/pkg/feed"
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

// TelegramSettings holds the bot token and the users allowed to talk to it
type TelegramSettings struct {
	Token string
	Users []int
}

// StatusFunc reports the current state of the tracked charts
type StatusFunc func() string

type sender interface {
	Send(to tb.Recipient, what interface{}, options ...interface{}) (*tb.Message, error)
}

// Telegram sends style changes to every authorized user and answers
// /status and /help
type Telegram struct {
	settings    TelegramSettings
	status      StatusFunc
	defaultMenu *tb.ReplyMarkup
	client      sender
	bot         *tb.Bot
}

type Option func(telegram *Telegram)

// WithStatus sets the provider behind /status
func WithStatus(status StatusFunc) Option {
	return func(telegram *Telegram) {
		telegram.status = status
	}
}

func NewTelegram(settings TelegramSettings, options ...Option) (*Telegram, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	client, err := tb.NewBot(tb.Settings{
		Token:  settings.Token,
		Poller: authMiddleware(poller, settings.Users),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	menu.Reply(menu.Row(menu.Text("/status"), menu.Text("/help")))
	err = client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/status", Description: "Current direction and style of every chart"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	telegram := newTelegram(client, settings, menu, options...)
	telegram.bot = client
	client.Handle("/help", telegram.HelpHandle)
	client.Handle("/status", telegram.StatusHandle)
	return telegram, nil
}

func newTelegram(client sender, settings TelegramSettings, menu *tb.ReplyMarkup, options ...Option) *Telegram {
	telegram := &Telegram{
		settings:    settings,
		client:      client,
		defaultMenu: menu,
		status:      func() string { return "no charts" },
	}
	for _, option := range options {
		option(telegram)
	}
	return telegram
}

func authMiddleware(poller tb.Poller, users []int) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		return authorized(u, users)
	})
}

func authorized(u *tb.Update, users []int) bool {
	if u.Message == nil || u.Message.Sender == nil {
		return false
	}
	if slices.Contains(users, int(u.Message.Sender.ID)) {
		return true
	}
	log.WithField("user", u.Message.Sender.ID).Warn("notification/telegram: unauthorized user")
	return false
}

// Start polls for commands in the background
func (t *Telegram) Start() {
	if t.bot != nil {
		go t.bot.Start()
	}
	t.send("kagiline started.", t.defaultMenu)
}

func (t *Telegram) Stop() {
	if t.bot != nil {
		t.bot.Stop()
	}
}

func (t *Telegram) Notify(text string) {
	t.send(text)
}

func (t *Telegram) send(text string, options ...interface{}) {
	for _, user := range t.settings.Users {
		if _, err := t.client.Send(&tb.User{ID: int64(user)}, text, options...); err != nil {
			log.WithError(err).WithField("user", user).Error("notification/telegram: failed to send")
		}
	}
}

func (t *Telegram) reply(to *tb.User, text string) {
	if _, err := t.client.Send(to, text, t.defaultMenu); err != nil {
		log.WithError(err).Error("notification/telegram: failed to reply")
	}
}

func (t *Telegram) OnEvent(event feed.Event) {
	if title, body, ok := describe(event); ok {
		t.Notify(title + "\n-----\n" + body)
	}
}

func (t *Telegram) OnError(err error) {
	t.Notify(describeError(err))
}

func (t *Telegram) HelpHandle(m *tb.Message) {
	commands := []string{
		"/status - current direction and style of every chart",
		"/help - this message",
	}
	t.reply(m.Sender, strings.Join(commands, "\n"))
}

func (t *Telegram) StatusHandle(m *tb.Message) {
	t.reply(m.Sender, t.status())
}
