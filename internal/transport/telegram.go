package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	Token        string        `koanf:"token"`
	APIEndpoint  string        `koanf:"api_endpoint"`
	FileEndpoint string        `koanf:"file_endpoint"`
	PollTimeout  time.Duration `koanf:"poll_timeout"`
	Debug        bool          `koanf:"debug"`
}

// DefaultTelegramConfig returns the public Bot API endpoints.
func DefaultTelegramConfig() TelegramConfig {
	return TelegramConfig{
		APIEndpoint:  tgbotapi.APIEndpoint,
		FileEndpoint: tgbotapi.FileEndpoint,
		PollTimeout:  60 * time.Second,
	}
}

// Telegram implements Messenger and Source over the Bot API.
type Telegram struct {
	api          *tgbotapi.BotAPI
	client       *http.Client
	fileEndpoint string
	pollTimeout  time.Duration
	logger       *slog.Logger
}

// contextClient binds every Bot API call to a context so shutdown aborts
// an in-flight long poll.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// NewTelegram connects to the Bot API and verifies the token. ctx bounds
// every API call made by the returned adapter.
func NewTelegram(ctx context.Context, cfg TelegramConfig, logger *slog.Logger) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	def := DefaultTelegramConfig()
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = def.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = def.FileEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}

	client := &http.Client{Timeout: cfg.PollTimeout + 30*time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, contextClient{ctx: ctx, client: client})
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	logger = logger.With("component", "telegram")
	logger.Info("authorized", "bot", api.Self.UserName)

	return &Telegram{
		api:          api,
		client:       client,
		fileEndpoint: cfg.FileEndpoint,
		pollTimeout:  cfg.PollTimeout,
		logger:       logger,
	}, nil
}

// BotName returns the bot's username.
func (t *Telegram) BotName() string {
	return t.api.Self.UserName
}

// Send delivers msg, splitting text that exceeds the message limit.
// Buttons and force-reply markup go on the last chunk.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	chunks := splitText(msg.Text, maxMessageRunes)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := tgbotapi.NewMessage(msg.UserID, chunk)
		if i == len(chunks)-1 {
			cfg.ReplyMarkup = replyMarkup(msg)
		}
		if _, err := t.api.Send(cfg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func replyMarkup(msg Message) any {
	if msg.ForceReply {
		return tgbotapi.ForceReply{ForceReply: true}
	}
	if len(msg.Buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Buttons))
	for _, row := range msg.Buttons {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Action))
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// splitText cuts text into chunks of at most limit runes, preferring to
// break after a newline.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// Ack answers a callback query.
func (t *Telegram) Ack(_ context.Context, callbackID string) error {
	if callbackID == "" {
		return nil
	}
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// Updates long-polls the Bot API until ctx is done.
func (t *Telegram) Updates(ctx context.Context) (<-chan Update, error) {
	out := make(chan Update)

	go func() {
		defer close(out)

		cfg := tgbotapi.NewUpdate(0)
		cfg.Timeout = int(t.pollTimeout / time.Second)
		cfg.AllowedUpdates = []string{"message", "callback_query"}

		for ctx.Err() == nil {
			updates, err := t.api.GetUpdates(cfg)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.logger.Warn("get updates failed, retrying in 3s", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(3 * time.Second):
				}
				continue
			}

			for _, raw := range updates {
				if raw.UpdateID >= cfg.Offset {
					cfg.Offset = raw.UpdateID + 1
				}
				u, ok := t.convert(raw)
				if !ok {
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// convert maps a Bot API update onto an Update. Updates the bot does not
// handle report false.
func (t *Telegram) convert(raw tgbotapi.Update) (Update, bool) {
	if cq := raw.CallbackQuery; cq != nil && cq.From != nil {
		return Update{
			UserID:      cq.From.ID,
			DisplayName: displayName(cq.From),
			Kind:        KindAction,
			Action:      cq.Data,
			CallbackID:  cq.ID,
		}, true
	}

	m := raw.Message
	if m == nil || m.From == nil {
		return Update{}, false
	}
	u := Update{UserID: m.From.ID, DisplayName: displayName(m.From)}

	switch {
	case m.IsCommand():
		u.Kind = KindCommand
		u.Command = m.Command()
		u.Args = strings.TrimSpace(m.CommandArguments())
	case m.Voice != nil:
		u.Kind = KindVoice
		u.Clip = &fileClip{t: t, fileID: m.Voice.FileID, name: fmt.Sprintf("voice-%d.ogg", m.MessageID)}
	case m.Audio != nil:
		u.Kind = KindVoice
		name := m.Audio.FileName
		if name == "" {
			name = fmt.Sprintf("audio-%d.mp3", m.MessageID)
		}
		u.Clip = &fileClip{t: t, fileID: m.Audio.FileID, name: name}
	case m.Text != "":
		u.Kind = KindText
		u.Text = m.Text
	default:
		return Update{}, false
	}
	return u, true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// fileClip downloads a Telegram file on demand.
type fileClip struct {
	t      *Telegram
	fileID string
	name   string
}

func (c *fileClip) Name() string { return c.name }

func (c *fileClip) Open(ctx context.Context) (io.ReadCloser, error) {
	file, err := c.t.api.GetFile(tgbotapi.FileConfig{FileID: c.fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	link := fmt.Sprintf(c.t.fileEndpoint, c.t.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
