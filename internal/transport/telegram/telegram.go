package telegram

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	"congratbot/internal/transport"
	logx "congratbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec caps outbound sends across all chats.
	// Telegram allows ~30 messages/sec globally; default is 25.
	RatePerSec int
}

// Adapter sends messages and photos through the Telegram Bot API.
//
// All sends go through a shared token-bucket limiter so many concurrent
// sender jobs cannot trip Telegram's global flood limit.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	_, err := a.bot.Send(chat, text, sendOpt)
	return err
}

func (a *Adapter) SendPhoto(ctx context.Context, to transport.ChatTarget, image []byte, caption string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	chat := &tele.Chat{ID: to.ChatID}
	photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(image)), Caption: caption}
	_, err := a.bot.Send(chat, photo, &tele.SendOptions{ThreadID: to.ThreadID})
	return err
}

func (a *Adapter) Stop(ctx context.Context) error {
	// Send-only adapter: nothing is polling, so there is no loop to unwind.
	a.log.Debug("telegram adapter stopped")
	return nil
}
