package alerts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/pkg/types"
)

const webhookTimeout = 10 * time.Second

// Presenter shows a notification to a human.
type Presenter interface {
	Name() string
	Present(ctx context.Context, n types.Notification) error
}

// Prompt reads acknowledgement lines from one input. A single goroutine owns
// the reader, so a wait abandoned on cancellation never leaves a second
// reader competing for the same input.
type Prompt struct {
	in    io.Reader
	once  sync.Once
	lines chan error
}

// NewPrompt returns a Prompt reading from in. Reading starts on the first Wait.
func NewPrompt(in io.Reader) *Prompt {
	return &Prompt{in: in, lines: make(chan error)}
}

func (p *Prompt) start() {
	go func() {
		r := bufio.NewReader(p.in)
		for {
			_, err := r.ReadString('\n')
			if err != nil {
				if !errors.Is(err, io.EOF) {
					p.lines <- err
				}
				close(p.lines)
				return
			}
			p.lines <- nil
		}
	}()
}

// Wait blocks until a line is read or ctx is done. End of input counts as
// acknowledged, for this and every later Wait.
func (p *Prompt) Wait(ctx context.Context) error {
	p.once.Do(p.start)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-p.lines:
		if ok && err != nil {
			return fmt.Errorf("read: %w", err)
		}
		return nil
	}
}

// Console writes each notification as a line. A modal console then blocks
// until the prompt reads a line, the terminal equivalent of a pop-up that
// must be dismissed.
type Console struct {
	out    io.Writer
	prompt *Prompt
	modal  bool
	mu     sync.Mutex
}

// NewConsole returns a console presenter. prompt is only used when modal is set.
func NewConsole(out io.Writer, prompt *Prompt, modal bool) *Console {
	return &Console{out: out, prompt: prompt, modal: modal}
}

func (c *Console) Name() string { return "console" }

// Present writes n.Message and, when modal, waits for acknowledgement.
func (c *Console) Present(ctx context.Context, n types.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintln(c.out, n.Message); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	if !c.modal || c.prompt == nil {
		return nil
	}
	if _, err := fmt.Fprint(c.out, "[press Enter to dismiss] "); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	if err := c.prompt.Wait(ctx); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// Build creates presenters from configuration, in order. Webhook and
// Telegram presenters whose secret variable is unset are skipped with a
// warning. Modal consoles share prompt.
func Build(cfgs []config.Presenter, stdout io.Writer, prompt *Prompt) ([]Presenter, error) {
	client := &http.Client{Timeout: webhookTimeout}
	ps := make([]Presenter, 0, len(cfgs))
	for i, pc := range cfgs {
		switch pc.Type {
		case "console":
			ps = append(ps, NewConsole(stdout, prompt, pc.Modal))
		case "slack", "teams", "http":
			url := pc.URL()
			if url == "" {
				slog.Warn("alerts: webhook url not set, skipping presenter",
					"type", pc.Type,
					"url_env", pc.URLEnv,
				)
				continue
			}
			ps = append(ps, NewWebhook(pc.Type, url, client))
		case "mail":
			ps = append(ps, NewMail(MailConfig{
				Host:     pc.SMTPHost,
				Port:     pc.SMTPPort,
				From:     pc.From,
				To:       pc.To,
				Username: pc.Username,
				Password: pc.Password(),
			}))
		case "telegram":
			token := pc.Token()
			if token == "" {
				slog.Warn("alerts: telegram token not set, skipping presenter",
					"token_env", pc.TokenEnv,
				)
				continue
			}
			ps = append(ps, NewTelegram(token, pc.ChatIDs))
		default:
			return nil, fmt.Errorf("alerts: presenters[%d]: unknown type %q", i, strings.TrimSpace(pc.Type))
		}
	}
	return ps, nil
}
