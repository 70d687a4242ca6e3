package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollTimeout = 30 * time.Second
	retryDelay         = 5 * time.Second
)

// New создает новый Telegram бот
func New(token, apiURL string, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		token:       token,
		baseURL:     fmt.Sprintf("%s/bot%s", strings.TrimRight(apiURL, "/"), token),
		client:      &http.Client{Timeout: defaultPollTimeout + 10*time.Second},
		logger:      logger,
		pollTimeout: defaultPollTimeout,
	}
}

// GetUpdates получает обновления от Telegram
func (b *Bot) GetUpdates(ctx context.Context, offset int) ([]Update, error) {
	url := fmt.Sprintf("%s/getUpdates?offset=%d&timeout=%d", b.baseURL, offset, int(b.pollTimeout/time.Second))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build getUpdates request: %w", err)
	}

	var response GetUpdatesResponse
	if err := b.do(req, &response); err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	return response.Result, nil
}

// SendMessage отправляет сообщение пользователю
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	request := SendMessageRequest{
		ChatID: chatID,
		Text:   text,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode sendMessage request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/sendMessage", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var response SendMessageResponse
	if err := b.do(req, &response); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// SendFormattedMessage отправляет форматированное сообщение
func (b *Bot) SendFormattedMessage(ctx context.Context, chatID int64, format string, args ...any) error {
	return b.SendMessage(ctx, chatID, fmt.Sprintf(format, args...))
}

func (b *Bot) do(req *http.Request, response apiResult) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if ok, code, description := response.status(); !ok {
		return fmt.Errorf("telegram API error %d: %s", code, description)
	}
	return nil
}

// StartPolling получает обновления, пока не отменен ctx. Каждое обновление
// обрабатывается в своей горутине; перед возвратом дожидается их завершения.
func (b *Bot) StartPolling(ctx context.Context, handler func(context.Context, Update)) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := b.GetUpdates(ctx, offset)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}
			b.logger.Warn("get updates failed", zap.Error(err))
			if !sleepCtx(ctx, retryDelay) {
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			wg.Add(1)
			go func(u Update) {
				defer wg.Done()
				handler(ctx, u)
			}(update)
		}

		if len(updates) == 0 && b.pollTimeout == 0 {
			if !sleepCtx(ctx, time.Second) {
				return ctx.Err()
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
