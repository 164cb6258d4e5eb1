package push

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"firebase.google.com/go/v4/messaging"
)

// maxMulticastTokens はFCMのマルチキャスト1回あたりのトークン上限。
const maxMulticastTokens = 500

// FCMTransport はFirebase Cloud Messaging経由で送信するTransport。
type FCMTransport struct {
	client    *messaging.Client
	channelID string
}

var _ Transport = (*FCMTransport)(nil)

// NewFCMTransport は新しいFCMTransportを生成する。
// channelID はAndroidの通知チャンネルID。
func NewFCMTransport(client *messaging.Client, channelID string) *FCMTransport {
	return &FCMTransport{client: client, channelID: channelID}
}

// Send は1件のトークンへ送信する。
func (t *FCMTransport) Send(ctx context.Context, token string, msg Message) (string, error) {
	id, err := t.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android:      t.androidConfig(),
	})
	if err != nil {
		return "", wrapFCMError(err)
	}
	return id, nil
}

// SendMulticast は複数トークンへ送信する。
// FCMの1回の呼び出しの上限を超える場合は分割して送信する。
func (t *FCMTransport) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]SendResult, error) {
	return sendInBatches(ctx, tokens, maxMulticastTokens, func(ctx context.Context, batch []string) ([]SendResult, error) {
		return t.sendBatch(ctx, batch, msg)
	})
}

func (t *FCMTransport) sendBatch(ctx context.Context, tokens []string, msg Message) ([]SendResult, error) {
	resp, err := t.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android:      t.androidConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("FCMマルチキャスト送信に失敗: %w", err)
	}

	results := make([]SendResult, len(resp.Responses))
	for i, r := range resp.Responses {
		if r.Success {
			results[i] = SendResult{MessageID: r.MessageID}
			continue
		}
		results[i] = SendResult{Err: wrapFCMError(r.Error)}
	}
	return results, nil
}

// sendInBatches はtokensをsize件ずつに分けてsendを呼び、結果をtokensと同じ順序で連結する。
// 1つのバッチが丸ごと失敗した場合はそのバッチのトークンだけを失敗として扱う。
func sendInBatches(ctx context.Context, tokens []string, size int, send func(context.Context, []string) ([]SendResult, error)) ([]SendResult, error) {
	results := make([]SendResult, 0, len(tokens))
	for batch := range slices.Chunk(tokens, size) {
		batchResults, err := send(ctx, batch)
		if err != nil {
			for range batch {
				results = append(results, SendResult{Err: err})
			}
			continue
		}
		for i := range batch {
			if i < len(batchResults) {
				results = append(results, batchResults[i])
			} else {
				results = append(results, SendResult{Err: errors.New("ゲートウェイからの応答がありません")})
			}
		}
	}
	return results, nil
}

func (t *FCMTransport) androidConfig() *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			ChannelID: t.channelID,
			Priority:  messaging.PriorityHigh,
		},
	}
}

// wrapFCMError は登録解除済みトークンのエラーを ErrUnregistered に変換する。
func wrapFCMError(err error) error {
	if err == nil {
		return errors.New("FCMの応答にエラー詳細がありません")
	}
	if messaging.IsUnregistered(err) {
		return fmt.Errorf("%w: %w", ErrUnregistered, err)
	}
	return fmt.Errorf("FCM送信に失敗: %w", err)
}
