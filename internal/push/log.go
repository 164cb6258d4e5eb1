package push

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogTransport は送信内容をログに出力するだけのTransport。
// Firebaseのクレデンシャルがないローカル環境で使う。
type LogTransport struct {
	logger *zap.Logger
}

var _ Transport = (*LogTransport)(nil)

// NewLogTransport は新しいLogTransportを生成する。
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send は送信内容をログに出力し、擬似的なメッセージIDを返す。
func (t *LogTransport) Send(_ context.Context, token string, msg Message) (string, error) {
	id := uuid.NewString()
	t.logger.Info("[push] 送信",
		zap.String("message_id", id),
		zap.String("token", token),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Any("data", msg.Data),
	)
	return id, nil
}

// SendMulticast はトークンごとに Send と同じ内容をログに出力する。
func (t *LogTransport) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]SendResult, error) {
	results := make([]SendResult, len(tokens))
	for i, token := range tokens {
		id, _ := t.Send(ctx, token, msg)
		results[i] = SendResult{MessageID: id}
	}
	return results, nil
}
