// Package push はプッシュ通知の送信を扱う。
// Sink は送信結果を記録するだけで、呼び出し側にエラーを返さない。
package push

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nao1215/paqueteria/internal/metrics"
)

// ErrUnregistered は宛先トークンが無効または登録解除済みであることを表す。
// Transport はこのエラーを errors.Is で判定できる形で返す。
var ErrUnregistered = errors.New("トークンが無効または登録解除済み")

// Message は1件のプッシュ通知の内容。
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// SendResult はマルチキャスト送信におけるトークン1件分の結果。
type SendResult struct {
	MessageID string
	Err       error
}

// Transport はプッシュゲートウェイへの実際の送信を行う。
type Transport interface {
	// Send は1件のトークンへ送信し、ゲートウェイのメッセージIDを返す。
	Send(ctx context.Context, token string, msg Message) (string, error)
	// SendMulticast は複数トークンへ1回の呼び出しで送信する。
	// 戻り値のスライスは tokens と同じ順序・長さになる。
	SendMulticast(ctx context.Context, tokens []string, msg Message) ([]SendResult, error)
}

// Outcome は単一送信の結果。
type Outcome int

const (
	// OutcomeDelivered はゲートウェイが送信を受け付けたことを表す。
	OutcomeDelivered Outcome = iota
	// OutcomeUnregistered はトークンが古く送信できなかったことを表す。
	OutcomeUnregistered
	// OutcomeFailed はそれ以外の理由で送信できなかったことを表す。
	OutcomeFailed
)

// String はメトリクスのラベルに使う名前を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeUnregistered:
		return "unregistered"
	default:
		return "failed"
	}
}

// BatchResult はマルチキャスト送信の集計結果。
type BatchResult struct {
	Success      int
	Failure      int
	Unregistered []string
}

// Sink はTransportを包み、送信失敗をログとメトリクスに吸収する。
type Sink struct {
	transport Transport
	logger    *zap.Logger
}

// NewSink は新しいSinkを生成する。
func NewSink(transport Transport, logger *zap.Logger) *Sink {
	return &Sink{transport: transport, logger: logger}
}

// SendSingle は1件のトークンへ送信する。失敗しても呼び出し側にエラーは返さない。
func (s *Sink) SendSingle(ctx context.Context, token string, msg Message) Outcome {
	id, err := s.transport.Send(ctx, token, msg)
	outcome := s.classify(token, err)
	metrics.PushDeliveriesTotal.WithLabelValues(outcome.String()).Inc()
	if outcome == OutcomeDelivered {
		s.logger.Info("通知を送信しました", zap.String("message_id", id))
	}
	return outcome
}

// SendMulticast は同じ内容を複数のトークンへ1回で送信し、成功・失敗数を返す。
func (s *Sink) SendMulticast(ctx context.Context, tokens []string, msg Message) BatchResult {
	var result BatchResult
	if len(tokens) == 0 {
		s.logger.Info("送信先トークンがありません")
		return result
	}

	responses, err := s.transport.SendMulticast(ctx, tokens, msg)
	if err != nil {
		result.Failure = len(tokens)
		metrics.PushDeliveriesTotal.WithLabelValues(OutcomeFailed.String()).Add(float64(len(tokens)))
		s.logger.Error("マルチキャスト送信に失敗",
			zap.Int("token_count", len(tokens)),
			zap.Error(err),
		)
		return result
	}

	for i, token := range tokens {
		var sendErr error
		if i < len(responses) {
			sendErr = responses[i].Err
		} else {
			sendErr = errors.New("ゲートウェイからの応答がありません")
		}
		outcome := s.classify(token, sendErr)
		metrics.PushDeliveriesTotal.WithLabelValues(outcome.String()).Inc()
		switch outcome {
		case OutcomeDelivered:
			result.Success++
		case OutcomeUnregistered:
			result.Failure++
			result.Unregistered = append(result.Unregistered, token)
		default:
			result.Failure++
		}
	}

	s.logger.Info("マルチキャスト送信が完了しました",
		zap.Int("success", result.Success),
		zap.Int("failure", result.Failure),
		zap.Int("total", len(tokens)),
	)
	return result
}

// classify は送信エラーを結果に分類し、必要なログを出力する。
func (s *Sink) classify(token string, err error) Outcome {
	switch {
	case err == nil:
		return OutcomeDelivered
	case errors.Is(err, ErrUnregistered):
		s.logger.Info("トークンが無効、またはユーザーが登録解除済みです", zap.String("token", token))
		return OutcomeUnregistered
	default:
		s.logger.Error("通知の送信に失敗", zap.String("token", token), zap.Error(err))
		return OutcomeFailed
	}
}
