// Package history はユーザーごとの通知履歴を記録する。
package history

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/paqueteria/internal/metrics"
	"github.com/nao1215/paqueteria/pkg/event"
)

// Entry は usuarios/{userId}/notificaciones/{id} に保存される通知履歴。
type Entry struct {
	// ID は作成時刻のエポックミリ秒を10進文字列にしたもの。
	ID        string            `json:"id" firestore:"id"`
	Title     string            `json:"titulo" firestore:"titulo"`
	Body      string            `json:"mensaje" firestore:"mensaje"`
	CreatedAt time.Time         `json:"fecha" firestore:"fecha"`
	Read      bool              `json:"leida" firestore:"leida"`
	Kind      event.Kind        `json:"tipo" firestore:"tipo"`
	Data      map[string]string `json:"data" firestore:"data"`
}

// Store は通知履歴の書き込み先。同じIDへの書き込みは上書きになる。
type Store interface {
	AppendNotification(ctx context.Context, userID string, entry Entry) error
}

// Lister は通知履歴の読み出し。新しい順に最大limit件を返す。
type Lister interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]Entry, error)
}

// Recorder は通知履歴を追記する。書き込みの失敗は記録して握りつぶし、
// 呼び出し側の通知処理を中断させない。
type Recorder struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder は新しいRecorderを生成する。
func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Append はuserIDの通知履歴にエントリを追加し、書き込めたかどうかを返す。
func (r *Recorder) Append(ctx context.Context, userID, title, body string, kind event.Kind, data map[string]string) bool {
	now := r.now()
	entry := Entry{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Title:     title,
		Body:      body,
		CreatedAt: now,
		Read:      false,
		Kind:      kind,
		Data:      data,
	}

	if err := r.store.AppendNotification(ctx, userID, entry); err != nil {
		metrics.HistoryWritesTotal.WithLabelValues("failed").Inc()
		r.logger.Error("通知履歴の保存に失敗",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return false
	}

	metrics.HistoryWritesTotal.WithLabelValues("recorded").Inc()
	r.logger.Debug("通知履歴を保存しました",
		zap.String("user_id", userID),
		zap.String("entry_id", entry.ID),
	)
	return true
}
