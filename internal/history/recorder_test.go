package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nao1215/paqueteria/pkg/event"
)

// memoryStore はテスト用のインメモリ履歴ストア。
type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]Entry
	err     error
}

func (m *memoryStore) AppendNotification(_ context.Context, userID string, entry Entry) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string][]Entry)
	}
	m.entries[userID] = append(m.entries[userID], entry)
	return nil
}

func TestRecorderAppend(t *testing.T) {
	t.Parallel()

	t.Run("時刻由来のIDと未読状態で保存されること", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		r := NewRecorder(store, zap.NewNop())
		fixed := time.UnixMilli(1_700_000_000_123)
		r.now = func() time.Time { return fixed }

		data := map[string]string{"paqueteId": "P1", "userId": "U1"}
		ok := r.Append(t.Context(), "U1", "título", "cuerpo", event.KindAssignment, data)
		require.True(t, ok)

		require.Len(t, store.entries["U1"], 1)
		got := store.entries["U1"][0]
		assert.Equal(t, "1700000000123", got.ID)
		assert.Equal(t, "título", got.Title)
		assert.Equal(t, "cuerpo", got.Body)
		assert.Equal(t, fixed, got.CreatedAt)
		assert.False(t, got.Read)
		assert.Equal(t, event.KindAssignment, got.Kind)
		assert.Equal(t, data, got.Data)
	})

	t.Run("書き込みに失敗してもパニックせずfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{err: errors.New("unavailable")}
		r := NewRecorder(store, zap.NewNop())

		ok := r.Append(t.Context(), "U1", "t", "b", event.KindDelivery, nil)
		assert.False(t, ok)
	})
}
