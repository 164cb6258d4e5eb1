package sqlitestore

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/paqueteria/internal/directory"
	"github.com/nao1215/paqueteria/internal/history"
	"github.com/nao1215/paqueteria/pkg/event"
)

// setupTestStore はインメモリSQLiteのストアを生成する。
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.Context(), ":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("ストアの作成に失敗: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestGetUser はユーザー取得を検証する。
func TestGetUser(t *testing.T) {
	t.Parallel()

	t.Run("保存したユーザーを取得できること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		updated := time.UnixMilli(1_700_000_000_000)
		want := directory.User{
			ID: "CUST-1", Name: "Luis", Email: "luis@example.com", Role: directory.RoleCustomer,
			DeliveryToken: "tok-1", AuthToken: "session", TokenLastUpdated: &updated,
		}
		if err := s.PutUser(t.Context(), want); err != nil {
			t.Fatalf("PutUser()でエラーが発生: %v", err)
		}

		got, err := s.GetUser(t.Context(), "CUST-1")
		if err != nil {
			t.Fatalf("GetUser()でエラーが発生: %v", err)
		}
		if got.Name != want.Name || got.Role != want.Role || got.DeliveryToken != want.DeliveryToken {
			t.Errorf("GetUser() = %+v, want %+v", got, want)
		}
		if got.TokenLastUpdated == nil || !got.TokenLastUpdated.Equal(updated) {
			t.Errorf("TokenLastUpdated = %v, want %v", got.TokenLastUpdated, updated)
		}
	})

	t.Run("存在しないユーザーはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		for _, id := range []string{"missing", ""} {
			if _, err := s.GetUser(t.Context(), id); !errors.Is(err, directory.ErrNotFound) {
				t.Errorf("GetUser(%q) のエラー = %v, want ErrNotFound", id, err)
			}
		}
	})

	t.Run("接続を閉じた後の取得はErrNotFoundではないエラーになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		s.Close()

		_, err := s.GetUser(t.Context(), "CUST-1")
		if err == nil || errors.Is(err, directory.ErrNotFound) {
			t.Errorf("GetUser() のエラー = %v, want 取得失敗エラー", err)
		}
	})
}

// TestGetPackage は荷物取得を検証する。
func TestGetPackage(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	want := directory.Package{ID: "PKG-1", CustomerID: "CUST-1", RecipientName: "Luis", Address: "Centro 1", Status: "PENDIENTE"}
	if err := s.PutPackage(t.Context(), want); err != nil {
		t.Fatalf("PutPackage()でエラーが発生: %v", err)
	}

	got, err := s.GetPackage(t.Context(), "PKG-1")
	if err != nil {
		t.Fatalf("GetPackage()でエラーが発生: %v", err)
	}
	if *got != want {
		t.Errorf("GetPackage() = %+v, want %+v", *got, want)
	}

	if _, err := s.GetPackage(t.Context(), "PKG-404"); !errors.Is(err, directory.ErrNotFound) {
		t.Errorf("GetPackage(PKG-404) のエラー = %v, want ErrNotFound", err)
	}
}

// TestListCouriersWithDeliveryToken は配達員の絞り込みを検証する。
func TestListCouriersWithDeliveryToken(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	users := []directory.User{
		{ID: "C1", Role: directory.RoleCourier, DeliveryToken: "tok-c1"},
		{ID: "C2", Role: directory.RoleCourier, DeliveryToken: ""},
		{ID: "C3", Role: directory.RoleCourier, DeliveryToken: "tok-c3"},
		{ID: "U1", Role: directory.RoleCustomer, DeliveryToken: "tok-u1"},
	}
	for _, u := range users {
		if err := s.PutUser(t.Context(), u); err != nil {
			t.Fatalf("PutUser()でエラーが発生: %v", err)
		}
	}

	got, err := s.ListCouriersWithDeliveryToken(t.Context())
	if err != nil {
		t.Fatalf("ListCouriersWithDeliveryToken()でエラーが発生: %v", err)
	}
	want := map[string]string{"C1": "tok-c1", "C3": "tok-c3"}
	if len(got) != len(want) {
		t.Fatalf("配達員数 = %d, want %d (%v)", len(got), len(want), got)
	}
	for id, token := range want {
		if got[id] != token {
			t.Errorf("token[%s] = %q, want %q", id, got[id], token)
		}
	}
}

// TestNotificationRoundTrip は通知履歴を書き込んだ内容のまま読み出せることを検証する。
func TestNotificationRoundTrip(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	created := time.UnixMilli(1_700_000_000_500)
	entry := history.Entry{
		ID:        "1700000000500",
		Title:     "🚚 Paquete en camino",
		Body:      "Ana tomó tu paquete y está en camino",
		CreatedAt: created,
		Kind:      event.KindAssignment,
		Data:      map[string]string{"paqueteId": "P1", "userId": "U1"},
	}
	if err := s.AppendNotification(t.Context(), "U1", entry); err != nil {
		t.Fatalf("AppendNotification()でエラーが発生: %v", err)
	}
	// 他ユーザーの履歴は含まれない
	if err := s.AppendNotification(t.Context(), "U2", entry); err != nil {
		t.Fatalf("AppendNotification()でエラーが発生: %v", err)
	}

	got, err := s.ListNotifications(t.Context(), "U1", 10)
	if err != nil {
		t.Fatalf("ListNotifications()でエラーが発生: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("件数 = %d, want 1", len(got))
	}
	e := got[0]
	if e.ID != entry.ID || e.Title != entry.Title || e.Body != entry.Body || e.Kind != entry.Kind {
		t.Errorf("ListNotifications() = %+v, want %+v", e, entry)
	}
	if e.Read {
		t.Error("leida = true, want false")
	}
	if !e.CreatedAt.Equal(created) {
		t.Errorf("fecha = %v, want %v", e.CreatedAt, created)
	}
	if e.Data["paqueteId"] != "P1" || e.Data["userId"] != "U1" || len(e.Data) != 2 {
		t.Errorf("data = %v, want %v", e.Data, entry.Data)
	}
}

// TestListNotificationsOrder は新しい順と件数制限を検証する。
func TestListNotificationsOrder(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	for i := range 3 {
		created := time.UnixMilli(int64(1_000 + i))
		e := history.Entry{ID: created.Format("150405.000"), Title: "t", Body: "b", CreatedAt: created, Kind: event.KindDelivery}
		if err := s.AppendNotification(t.Context(), "U1", e); err != nil {
			t.Fatalf("AppendNotification()でエラーが発生: %v", err)
		}
	}

	got, err := s.ListNotifications(t.Context(), "U1", 2)
	if err != nil {
		t.Fatalf("ListNotifications()でエラーが発生: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("件数 = %d, want 2", len(got))
	}
	if got[0].CreatedAt.UnixMilli() != 1_002 || got[1].CreatedAt.UnixMilli() != 1_001 {
		t.Errorf("順序が新しい順になっていない: %d, %d", got[0].CreatedAt.UnixMilli(), got[1].CreatedAt.UnixMilli())
	}
}
