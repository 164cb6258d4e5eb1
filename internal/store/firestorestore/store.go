// Package firestorestore はドキュメントストアをCloud Firestoreで実装する。
// コレクション構成は配送アプリと共有する:
//
//	usuarios/{userId}
//	usuarios/{userId}/notificaciones/{entryId}
//	paquetes/{packageId}
package firestorestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nao1215/paqueteria/internal/directory"
	"github.com/nao1215/paqueteria/internal/history"
)

const (
	collectionUsers         = "usuarios"
	collectionPackages      = "paquetes"
	collectionNotifications = "notificaciones"

	fieldDeliveryToken = "fcmToken"
)

// Store はFirestoreによるドキュメントストア。
type Store struct {
	client *firestore.Client
	logger *zap.Logger
}

var (
	_ directory.Lookup = (*Store)(nil)
	_ history.Store    = (*Store)(nil)
	_ history.Lister   = (*Store)(nil)
)

// New はFirestoreクライアントを包んだStoreを生成する。
func New(client *firestore.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Close はFirestoreクライアントを閉じる。
func (s *Store) Close() error {
	return s.client.Close()
}

// GetUser はIDでユーザーを取得する。
func (s *Store) GetUser(ctx context.Context, id string) (*directory.User, error) {
	if id == "" {
		return nil, directory.ErrNotFound
	}
	snap, err := s.client.Collection(collectionUsers).Doc(id).Get(ctx)
	if err != nil {
		return nil, lookupError("ユーザー", id, err)
	}

	var u directory.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("ユーザー %s の変換に失敗: %w", id, err)
	}
	if u.ID == "" {
		u.ID = snap.Ref.ID
	}
	return &u, nil
}

// GetPackage はIDで荷物を取得する。
func (s *Store) GetPackage(ctx context.Context, id string) (*directory.Package, error) {
	if id == "" {
		return nil, directory.ErrNotFound
	}
	snap, err := s.client.Collection(collectionPackages).Doc(id).Get(ctx)
	if err != nil {
		return nil, lookupError("荷物", id, err)
	}

	var p directory.Package
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("荷物 %s の変換に失敗: %w", id, err)
	}
	if p.ID == "" {
		p.ID = snap.Ref.ID
	}
	return &p, nil
}

// ListCouriersWithDeliveryToken は配送トークンを持つ配達員を返す。
// 読むのは fcmToken フィールドだけで、型が文字列でない配達員は警告を出して除外する。
func (s *Store) ListCouriersWithDeliveryToken(ctx context.Context) (map[string]string, error) {
	iter := s.client.Collection(collectionUsers).
		Where("rol", "==", directory.RoleCourier).
		Documents(ctx)
	defer iter.Stop()

	tokens := make(map[string]string)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("配達員の検索に失敗: %w", err)
		}

		raw, err := snap.DataAt(fieldDeliveryToken)
		if err != nil {
			// フィールドが無い配達員はトークン未登録として扱う
			continue
		}
		token, err := deliveryToken(raw)
		if err != nil {
			s.logger.Warn("配達員の配送トークンを読み取れないため除外します",
				zap.String("courier_id", snap.Ref.ID),
				zap.Error(err),
			)
			continue
		}
		if token == "" {
			continue
		}
		tokens[snap.Ref.ID] = token
	}
	return tokens, nil
}

// deliveryToken は fcmToken フィールドの値を文字列として取り出す。nil は未登録とみなす。
func deliveryToken(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%s の型が不正: %T", fieldDeliveryToken, raw)
	}
}

// AppendNotification は usuarios/{userID}/notificaciones/{entry.ID} に履歴を書き込む。
func (s *Store) AppendNotification(ctx context.Context, userID string, entry history.Entry) error {
	if entry.Data == nil {
		entry.Data = map[string]string{}
	}
	_, err := s.client.Collection(collectionUsers).Doc(userID).
		Collection(collectionNotifications).Doc(entry.ID).
		Set(ctx, entry)
	if err != nil {
		return fmt.Errorf("通知履歴の書き込みに失敗: %w", err)
	}
	return nil
}

// ListNotifications はユーザーの通知履歴を新しい順に返す。
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]history.Entry, error) {
	snaps, err := s.client.Collection(collectionUsers).Doc(userID).
		Collection(collectionNotifications).
		OrderBy("fecha", firestore.Desc).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("通知履歴の取得に失敗: %w", err)
	}

	entries := make([]history.Entry, 0, len(snaps))
	for _, snap := range snaps {
		var e history.Entry
		if err := snap.DataTo(&e); err != nil {
			return nil, fmt.Errorf("通知履歴 %s の変換に失敗: %w", snap.Ref.ID, err)
		}
		if e.ID == "" {
			e.ID = snap.Ref.ID
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// lookupError はFirestoreの取得エラーを分類する。
// NotFoundは directory.ErrNotFound に、それ以外は取得失敗として包む。
func lookupError(entity, id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return directory.ErrNotFound
	}
	return fmt.Errorf("%s %s の取得に失敗: %w", entity, id, err)
}
