// Package sqlitestore はドキュメントストアをSQLiteで実装する。
// Firestoreを使わないローカル環境とテストで使用する。
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nao1215/paqueteria/internal/directory"
	"github.com/nao1215/paqueteria/internal/history"
	"github.com/nao1215/paqueteria/pkg/event"
	"github.com/nao1215/paqueteria/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store はSQLiteによるドキュメントストア。
type Store struct {
	db *sql.DB
}

var (
	_ directory.Lookup = (*Store)(nil)
	_ history.Store    = (*Store)(nil)
	_ history.Lister   = (*Store)(nil)
)

// Open はdsnのSQLiteデータベースを開き、スキーマを適用する。
// ":memory:" を指定した場合は接続を1本に固定する。
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, db, migrations, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// GetUser はIDでユーザーを取得する。
func (s *Store) GetUser(ctx context.Context, id string) (*directory.User, error) {
	if id == "" {
		return nil, directory.ErrNotFound
	}

	var (
		u       directory.User
		updated sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, email, rol, fcm_token, token, ultima_actualizacion_token
		FROM usuarios WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.DeliveryToken, &u.AuthToken, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー %s の取得に失敗: %w", id, err)
	}
	if updated.Valid {
		t := time.UnixMilli(updated.Int64)
		u.TokenLastUpdated = &t
	}
	return &u, nil
}

// GetPackage はIDで荷物を取得する。
func (s *Store) GetPackage(ctx context.Context, id string) (*directory.Package, error) {
	if id == "" {
		return nil, directory.ErrNotFound
	}

	var p directory.Package
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cliente_id, destinatario, direccion, estado
		FROM paquetes WHERE id = ?`, id,
	).Scan(&p.ID, &p.CustomerID, &p.RecipientName, &p.Address, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("荷物 %s の取得に失敗: %w", id, err)
	}
	return &p, nil
}

// ListCouriersWithDeliveryToken は配送トークンを持つ配達員を返す。
func (s *Store) ListCouriersWithDeliveryToken(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fcm_token FROM usuarios
		WHERE rol = ? AND fcm_token <> ''`, directory.RoleCourier)
	if err != nil {
		return nil, fmt.Errorf("配達員の検索に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tokens := make(map[string]string)
	for rows.Next() {
		var id, token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("配達員の読み取りに失敗: %w", err)
		}
		tokens[id] = token
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配達員の検索に失敗: %w", err)
	}
	return tokens, nil
}

// AppendNotification はユーザーの通知履歴を書き込む。同じIDは上書きする。
func (s *Store) AppendNotification(ctx context.Context, userID string, entry history.Entry) error {
	data := entry.Data
	if data == nil {
		data = map[string]string{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notificaciones
			(usuario_id, id, titulo, mensaje, fecha, leida, tipo, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, entry.ID, entry.Title, entry.Body, entry.CreatedAt.UnixMilli(),
		boolToInt(entry.Read), string(entry.Kind), string(payload),
	); err != nil {
		return fmt.Errorf("通知履歴の書き込みに失敗: %w", err)
	}
	return nil
}

// ListNotifications はユーザーの通知履歴を新しい順に返す。
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]history.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, titulo, mensaje, fecha, leida, tipo, data
		FROM notificaciones WHERE usuario_id = ?
		ORDER BY fecha DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("通知履歴の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		var (
			e       history.Entry
			fecha   int64
			leida   int
			kind    string
			payload string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Body, &fecha, &leida, &kind, &payload); err != nil {
			return nil, fmt.Errorf("通知履歴の読み取りに失敗: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Data); err != nil {
			return nil, fmt.Errorf("ペイロードのデシリアライズに失敗: %w", err)
		}
		e.CreatedAt = time.UnixMilli(fecha)
		e.Read = leida != 0
		e.Kind = event.Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PutUser はユーザーを作成または更新する。
func (s *Store) PutUser(ctx context.Context, u directory.User) error {
	var updated sql.NullInt64
	if u.TokenLastUpdated != nil {
		updated = sql.NullInt64{Int64: u.TokenLastUpdated.UnixMilli(), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO usuarios
			(id, nombre, email, rol, fcm_token, token, ultima_actualizacion_token)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Role, u.DeliveryToken, u.AuthToken, updated,
	); err != nil {
		return fmt.Errorf("ユーザー %s の保存に失敗: %w", u.ID, err)
	}
	return nil
}

// PutPackage は荷物を作成または更新する。
func (s *Store) PutPackage(ctx context.Context, p directory.Package) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO paquetes (id, cliente_id, destinatario, direccion, estado)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.CustomerID, p.RecipientName, p.Address, p.Status,
	); err != nil {
		return fmt.Errorf("荷物 %s の保存に失敗: %w", p.ID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
