// 通知サービスのエントリポイント。
// 配送アプリから荷物イベントを受け取り、顧客・配達員へプッシュ通知を配信して
// 通知履歴をドキュメントストアに保存する。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/nao1215/paqueteria/internal/config"
	"github.com/nao1215/paqueteria/internal/directory"
	"github.com/nao1215/paqueteria/internal/history"
	"github.com/nao1215/paqueteria/internal/notification"
	"github.com/nao1215/paqueteria/internal/push"
	"github.com/nao1215/paqueteria/internal/store/firestorestore"
	"github.com/nao1215/paqueteria/internal/store/sqlitestore"
	"github.com/nao1215/paqueteria/pkg/logger"
)

// documentStore はユーザー・荷物の参照と通知履歴の読み書きを行うストア。
type documentStore interface {
	directory.Lookup
	history.Store
	history.Lister
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("通知サービスが異常終了しました", zap.Error(err))
		stop()
		_ = zl.Sync()
		os.Exit(1)
	}
}

// run は依存を組み立ててHTTPサーバーを起動し、ctxがキャンセルされるまで待つ。
func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	var app *firebase.App
	if cfg.UsesFirebase() {
		var err error
		app, err = firebase.NewApp(ctx,
			&firebase.Config{ProjectID: cfg.FirebaseProjectID},
			option.WithCredentialsFile(cfg.FirebaseCredentialsFile),
		)
		if err != nil {
			return fmt.Errorf("Firebaseの初期化に失敗: %w", err)
		}
		zl.Info("Firebaseを初期化しました", zap.String("project_id", cfg.FirebaseProjectID))
	}

	store, err := openStore(ctx, cfg, app, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			zl.Warn("ストアのクローズに失敗", zap.Error(err))
		}
	}()

	transport, err := newTransport(ctx, cfg, app, zl)
	if err != nil {
		return err
	}

	pipeline := notification.NewPipeline(
		store,
		history.NewRecorder(store, zl),
		push.NewSink(transport, zl),
		zl,
		notification.WithConcurrency(cfg.FanoutConcurrency),
		notification.WithMulticast(cfg.NewPackageMulticast),
	)

	server := notification.NewServer(notification.ServerConfig{
		Port:           cfg.Port,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		HistoryLimit:   cfg.HistoryDefaultLimit,
	}, pipeline, store, zl)

	return server.Run(ctx)
}

// openStore は設定に応じたドキュメントストアを開く。
func openStore(ctx context.Context, cfg *config.Config, app *firebase.App, zl *zap.Logger) (documentStore, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("Firestoreクライアントの作成に失敗: %w", err)
		}
		zl.Info("Firestoreストアを使用します")
		return firestorestore.New(client, zl), nil
	case config.StoreSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath, zl)
		if err != nil {
			return nil, fmt.Errorf("SQLiteストアの作成に失敗: %w", err)
		}
		zl.Info("SQLiteストアを使用します", zap.String("path", cfg.SQLitePath))
		return store, nil
	default:
		return nil, errors.New("不明なストア: " + cfg.StoreBackend)
	}
}

// newTransport は設定に応じたプッシュ通知の送信方法を返す。
func newTransport(ctx context.Context, cfg *config.Config, app *firebase.App, zl *zap.Logger) (push.Transport, error) {
	switch cfg.PushBackend {
	case config.PushFCM:
		client, err := app.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("FCMクライアントの作成に失敗: %w", err)
		}
		zl.Info("FCMで通知を送信します", zap.String("channel_id", cfg.AndroidChannelID))
		return push.NewFCMTransport(client, cfg.AndroidChannelID), nil
	case config.PushLog:
		zl.Info("通知はログに出力します（送信しません）")
		return push.NewLogTransport(zl), nil
	default:
		return nil, errors.New("不明なプッシュ送信方法: " + cfg.PushBackend)
	}
}
