// Package config は通知サービスの設定を環境変数から読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ストアのバックエンド。
const (
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
)

// プッシュ通知のバックエンド。
const (
	PushLog = "log"
	PushFCM = "fcm"
)

// Config は通知サービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// LogLevel はログレベル（debug, info, warn, error）。
	LogLevel string
	// StoreBackend はドキュメントストアの実装（sqlite または firestore）。
	StoreBackend string
	// SQLitePath はsqliteバックエンドのデータベースファイル。
	SQLitePath string
	// PushBackend はプッシュ通知の送信方法（log または fcm）。
	PushBackend string
	// FirebaseCredentialsFile はFirebaseサービスアカウントのJSONファイル。
	FirebaseCredentialsFile string
	// FirebaseProjectID はFirebaseのプロジェクトID。空ならクレデンシャルから決まる。
	FirebaseProjectID string
	// AndroidChannelID はAndroid通知チャンネルのID。
	AndroidChannelID string
	// FanoutConcurrency は配達員への一斉通知の同時実行数。
	FanoutConcurrency int
	// NewPackageMulticast が真の場合、新規荷物通知を1回のマルチキャストで送信する。
	NewPackageMulticast bool
	// JWTSecret は通知履歴APIのJWT検証に使うシークレット。
	JWTSecret string
	// CORSAllowedOrigins はCORSで許可するオリジン。"*" は全許可。
	CORSAllowedOrigins []string
	// HistoryDefaultLimit は通知履歴APIのデフォルト取得件数。
	HistoryDefaultLimit int
}

// Load は .env ファイル（存在する場合）と環境変数から設定を読み込む。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}

	var parseErrs []error
	cfg := &Config{
		Port:                    getString("PORT", "8080"),
		LogLevel:                getString("LOG_LEVEL", "info"),
		StoreBackend:            strings.ToLower(getString("STORE_BACKEND", StoreSQLite)),
		SQLitePath:              getString("SQLITE_PATH", "paqueteria.db"),
		PushBackend:             strings.ToLower(getString("PUSH_BACKEND", PushLog)),
		FirebaseCredentialsFile: getString("FIREBASE_CREDENTIALS_FILE", "firebase-service-account.json"),
		FirebaseProjectID:       getString("FIREBASE_PROJECT_ID", ""),
		AndroidChannelID:        getString("ANDROID_CHANNEL_ID", "paqueteria_channel"),
		FanoutConcurrency:       getInt("FANOUT_CONCURRENCY", 8, &parseErrs),
		NewPackageMulticast:     getBool("NEW_PACKAGE_MULTICAST", false, &parseErrs),
		JWTSecret:               getString("JWT_SECRET", "dev-secret-key"),
		CORSAllowedOrigins:      parseList(getString("CORS_ALLOWED_ORIGINS", "*")),
		HistoryDefaultLimit:     getInt("HISTORY_DEFAULT_LIMIT", 50, &parseErrs),
	}

	if err := cfg.validate(parseErrs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UsesFirebase はFirebase Admin SDKの初期化が必要かどうかを返す。
func (c *Config) UsesFirebase() bool {
	return c.StoreBackend == StoreFirestore || c.PushBackend == PushFCM
}

// validate は設定値を検証する。parseErrs は環境変数の変換で発生したエラー。
func (c *Config) validate(parseErrs ...error) error {
	errs := slices.Clone(parseErrs)
	switch c.StoreBackend {
	case StoreSQLite, StoreFirestore:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND が不正: %q", c.StoreBackend))
	}
	switch c.PushBackend {
	case PushLog, PushFCM:
	default:
		errs = append(errs, fmt.Errorf("PUSH_BACKEND が不正: %q", c.PushBackend))
	}
	if c.FanoutConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FANOUT_CONCURRENCY は1以上: %d", c.FanoutConcurrency))
	}
	if c.HistoryDefaultLimit < 1 {
		errs = append(errs, fmt.Errorf("HISTORY_DEFAULT_LIMIT は1以上: %d", c.HistoryDefaultLimit))
	}
	return errors.Join(errs...)
}

func parseList(csv string) []string {
	var out []string
	for _, v := range strings.Split(csv, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getInt は整数の環境変数を読む。未設定なら def を返し、変換できない値は errs に追加する。
func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s は整数で指定: %q", key, v))
		return def
	}
	return n
}

// getBool は真偽値の環境変数を読む。未設定なら def を返し、変換できない値は errs に追加する。
func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s は真偽値で指定: %q", key, v))
		return def
	}
	return b
}
