package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別物になるため1接続に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はマイグレーションの適用順と再実行時のスキップを検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_column.up.sql":     {Data: []byte("ALTER TABLE items ADD COLUMN label TEXT;")},
		"migrations/000001_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
		"migrations/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"migrations/README.md":                    {Data: []byte("ignored")},
	}

	t.Run("版番号順に適用されること", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)

		n, err := Run(t.Context(), db, fsys, "migrations", zap.NewNop())
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用件数 = %d, want 2", n)
		}
		if _, err := db.Exec("INSERT INTO items (id, label) VALUES ('a', 'b')"); err != nil {
			t.Errorf("マイグレーション後のテーブルに書き込めない: %v", err)
		}
	})

	t.Run("2回目の実行では何も適用されないこと", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)

		if _, err := Run(t.Context(), db, fsys, "migrations", zap.NewNop()); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		n, err := Run(t.Context(), db, fsys, "migrations", zap.NewNop())
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("適用件数 = %d, want 0", n)
		}
	})

	t.Run("SQLが不正な場合はエラーになり版番号が記録されないこと", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)
		broken := fstest.MapFS{
			"m/000001_broken.up.sql": {Data: []byte("CREATE TABL nope;")},
		}

		if _, err := Run(t.Context(), db, broken, "m", zap.NewNop()); err == nil {
			t.Fatal("不正なSQLでエラーが返らない")
		}
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("記録された版数 = %d, want 0", count)
		}
	})
}
