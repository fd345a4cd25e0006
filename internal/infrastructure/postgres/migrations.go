package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/sanosuguru/campus-events/internal/pkg/logger"
)

// migrationsTable はスキーマバージョンを記録するテーブル名
const migrationsTable = "campus_events_migrations"

// RunMigrations は migrationsPath のマイグレーションを最新まで適用する
// 前回の適用が途中で失敗している（dirty）場合は自動では進めない
func RunMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("マイグレーションドライバーの作成に失敗しました: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("マイグレーションの読み込みに失敗しました: %w", err)
	}

	if _, dirty, err := m.Version(); err == nil && dirty {
		return errors.New("スキーマが dirty 状態です。手動で修正してください")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーションの適用に失敗しました: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("スキーマバージョンの取得に失敗しました: %w", err)
	}
	logger.Debug("スキーマバージョン", zap.Uint("version", version))
	return nil
}
