// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はスキーマ（users/borrowers/investors、assessments、参照データ）の
// マイグレーション用migrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("マイグレーションソースの生成に失敗: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrateインスタンスの生成に失敗: %w", err)
	}
	return m, nil
}

// MigrationStatus は適用済みスキーマのバージョン。
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のバージョンを返す。
// すでに最新の場合もエラーにはならない。
// 前回の適用が途中で失敗していた（dirty）場合は手動での復旧が必要なため、適用せずにエラーを返す。
func RunMigrations(databaseURL string) (status MigrationStatus, err error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	before, err := currentStatus(m)
	if err != nil {
		return MigrationStatus{}, err
	}
	if before.Dirty {
		return before, fmt.Errorf("スキーマがdirty状態です（version %d）", before.Version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}
	return currentStatus(m)
}

// Version は適用済みのスキーマバージョンを返す。未適用の場合はVersion 0。
func Version(databaseURL string) (status MigrationStatus, err error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()
	return currentStatus(m)
}

func currentStatus(m *migrate.Migrate) (MigrationStatus, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("スキーマバージョンの取得に失敗: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}
