package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/gncompass/serverfront/internal/database"
	"github.com/gncompass/serverfront/internal/sqlb"
)

var (
	// ErrAssessmentFilterRequired は借り手IDとリファレンスのどちらも指定せずに
	// アセスメントのクエリを組み立てようとした場合のエラー。I/Oの前に返される。
	ErrAssessmentFilterRequired = errors.New("repository: assessment query requires a borrower or a reference")

	// ErrRatingInconsistent は承認済みアセスメントに格付けが結合されていない行を読み込んだ場合のエラー。
	ErrRatingInconsistent = errors.New("repository: approved assessment has no rating")

	// ErrDuplicateEmail はメールアドレスの一意制約違反。
	ErrDuplicateEmail = errors.New("repository: email already registered")
)

// QueryRecorder はリポジトリ操作のレイテンシを記録する。metrics.Collectorが満たす。
type QueryRecorder interface {
	RecordQueryLatency(operation string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordQueryLatency(string, time.Duration) {}

// Option はPostgresリポジトリの生成オプション。
type Option func(*pgBase)

// WithQueryRecorder はクエリレイテンシの記録先を設定する。
func WithQueryRecorder(rec QueryRecorder) Option {
	return func(b *pgBase) {
		if rec != nil {
			b.rec = rec
		}
	}
}

// pgBase は各Postgresリポジトリが共有する接続プールと記録先。
type pgBase struct {
	db  *sql.DB
	rec QueryRecorder
}

func newBase(db *sql.DB, opts []Option) pgBase {
	b := pgBase{db: db, rec: nopRecorder{}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// withConn は1操作分の接続を取得してfnを実行し、所要時間をoperation名で記録する。
func (b pgBase) withConn(ctx context.Context, operation string, fn func(conn *sql.Conn) error) error {
	start := time.Now()
	defer func() { b.rec.RecordQueryLatency(operation, time.Since(start)) }()

	return database.WithConn(ctx, b.db, fn)
}

// querier は*sql.Connと*sql.Txに共通するクエリ実行メソッド。
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner は*sql.Rowと*sql.Rowsに共通するScan。
type rowScanner interface {
	Scan(dest ...any) error
}

func execQuery(ctx context.Context, q querier, stmt sqlb.Query) (sql.Result, error) {
	query, args, err := stmt.Build()
	if err != nil {
		return nil, err
	}
	return q.ExecContext(ctx, query, args...)
}

func queryRows(ctx context.Context, q querier, stmt sqlb.Query) (*sql.Rows, error) {
	query, args, err := stmt.Build()
	if err != nil {
		return nil, err
	}
	return q.QueryContext(ctx, query, args...)
}

func queryRow(ctx context.Context, q querier, stmt sqlb.Query) (*sql.Row, error) {
	query, args, err := stmt.Build()
	if err != nil {
		return nil, err
	}
	return q.QueryRowContext(ctx, query, args...), nil
}

// whereLastInserted は同一接続で直前にINSERTされた行をシーケンス値で絞り込む条件を返す。
func whereLastInserted(t Table) sqlb.Expr {
	return sqlb.Raw(t.Column("id") + " = lastval()")
}

// isUniqueViolation はPostgreSQLの一意制約違反（23505）かを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// wrap は "<action>に失敗しました" の形でエラーをラップする。
func wrap(action string, err error) error {
	return fmt.Errorf("%sに失敗しました: %w", action, err)
}
