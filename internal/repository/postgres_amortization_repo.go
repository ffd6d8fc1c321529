package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/sqlb"
)

// PostgresAmortizationRepo はPostgreSQLを使用した返済期間テンプレートリポジトリ。
type PostgresAmortizationRepo struct {
	pgBase
}

// NewPostgresAmortizationRepo はPostgresAmortizationRepoを生成する。
func NewPostgresAmortizationRepo(db *sql.DB, opts ...Option) *PostgresAmortizationRepo {
	return &PostgresAmortizationRepo{pgBase: newBase(db, opts)}
}

func selectAmortizations() sqlb.SelectBuilder {
	return sqlb.Select(tableAmortizations.Name()).
		Column(tableAmortizations.Columns("id", "name", "months")...)
}

func scanAmortization(row rowScanner) (*model.LoanAmortization, error) {
	var l model.LoanAmortization
	if err := row.Scan(&l.ID, &l.Name, &l.Months); err != nil {
		return nil, err
	}
	return &l, nil
}

// FindByID は指定IDの返済期間を取得する。見つからない場合はnilを返す。
func (r *PostgresAmortizationRepo) FindByID(ctx context.Context, id int64) (*model.LoanAmortization, error) {
	q := selectAmortizations().Where(sqlb.Eq(tableAmortizations.Column("id"), id))

	var found *model.LoanAmortization
	err := r.withConn(ctx, "amortization.find_by_id", func(conn *sql.Conn) error {
		row, err := queryRow(ctx, conn, q)
		if err != nil {
			return err
		}
		found, err = scanAmortization(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, wrap("返済期間の取得", err)
	}
	return found, nil
}

// List は全ての返済期間を期間の短い順に返す。
func (r *PostgresAmortizationRepo) List(ctx context.Context) ([]*model.LoanAmortization, error) {
	q := selectAmortizations().OrderBy(tableAmortizations.Column("months"), true)

	var list []*model.LoanAmortization
	err := r.withConn(ctx, "amortization.list", func(conn *sql.Conn) error {
		rows, err := queryRows(ctx, conn, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			l, err := scanAmortization(rows)
			if err != nil {
				return err
			}
			list = append(list, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("返済期間一覧の取得", err)
	}
	return list, nil
}

// compile-time interface check
var _ AmortizationRepository = (*PostgresAmortizationRepo)(nil)
