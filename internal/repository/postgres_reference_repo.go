package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/sqlb"
)

// PostgresCountryRepo はPostgreSQLを使用した国マスタリポジトリ。
type PostgresCountryRepo struct {
	pgBase
}

// NewPostgresCountryRepo はPostgresCountryRepoを生成する。
func NewPostgresCountryRepo(db *sql.DB, opts ...Option) *PostgresCountryRepo {
	return &PostgresCountryRepo{pgBase: newBase(db, opts)}
}

func selectCountries() sqlb.SelectBuilder {
	return sqlb.Select(tableCountries.Name()).
		Column(tableCountries.Columns("id", "code", "name")...)
}

func (r *PostgresCountryRepo) findOne(ctx context.Context, operation string, q sqlb.SelectBuilder) (*model.Country, error) {
	var found *model.Country
	err := r.withConn(ctx, operation, func(conn *sql.Conn) error {
		row, err := queryRow(ctx, conn, q)
		if err != nil {
			return err
		}
		var c model.Country
		err = row.Scan(&c.ID, &c.Code, &c.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &c
		return nil
	})
	if err != nil {
		return nil, wrap("国の取得", err)
	}
	return found, nil
}

// FindByID は指定IDの国を取得する。見つからない場合はnilを返す。
func (r *PostgresCountryRepo) FindByID(ctx context.Context, id int64) (*model.Country, error) {
	return r.findOne(ctx, "country.find_by_id", selectCountries().Where(sqlb.Eq(tableCountries.Column("id"), id)))
}

// FindByCode は国コードで国を取得する。見つからない場合はnilを返す。
func (r *PostgresCountryRepo) FindByCode(ctx context.Context, code string) (*model.Country, error) {
	return r.findOne(ctx, "country.find_by_code", selectCountries().Where(sqlb.Eq(tableCountries.Column("code"), code)))
}

// List は全ての国を名前順に返す。
func (r *PostgresCountryRepo) List(ctx context.Context) ([]*model.Country, error) {
	q := selectCountries().OrderBy(tableCountries.Column("name"), true)

	var list []*model.Country
	err := r.withConn(ctx, "country.list", func(conn *sql.Conn) error {
		rows, err := queryRows(ctx, conn, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c model.Country
			if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
				return err
			}
			list = append(list, &c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("国一覧の取得", err)
	}
	return list, nil
}

// PostgresRatingRepo はPostgreSQLを使用した格付けリポジトリ。
type PostgresRatingRepo struct {
	pgBase
}

// NewPostgresRatingRepo はPostgresRatingRepoを生成する。
func NewPostgresRatingRepo(db *sql.DB, opts ...Option) *PostgresRatingRepo {
	return &PostgresRatingRepo{pgBase: newBase(db, opts)}
}

func selectRatings() sqlb.SelectBuilder {
	return sqlb.Select(tableRatings.Name()).
		Column(tableRatings.Columns("id", "name", "rate", "description")...)
}

func scanRating(row rowScanner) (*model.Rating, error) {
	var rt model.Rating
	if err := row.Scan(&rt.ID, &rt.Name, &rt.Rate, &rt.Description); err != nil {
		return nil, err
	}
	return &rt, nil
}

// FindByID は指定IDの格付けを取得する。見つからない場合はnilを返す。
func (r *PostgresRatingRepo) FindByID(ctx context.Context, id int64) (*model.Rating, error) {
	q := selectRatings().Where(sqlb.Eq(tableRatings.Column("id"), id))

	var found *model.Rating
	err := r.withConn(ctx, "rating.find_by_id", func(conn *sql.Conn) error {
		row, err := queryRow(ctx, conn, q)
		if err != nil {
			return err
		}
		found, err = scanRating(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, wrap("格付けの取得", err)
	}
	return found, nil
}

// List は全ての格付けをID順に返す。
func (r *PostgresRatingRepo) List(ctx context.Context) ([]*model.Rating, error) {
	q := selectRatings().OrderBy(tableRatings.Column("id"), true)

	var list []*model.Rating
	err := r.withConn(ctx, "rating.list", func(conn *sql.Conn) error {
		rows, err := queryRows(ctx, conn, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rt, err := scanRating(rows)
			if err != nil {
				return err
			}
			list = append(list, rt)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("格付け一覧の取得", err)
	}
	return list, nil
}

// PostgresBankConnectionRepo はPostgreSQLを使用した銀行口座接続リポジトリ。
type PostgresBankConnectionRepo struct {
	pgBase
}

// NewPostgresBankConnectionRepo はPostgresBankConnectionRepoを生成する。
func NewPostgresBankConnectionRepo(db *sql.DB, opts ...Option) *PostgresBankConnectionRepo {
	return &PostgresBankConnectionRepo{pgBase: newBase(db, opts)}
}

func selectBankConnections() sqlb.SelectBuilder {
	return sqlb.Select(tableBankConnections.Name()).
		Column(tableBankConnections.Columns("id", "reference", "user_id", "institution", "transit", "account", "created")...)
}

func scanBankConnection(row rowScanner) (model.BankConnection, error) {
	var (
		b         model.BankConnection
		reference []byte
	)
	if err := row.Scan(&b.ID, &reference, &b.UserID, &b.Institution, &b.Transit, &b.Account, &b.Created); err != nil {
		return b, err
	}
	ref, err := uuid.FromBytes(reference)
	if err != nil {
		return b, fmt.Errorf("invalid bank connection reference: %w", err)
	}
	b.Reference = ref
	return b, nil
}

// queryBankConnections はユーザーの銀行口座接続を登録順に返す。0件の場合は空スライスを返す。
func queryBankConnections(ctx context.Context, q querier, userID int64) ([]model.BankConnection, error) {
	stmt := selectBankConnections().
		Where(sqlb.Eq(tableBankConnections.Column("user_id"), userID)).
		OrderBy(tableBankConnections.Column("id"), true)

	rows, err := queryRows(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BankConnection{}
	for rows.Next() {
		b, err := scanBankConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByUser はユーザーの銀行口座接続を返す。
func (r *PostgresBankConnectionRepo) ListByUser(ctx context.Context, userID int64) ([]model.BankConnection, error) {
	var list []model.BankConnection
	err := r.withConn(ctx, "bank_connection.list_by_user", func(conn *sql.Conn) error {
		var err error
		list, err = queryBankConnections(ctx, conn, userID)
		return err
	})
	if err != nil {
		return nil, wrap("銀行口座接続の取得", err)
	}
	return list, nil
}

// Create は銀行口座接続を登録し、同一接続で再取得した内容をbに反映する。
func (r *PostgresBankConnectionRepo) Create(ctx context.Context, b *model.BankConnection) (bool, error) {
	if b.UserID == 0 || b.Institution == "" || b.Transit == "" || b.Account == "" {
		return false, nil
	}
	if b.Reference == uuid.Nil {
		b.Reference = uuid.New()
	}

	ins := sqlb.Insert(tableBankConnections.Name()).
		SetValue("reference", b.Reference[:]).
		SetValue("user_id", b.UserID).
		SetValue("institution", b.Institution).
		SetValue("transit", b.Transit).
		SetValue("account", b.Account).
		Set("created", "NOW()")

	var created *model.BankConnection
	err := r.withConn(ctx, "bank_connection.create", func(conn *sql.Conn) error {
		if _, err := execQuery(ctx, conn, ins); err != nil {
			return err
		}
		row, err := queryRow(ctx, conn, selectBankConnections().Where(whereLastInserted(tableBankConnections)))
		if err != nil {
			return err
		}
		c, err := scanBankConnection(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		created = &c
		return nil
	})
	if err != nil {
		return false, wrap("銀行口座接続の作成", err)
	}
	if created == nil {
		return false, nil
	}
	*b = *created
	return true, nil
}

// compile-time interface check
var (
	_ CountryRepository        = (*PostgresCountryRepo)(nil)
	_ RatingRepository         = (*PostgresRatingRepo)(nil)
	_ BankConnectionRepository = (*PostgresBankConnectionRepo)(nil)
)
