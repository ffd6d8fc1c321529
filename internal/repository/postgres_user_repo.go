package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gncompass/serverfront/internal/database"
	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/sqlb"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// 借り手・投資家は子テーブルを親テーブルusersに(id, type)で結合して扱う。
type PostgresUserRepo struct {
	pgBase
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB, opts ...Option) *PostgresUserRepo {
	return &PostgresUserRepo{pgBase: newBase(db, opts)}
}

var parentUserKeys = []string{
	"id", "type", "password_hash", "password_date", "name", "enabled", "flags",
	"address1", "address2", "address3", "city", "province", "post_code", "country", "created",
}

func hierarchyFor(t model.UserType) (Hierarchy, error) {
	switch t {
	case model.UserTypeBorrower:
		return borrowerHierarchy, nil
	case model.UserTypeInvestor:
		return investorHierarchy, nil
	default:
		return Hierarchy{}, fmt.Errorf("unknown user type %d", t)
	}
}

func childUserKeys(t model.UserType) []string {
	if t == model.UserTypeBorrower {
		return []string{"reference", "email", "phone", "employer", "job_title"}
	}
	return []string{"reference", "email"}
}

// selectUsers は子テーブルを起点に親テーブルを結合したベースクエリを返す。
func selectUsers(t model.UserType) (sqlb.SelectBuilder, error) {
	h, err := hierarchyFor(t)
	if err != nil {
		return sqlb.SelectBuilder{}, err
	}
	return sqlb.Select(h.Table()).
		Column(h.Parent.Columns(parentUserKeys...)...).
		Column(h.Child.Columns(childUserKeys(t)...)...).
		Join(h.TableParent(), h.JoinOn()), nil
}

// scanUser はselectUsersの射影で取得した1行をUserに変換する。
func scanUser(row rowScanner, t model.UserType) (*model.User, error) {
	var (
		u         model.User
		userType  int
		address2  sql.NullString
		address3  sql.NullString
		province  sql.NullString
		postCode  sql.NullString
		reference []byte
		email     string
		phone     sql.NullString
		employer  sql.NullString
		jobTitle  sql.NullString
	)
	dest := []any{
		&u.ID, &userType, &u.PasswordHash, &u.PasswordDate, &u.Name, &u.Enabled, &u.Flags,
		&u.Address1, &address2, &address3, &u.City, &province, &postCode, &u.CountryID, &u.Created,
		&reference, &email,
	}
	if t == model.UserTypeBorrower {
		dest = append(dest, &phone, &employer, &jobTitle)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	ref, err := uuid.FromBytes(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid user reference: %w", err)
	}

	u.Type = model.UserType(userType)
	u.Address2 = stringPtr(address2)
	u.Address3 = stringPtr(address3)
	u.Province = stringPtr(province)
	u.PostCode = stringPtr(postCode)

	switch t {
	case model.UserTypeBorrower:
		u.Borrower = &model.BorrowerDetails{
			Reference: ref,
			Email:     email,
			Phone:     stringPtr(phone),
			Employer:  stringPtr(employer),
			JobTitle:  stringPtr(jobTitle),
		}
	case model.UserTypeInvestor:
		u.Investor = &model.InvestorDetails{Reference: ref, Email: email}
	}
	return &u, nil
}

func queryUser(ctx context.Context, q querier, stmt sqlb.SelectBuilder, t model.UserType) (*model.User, error) {
	row, err := queryRow(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row, t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *PostgresUserRepo) findBy(ctx context.Context, operation string, t model.UserType, key string, value any) (*model.User, error) {
	q, err := selectUsers(t)
	if err != nil {
		return nil, err
	}
	h, _ := hierarchyFor(t)
	q = q.Where(sqlb.Eq(h.Column(key), value))

	var found *model.User
	err = r.withConn(ctx, operation, func(conn *sql.Conn) error {
		var err error
		found, err = queryUser(ctx, conn, q, t)
		return err
	})
	if err != nil {
		return nil, wrap("ユーザーの取得", err)
	}
	return found, nil
}

// FindByReference はリファレンスUUIDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByReference(ctx context.Context, t model.UserType, reference uuid.UUID) (*model.User, error) {
	return r.findBy(ctx, "user.find_by_reference", t, "reference", reference[:])
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, t model.UserType, email string) (*model.User, error) {
	return r.findBy(ctx, "user.find_by_email", t, "email", email)
}

// Create は親テーブルと子テーブルへの挿入を1トランザクションで行い、
// コミット後に同一接続で再取得した内容をuに反映する。
// 必須項目が不足している場合はfalseを返す。メールアドレス重複時はErrDuplicateEmailを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, u *model.User) (bool, error) {
	if !u.CanBeCreated() {
		return false, nil
	}
	h, err := hierarchyFor(u.Type)
	if err != nil {
		return false, err
	}

	parent := sqlb.Insert(h.TableParent()).
		SetValue("type", int(u.Type)).
		SetValue("password_hash", u.PasswordHash).
		SetValue("password_date", u.PasswordDate).
		SetValue("name", u.Name).
		SetValue("enabled", u.Enabled).
		SetValue("flags", u.Flags).
		SetValue("address1", u.Address1).
		SetValue("address2", nullString(u.Address2)).
		SetValue("address3", nullString(u.Address3)).
		SetValue("city", u.City).
		SetValue("province", nullString(u.Province)).
		SetValue("post_code", nullString(u.PostCode)).
		SetValue("country", u.CountryID).
		Set("created", "NOW()")

	ref := u.Reference()
	child := sqlb.Insert(h.Table()).
		Set("id", "lastval()").
		SetValue("type", int(u.Type)).
		SetValue("reference", ref[:]).
		SetValue("email", u.Email())
	if u.Borrower != nil {
		child = child.
			SetValue("phone", nullString(u.Borrower.Phone)).
			SetValue("employer", nullString(u.Borrower.Employer)).
			SetValue("job_title", nullString(u.Borrower.JobTitle))
	}

	reselect, err := selectUsers(u.Type)
	if err != nil {
		return false, err
	}
	reselect = reselect.Where(whereLastInserted(h.Parent))

	var created *model.User
	err = r.withConn(ctx, "user.create", func(conn *sql.Conn) error {
		err := database.WithTx(ctx, conn, func(tx *sql.Tx) error {
			if _, err := execQuery(ctx, tx, parent); err != nil {
				return err
			}
			_, err := execQuery(ctx, tx, child)
			return err
		})
		if err != nil {
			return err
		}
		created, err = queryUser(ctx, conn, reselect, u.Type)
		return err
	})
	if isUniqueViolation(err) {
		return false, ErrDuplicateEmail
	}
	if err != nil {
		return false, wrap("ユーザーの作成", err)
	}
	if created == nil {
		return false, nil
	}

	*u = *created
	return true, nil
}

// UpdateProfile は編集可能項目を保存する。未指定のオプション項目はNULLになる。
// 必須項目（name, address1, city）が空の場合はfalseを返す。
// 親テーブルの更新件数がちょうど1件の場合にtrueを返す。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, u *model.User) (bool, error) {
	if u.Name == "" || u.Address1 == "" || u.City == "" {
		return false, nil
	}
	h, err := hierarchyFor(u.Type)
	if err != nil {
		return false, err
	}

	parent := sqlb.Update(h.TableParent()).
		SetValue("name", u.Name).
		SetValue("address1", u.Address1).
		SetValue("address2", nullString(u.Address2)).
		SetValue("address3", nullString(u.Address3)).
		SetValue("city", u.City).
		SetValue("province", nullString(u.Province)).
		SetValue("post_code", nullString(u.PostCode)).
		Where(sqlb.Eq("id", u.ID)).
		Where(sqlb.Eq("type", int(u.Type)))

	var child *sqlb.UpdateBuilder
	if u.Borrower != nil {
		c := sqlb.Update(h.Table()).
			SetValue("phone", nullString(u.Borrower.Phone)).
			SetValue("employer", nullString(u.Borrower.Employer)).
			SetValue("job_title", nullString(u.Borrower.JobTitle)).
			Where(sqlb.Eq("id", u.ID))
		child = &c
	}

	var updated bool
	err = r.withConn(ctx, "user.update_profile", func(conn *sql.Conn) error {
		return database.WithTx(ctx, conn, func(tx *sql.Tx) error {
			result, err := execQuery(ctx, tx, parent)
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if n != 1 {
				return nil
			}
			if child != nil {
				if _, err := execQuery(ctx, tx, *child); err != nil {
					return err
				}
			}
			updated = true
			return nil
		})
	})
	if err != nil {
		return false, wrap("ユーザープロフィールの更新", err)
	}
	return updated, nil
}

// FetchConnectedInfo はユーザーの銀行口座接続を読み込んでu.BankConnectionsに設定する。
func (r *PostgresUserRepo) FetchConnectedInfo(ctx context.Context, u *model.User) error {
	var banks []model.BankConnection
	err := r.withConn(ctx, "user.fetch_connected_info", func(conn *sql.Conn) error {
		var err error
		banks, err = queryBankConnections(ctx, conn, u.ID)
		return err
	})
	if err != nil {
		return wrap("接続情報の取得", err)
	}
	u.BankConnections = banks
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
