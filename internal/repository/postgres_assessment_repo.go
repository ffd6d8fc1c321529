package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/gncompass/serverfront/internal/database"
	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/sqlb"
)

// PostgresAssessmentRepo はPostgreSQLを使用したアセスメントリポジトリ。
// 各メソッドは接続を1本だけ取得し、戻る前に必ず返却する。
type PostgresAssessmentRepo struct {
	pgBase
}

// NewPostgresAssessmentRepo はPostgresAssessmentRepoを生成する。
func NewPostgresAssessmentRepo(db *sql.DB, opts ...Option) *PostgresAssessmentRepo {
	return &PostgresAssessmentRepo{pgBase: newBase(db, opts)}
}

// selectAssessments は標準の射影と格付けのLEFT JOINを持つベースクエリを返す。
func selectAssessments() sqlb.SelectBuilder {
	return sqlb.Select(tableAssessments.Name()).
		Column(tableAssessments.Columns("id", "reference", "borrower", "registered", "updated", "status", "rating")...).
		Column(tableRatings.Columns("id", "name", "rate", "description")...).
		LeftJoin(tableRatings.Name(), sqlb.ColEq(tableRatings.Column("id"), tableAssessments.Column("rating")))
}

// buildSelect は借り手IDとリファレンスで絞り込んだクエリを返す。
// borrowerIDが0かつreferenceがnilの場合はErrAssessmentFilterRequiredを返す。
func buildSelect(borrowerID int64, reference *uuid.UUID) (sqlb.SelectBuilder, error) {
	if borrowerID == 0 && reference == nil {
		return sqlb.SelectBuilder{}, ErrAssessmentFilterRequired
	}

	q := selectAssessments()
	if borrowerID != 0 {
		q = q.Where(sqlb.Eq(tableAssessments.Column("borrower"), borrowerID))
	}
	if reference != nil {
		q = q.Where(sqlb.Eq(tableAssessments.Column("reference"), reference[:]))
	}
	return q, nil
}

// scanAssessment はselectAssessmentsの射影で取得した1行をAssessmentに変換する。
// 格付けは承認済みの場合のみ保持し、それ以外の状態では結合結果を破棄する。
func scanAssessment(row rowScanner) (*model.Assessment, error) {
	var (
		a          model.Assessment
		reference  []byte
		status     int
		ratingRef  sql.NullInt64
		ratingID   sql.NullInt64
		ratingName sql.NullString
		ratingRate decimal.NullDecimal
		ratingDesc sql.NullString
	)
	if err := row.Scan(
		&a.ID, &reference, &a.BorrowerID, &a.Registered, &a.Updated, &status, &ratingRef,
		&ratingID, &ratingName, &ratingRate, &ratingDesc,
	); err != nil {
		return nil, err
	}

	ref, err := uuid.FromBytes(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid assessment reference: %w", err)
	}
	a.Reference = ref
	a.Status = model.AssessmentStatus(status)
	a.Files = []model.AssessmentFile{}

	if a.Status != model.AssessmentApproved {
		return &a, nil
	}
	if !ratingID.Valid {
		return nil, fmt.Errorf("assessment %d: %w", a.ID, ErrRatingInconsistent)
	}
	a.RatingID = ratingID.Int64
	a.Rating = &model.Rating{
		ID:          ratingID.Int64,
		Name:        ratingName.String,
		Rate:        ratingRate.Decimal,
		Description: ratingDesc.String,
	}
	return &a, nil
}

func queryAssessment(ctx context.Context, q querier, stmt sqlb.SelectBuilder) (*model.Assessment, error) {
	row, err := queryRow(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func queryAssessments(ctx context.Context, q querier, stmt sqlb.SelectBuilder) ([]*model.Assessment, error) {
	rows, err := queryRows(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func selectFiles(assessmentID int64) sqlb.SelectBuilder {
	return sqlb.Select(tableAssessmentFiles.Name()).
		Column(tableAssessmentFiles.Columns("id", "assessment", "blob_key", "file_name", "content_type", "size", "uploaded")...).
		Where(sqlb.Eq(tableAssessmentFiles.Column("assessment"), assessmentID)).
		OrderBy(tableAssessmentFiles.Column("id"), true)
}

func scanFile(row rowScanner) (model.AssessmentFile, error) {
	var f model.AssessmentFile
	err := row.Scan(&f.ID, &f.AssessmentID, &f.BlobKey, &f.FileName, &f.ContentType, &f.Size, &f.Uploaded)
	return f, err
}

// loadFiles は添付ファイル一覧を読み込んでaに設定する。
func loadFiles(ctx context.Context, q querier, a *model.Assessment) error {
	rows, err := queryRows(ctx, q, selectFiles(a.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	files := []model.AssessmentFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	a.Files = files
	return nil
}

// Create は借り手に新しいアセスメントを作成し、同一接続で再取得した結果を返す。
// 再取得で行が見つからない場合はnilを返す。
func (r *PostgresAssessmentRepo) Create(ctx context.Context, borrowerID int64) (*model.Assessment, error) {
	ref := uuid.New()
	ins := sqlb.Insert(tableAssessments.Name()).
		SetValue("reference", ref[:]).
		SetValue("borrower", borrowerID).
		SetValue("status", int(model.AssessmentStarted)).
		Set("registered", "NOW()").
		Set("updated", "NOW()")

	var created *model.Assessment
	err := r.withConn(ctx, "assessment.create", func(conn *sql.Conn) error {
		if _, err := execQuery(ctx, conn, ins); err != nil {
			return err
		}
		a, err := queryAssessment(ctx, conn, selectAssessments().Where(whereLastInserted(tableAssessments)))
		created = a
		return err
	})
	if err != nil {
		return nil, wrap("アセスメントの作成", err)
	}
	return created, nil
}

// FindByReference はリファレンスでアセスメントを取得する。添付ファイルも読み込む。
// borrowerIDが0の場合は所有者で絞り込まない。見つからない場合はnilを返す。
func (r *PostgresAssessmentRepo) FindByReference(ctx context.Context, borrowerID int64, reference uuid.UUID) (*model.Assessment, error) {
	q, err := buildSelect(borrowerID, &reference)
	if err != nil {
		return nil, err
	}

	var found *model.Assessment
	err = r.withConn(ctx, "assessment.find_by_reference", func(conn *sql.Conn) error {
		a, err := queryAssessment(ctx, conn, q)
		if err != nil || a == nil {
			return err
		}
		found = a
		return loadFiles(ctx, conn, a)
	})
	if err != nil {
		return nil, wrap("リファレンスによるアセスメントの検索", err)
	}
	return found, nil
}

// ListByBorrower は借り手のアセスメントを新しい順に返す。添付ファイルは読み込まない。
func (r *PostgresAssessmentRepo) ListByBorrower(ctx context.Context, borrowerID int64) ([]*model.Assessment, error) {
	q, err := buildSelect(borrowerID, nil)
	if err != nil {
		return nil, err
	}
	q = q.OrderBy(tableAssessments.Column("id"), false)

	var list []*model.Assessment
	err = r.withConn(ctx, "assessment.list_by_borrower", func(conn *sql.Conn) error {
		var err error
		list, err = queryAssessments(ctx, conn, q)
		return err
	})
	if err != nil {
		return nil, wrap("アセスメント一覧の取得", err)
	}
	return list, nil
}

// FindLastApproved は借り手の最新の承認済みアセスメントを返す。見つからない場合はnilを返す。
func (r *PostgresAssessmentRepo) FindLastApproved(ctx context.Context, borrowerID int64) (*model.Assessment, error) {
	q, err := buildSelect(borrowerID, nil)
	if err != nil {
		return nil, err
	}
	q = q.Where(sqlb.Eq(tableAssessments.Column("status"), int(model.AssessmentApproved))).
		OrderBy(tableAssessments.Column("id"), false).
		Limit(1)

	var found *model.Assessment
	err = r.withConn(ctx, "assessment.find_last_approved", func(conn *sql.Conn) error {
		a, err := queryAssessment(ctx, conn, q)
		if err != nil || a == nil {
			return err
		}
		found = a
		return loadFiles(ctx, conn, a)
	})
	if err != nil {
		return nil, wrap("最新の承認済みアセスメントの取得", err)
	}
	return found, nil
}

// selectPending は審査待ちを古い順に取得するクエリ。
// excludeはLIMITより前に除外するため、除外対象が先頭を占めても後続の行が返る。
func selectPending(limit int, exclude []int64) sqlb.SelectBuilder {
	q := selectAssessments().
		Where(sqlb.Eq(tableAssessments.Column("status"), int(model.AssessmentPending)))
	if len(exclude) > 0 {
		q = q.Where(sqlb.Expression("NOT ("+tableAssessments.Column("id")+" = ANY(?))", pq.Array(exclude)))
	}
	return q.OrderBy(tableAssessments.Column("updated"), true).Limit(limit)
}

// ListPending は審査待ちのアセスメントを古い順に最大limit件返す。審査ワーカーが使う。
// バックオフ中などでexcludeに含まれるIDは取得対象から外す。
func (r *PostgresAssessmentRepo) ListPending(ctx context.Context, limit int, exclude []int64) ([]*model.Assessment, error) {
	q := selectPending(limit, exclude)

	var list []*model.Assessment
	err := r.withConn(ctx, "assessment.list_pending", func(conn *sql.Conn) error {
		var err error
		list, err = queryAssessments(ctx, conn, q)
		return err
	})
	if err != nil {
		return nil, wrap("審査待ちアセスメントの取得", err)
	}
	return list, nil
}

// Submit はアセスメントを審査待ちに遷移させる。
// 提出条件を満たさない場合、またはDB上で既に開始状態でない場合はfalseを返し何も変更しない。
func (r *PostgresAssessmentRepo) Submit(ctx context.Context, a *model.Assessment) (bool, error) {
	if !a.CanBeSubmitted() {
		return false, nil
	}

	upd := sqlb.Update(tableAssessments.Name()).
		SetValue("status", int(model.AssessmentPending)).
		Set(sqlb.Raw("updated = NOW()")).
		Where(sqlb.Eq("id", a.ID)).
		Where(sqlb.Eq("status", int(model.AssessmentStarted))).
		Returning("updated")

	var (
		updated time.Time
		ok      bool
	)
	err := r.withConn(ctx, "assessment.submit", func(conn *sql.Conn) error {
		row, err := queryRow(ctx, conn, upd)
		if err != nil {
			return err
		}
		err = row.Scan(&updated)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		ok = err == nil
		return err
	})
	if err != nil {
		return false, wrap("アセスメントの提出", err)
	}
	if ok {
		a.Status = model.AssessmentPending
		a.Updated = updated
	}
	return ok, nil
}

// ApplyOutcome は審査待ちのアセスメントに審査結果を適用する。
// 承認の場合は格付けを設定し、却下の場合は格付けを外す。審査待ちでない場合はfalseを返す。
func (r *PostgresAssessmentRepo) ApplyOutcome(ctx context.Context, a *model.Assessment, outcome model.ReviewOutcome) (bool, error) {
	if !a.CanBeReviewed() || !outcome.Valid() {
		return false, nil
	}

	var rating any
	if outcome.Status == model.AssessmentApproved {
		rating = outcome.RatingID
	}
	upd := sqlb.Update(tableAssessments.Name()).
		SetValue("status", int(outcome.Status)).
		SetValue("rating", rating).
		Set(sqlb.Raw("updated = NOW()")).
		Where(sqlb.Eq("id", a.ID)).
		Where(sqlb.Eq("status", int(model.AssessmentPending))).
		Returning("updated")

	var (
		updated time.Time
		fresh   *model.Assessment
	)
	err := r.withConn(ctx, "assessment.apply_outcome", func(conn *sql.Conn) error {
		row, err := queryRow(ctx, conn, upd)
		if err != nil {
			return err
		}
		if err := row.Scan(&updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		fresh, err = queryAssessment(ctx, conn, selectAssessments().Where(sqlb.Eq(tableAssessments.Column("id"), a.ID)))
		return err
	})
	if err != nil {
		return false, wrap("審査結果の適用", err)
	}
	if fresh == nil {
		return false, nil
	}

	a.Status = fresh.Status
	a.Updated = fresh.Updated
	a.RatingID = fresh.RatingID
	a.Rating = fresh.Rating
	return true, nil
}

// touchUploadable は開始状態のままの行だけupdatedを更新する。
// 同一トランザクション内で行ロックを取り、並行する提出を後ろに直列化する。
func touchUploadable(id int64) sqlb.UpdateBuilder {
	return sqlb.Update(tableAssessments.Name()).
		Set(sqlb.Raw("updated = NOW()")).
		Where(sqlb.Eq("id", id)).
		Where(sqlb.Eq("status", int(model.AssessmentStarted)))
}

// AddFile は開始状態のアセスメントにファイルを添付し、再取得した行をa.Filesに追加する。
// DB上でアップロードを受け付けない状態になっていた場合は何も挿入せずfalseを返す。
func (r *PostgresAssessmentRepo) AddFile(ctx context.Context, a *model.Assessment, file *model.AssessmentFile) (bool, error) {
	if !a.CanUpload() {
		return false, nil
	}

	ins := sqlb.Insert(tableAssessmentFiles.Name()).
		SetValue("assessment", a.ID).
		SetValue("blob_key", file.BlobKey).
		SetValue("file_name", file.FileName).
		SetValue("content_type", file.ContentType).
		SetValue("size", file.Size).
		Set("uploaded", "NOW()")

	var stored *model.AssessmentFile
	err := r.withConn(ctx, "assessment.add_file", func(conn *sql.Conn) error {
		return database.WithTx(ctx, conn, func(tx *sql.Tx) error {
			result, err := execQuery(ctx, tx, touchUploadable(a.ID))
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
			if _, err := execQuery(ctx, tx, ins); err != nil {
				return err
			}
			row, err := queryRow(ctx, tx, selectFiles(a.ID).Where(whereLastInserted(tableAssessmentFiles)))
			if err != nil {
				return err
			}
			f, err := scanFile(row)
			if err != nil {
				return err
			}
			stored = &f
			return nil
		})
	})
	if err != nil {
		return false, wrap("アセスメントファイルの添付", err)
	}
	if stored == nil {
		return false, nil
	}

	*file = *stored
	a.Files = append(a.Files, *stored)
	return true, nil
}

// DeleteAbandoned はolderThanより前に作成され、ファイルが1件も添付されていない
// 開始状態のアセスメントを削除し、削除件数を返す。
func (r *PostgresAssessmentRepo) DeleteAbandoned(ctx context.Context, olderThan time.Time) (int, error) {
	del := sqlb.Delete(tableAssessments.Name()).
		Where(sqlb.Eq(tableAssessments.Column("status"), int(model.AssessmentStarted))).
		Where(sqlb.Op(tableAssessments.Column("registered"), "<", olderThan)).
		Where(sqlb.Raw("NOT EXISTS (SELECT 1 FROM " + tableAssessmentFiles.Name() +
			" WHERE " + tableAssessmentFiles.Column("assessment") + " = " + tableAssessments.Column("id") + ")"))

	var deleted int64
	err := r.withConn(ctx, "assessment.delete_abandoned", func(conn *sql.Conn) error {
		result, err := execQuery(ctx, conn, del)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, wrap("放棄されたアセスメントの削除", err)
	}
	return int(deleted), nil
}

// compile-time interface check
var _ AssessmentRepository = (*PostgresAssessmentRepo)(nil)
