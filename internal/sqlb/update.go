package sqlb

import "strings"

// UpdateBuilder はUPDATE文のビルダー。
//
// DeleteBuilderと異なり、WHERE句なしのレンダリングを拒否しない。
// 全行更新が必要な呼び出し側は意図してWhereを省略する。
type UpdateBuilder struct {
	table     string
	sets      []Expr
	wheres    []Expr
	returning []string
}

// Update はtableを対象とするUPDATEビルダーを返す。
func Update(table string) UpdateBuilder {
	return UpdateBuilder{table: table}
}

// Set は代入式（例: "status = 2"、"updated = NOW()"）を追加する。
func (b UpdateBuilder) Set(assignment Expr) UpdateBuilder {
	b.sets = appendClone(b.sets, assignment)
	return b
}

// SetValue は "column = ?" の代入を追加する。
func (b UpdateBuilder) SetValue(column string, value any) UpdateBuilder {
	return b.Set(Eq(column, value))
}

// Where はWHERE条件を追加する。複数の条件はANDで連結される。
func (b UpdateBuilder) Where(e Expr) UpdateBuilder {
	b.wheres = appendClone(b.wheres, e)
	return b
}

// Returning はRETURNING句のカラムを追加する。
func (b UpdateBuilder) Returning(columns ...string) UpdateBuilder {
	b.returning = appendClone(b.returning, columns...)
	return b
}

// Build はUPDATE文をレンダリングする。
func (b UpdateBuilder) Build() (string, []any, error) {
	if len(b.sets) == 0 {
		return "", nil, ErrNoColumns
	}

	r := &renderer{}
	r.str("UPDATE ")
	r.str(b.table)
	r.str(" SET ")
	if err := r.list(b.sets, ", "); err != nil {
		return "", nil, err
	}

	if len(b.wheres) > 0 {
		if err := r.where(b.wheres); err != nil {
			return "", nil, err
		}
	}

	if len(b.returning) > 0 {
		r.str(" RETURNING ")
		r.str(strings.Join(b.returning, ", "))
	}

	return r.result()
}

// String はレンダリング結果のSQLを返す。
func (b UpdateBuilder) String() string {
	return stringOf(b)
}
