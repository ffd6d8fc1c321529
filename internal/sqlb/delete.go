package sqlb

// DeleteBuilder はDELETE文のビルダー。
type DeleteBuilder struct {
	table  string
	wheres []Expr
}

// Delete はtableを対象とするDELETEビルダーを返す。
func Delete(table string) DeleteBuilder {
	return DeleteBuilder{table: table}
}

// Where はWHERE条件を追加する。複数の条件はANDで連結される。
func (b DeleteBuilder) Where(e Expr) DeleteBuilder {
	b.wheres = appendClone(b.wheres, e)
	return b
}

// Build はDELETE文をレンダリングする。
// WHERE条件が1つもない場合はI/Oの前にErrUnboundedDeleteを返す。
func (b DeleteBuilder) Build() (string, []any, error) {
	if len(b.wheres) == 0 {
		return "", nil, ErrUnboundedDelete
	}

	r := &renderer{}
	r.str("DELETE FROM ")
	r.str(b.table)
	if err := r.where(b.wheres); err != nil {
		return "", nil, err
	}

	return r.result()
}

// String はレンダリング結果のSQLを返す。
func (b DeleteBuilder) String() string {
	return stringOf(b)
}
