package sqlb

import "strings"

// InsertBuilder はINSERT文のビルダー。
type InsertBuilder struct {
	table   string
	columns []string
	values  []Expr
}

// Insert はtableを対象とするINSERTビルダーを返す。
func Insert(table string) InsertBuilder {
	return InsertBuilder{table: table}
}

// Set はカラムにSQLリテラル（例: "NOW()"、"1"）をそのまま設定する。
func (b InsertBuilder) Set(column, literal string) InsertBuilder {
	return b.SetExpr(column, Raw(literal))
}

// SetValue はカラムにプレースホルダ経由で値を設定する。
func (b InsertBuilder) SetValue(column string, value any) InsertBuilder {
	return b.SetExpr(column, Expression("?", value))
}

// SetExpr はカラムに任意の断片を設定する。
func (b InsertBuilder) SetExpr(column string, value Expr) InsertBuilder {
	b.columns = appendClone(b.columns, column)
	b.values = appendClone(b.values, value)
	return b
}

// Build はINSERT文をレンダリングする。
func (b InsertBuilder) Build() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, ErrNoColumns
	}

	r := &renderer{}
	r.str("INSERT INTO ")
	r.str(b.table)
	r.str(" (")
	r.str(strings.Join(b.columns, ", "))
	r.str(") VALUES (")
	if err := r.list(b.values, ", "); err != nil {
		return "", nil, err
	}
	r.str(")")

	return r.result()
}

// String はレンダリング結果のSQLを返す。
func (b InsertBuilder) String() string {
	return stringOf(b)
}
