package sqlb

import (
	"strconv"
	"strings"
)

type join struct {
	kind  string
	table string
	on    Expr
}

type order struct {
	column    string
	ascending bool
}

// SelectBuilder はSELECT文のビルダー。ゼロ値ではなくSelect()で生成すること。
type SelectBuilder struct {
	table   string
	columns []string
	joins   []join
	wheres  []Expr
	orders  []order
	limit   int
}

// Select はtableを対象とするSELECTビルダーを返す。
func Select(table string) SelectBuilder {
	return SelectBuilder{table: table}
}

// Column は射影カラムを追加する。
func (b SelectBuilder) Column(names ...string) SelectBuilder {
	b.columns = appendClone(b.columns, names...)
	return b
}

// Join はINNER JOINを追加する。
func (b SelectBuilder) Join(table string, on Expr) SelectBuilder {
	b.joins = appendClone(b.joins, join{kind: "JOIN", table: table, on: on})
	return b
}

// LeftJoin はLEFT JOINを追加する。
func (b SelectBuilder) LeftJoin(table string, on Expr) SelectBuilder {
	b.joins = appendClone(b.joins, join{kind: "LEFT JOIN", table: table, on: on})
	return b
}

// Where はWHERE条件を追加する。複数の条件はANDで連結される。
func (b SelectBuilder) Where(e Expr) SelectBuilder {
	b.wheres = appendClone(b.wheres, e)
	return b
}

// OrderBy はORDER BY句のカラムを追加する。
func (b SelectBuilder) OrderBy(column string, ascending bool) SelectBuilder {
	b.orders = appendClone(b.orders, order{column: column, ascending: ascending})
	return b
}

// Limit はLIMIT句を設定する。0以下はLIMITなし。
func (b SelectBuilder) Limit(n int) SelectBuilder {
	b.limit = n
	return b
}

// Build はSELECT文をレンダリングする。
func (b SelectBuilder) Build() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, ErrNoColumns
	}

	r := &renderer{}
	r.str("SELECT ")
	r.str(strings.Join(b.columns, ", "))
	r.str(" FROM ")
	r.str(b.table)

	for _, j := range b.joins {
		r.str(" " + j.kind + " " + j.table + " ON ")
		if err := r.expr(j.on); err != nil {
			return "", nil, err
		}
	}

	if len(b.wheres) > 0 {
		if err := r.where(b.wheres); err != nil {
			return "", nil, err
		}
	}

	if len(b.orders) > 0 {
		parts := make([]string, 0, len(b.orders))
		for _, o := range b.orders {
			dir := "DESC"
			if o.ascending {
				dir = "ASC"
			}
			parts = append(parts, o.column+" "+dir)
		}
		r.str(" ORDER BY ")
		r.str(strings.Join(parts, ", "))
	}

	if b.limit > 0 {
		r.str(" LIMIT ")
		r.str(strconv.Itoa(b.limit))
	}

	return r.result()
}

// String はレンダリング結果のSQLを返す。
func (b SelectBuilder) String() string {
	return stringOf(b)
}
