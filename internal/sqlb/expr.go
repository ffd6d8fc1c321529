// Package sqlb はSELECT/INSERT/UPDATE/DELETE文を組み立てるイミュータブルなビルダーを提供する。
//
// 各ビルダーは構築時に対象テーブルを1つだけ持ち、カラム・JOIN・条件などの断片を
// 構造のまま保持する。SQL文字列はBuild()の1回のレンダリングでのみ生成される。
// メソッドはレシーバを変更せず新しい値を返すため、共通のベースクエリを複数箇所で
// 安全に拡張できる。
//
// 値は断片内の "?" マーカーで受け渡し、Build()がPostgreSQLの序数プレースホルダ
// ($1, $2, ...) に振り直して引数スライスと一緒に返す。
package sqlb

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNoColumns はカラム（または代入）が1つもない文をレンダリングしようとした場合のエラー。
	ErrNoColumns = errors.New("sqlb: statement has no columns")

	// ErrUnboundedDelete はWHERE句のないDELETE文をレンダリングしようとした場合のエラー。
	// テーブル全件の無条件削除は許可しない。
	ErrUnboundedDelete = errors.New("sqlb: empty where lists are not permitted for delete statements")

	// ErrArgCount は断片内の "?" の数と引数の数が一致しない場合のエラー。
	ErrArgCount = errors.New("sqlb: placeholder count does not match argument count")
)

// Expr はSQL断片とそのプレースホルダ引数の組。
// SQL内の "?" はArgsの要素と先頭から順に対応する。
type Expr struct {
	SQL  string
	Args []any
}

// Raw は引数を持たないSQL断片を返す。
func Raw(sql string) Expr {
	return Expr{SQL: sql}
}

// Expression は "?" マーカー付きのSQL断片を返す。
func Expression(sql string, args ...any) Expr {
	return Expr{SQL: sql, Args: args}
}

// Eq は "column = ?" 形式の比較を返す。
func Eq(column string, value any) Expr {
	return Expr{SQL: column + " = ?", Args: []any{value}}
}

// Op は任意の比較演算子 "column op ?" を返す。
func Op(column, op string, value any) Expr {
	return Expr{SQL: column + " " + op + " ?", Args: []any{value}}
}

// ColEq はカラム同士の等価比較を返す。JOINのON句で使う。
func ColEq(left, right string) Expr {
	return Raw(left + " = " + right)
}

// And は複数の断片をANDで連結した1つの断片を返す。
// 断片が2つ以上の場合は各断片を括弧で囲み、断片内のORが連結を崩さないようにする。
func And(exprs ...Expr) Expr {
	if len(exprs) == 1 {
		return exprs[0]
	}
	parts := make([]string, 0, len(exprs))
	var args []any
	for _, e := range exprs {
		parts = append(parts, "("+e.SQL+")")
		args = append(args, e.Args...)
	}
	return Expr{SQL: strings.Join(parts, " AND "), Args: args}
}

// Query はレンダリング可能な文を表す。
type Query interface {
	Build() (string, []any, error)
}

// renderer はSQLテキストと引数を蓄積し、"?" を序数プレースホルダに振り直す。
type renderer struct {
	sb   strings.Builder
	args []any
}

func (r *renderer) str(s string) {
	r.sb.WriteString(s)
}

// expr は断片を書き出す。引用符（'...' と "..."）の内側の "?" はリテラルの一部として扱い、
// プレースホルダとは数えない。
func (r *renderer) expr(e Expr) error {
	if countPlaceholders(e.SQL) != len(e.Args) {
		return ErrArgCount
	}
	i := 0
	var quote rune
	for _, c := range e.SQL {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			r.args = append(r.args, e.Args[i])
			i++
			r.sb.WriteByte('$')
			r.sb.WriteString(strconv.Itoa(len(r.args)))
			continue
		}
		r.sb.WriteRune(c)
	}
	return nil
}

// countPlaceholders は引用符の外側にある "?" の数を返す。
// エスケープされた引用符（''）は一度閉じて再び開く扱いになるため、特別な処理は不要。
func countPlaceholders(sql string) int {
	n := 0
	var quote rune
	for _, c := range sql {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
		}
	}
	return n
}

// where は " WHERE " に続けて条件をANDで連結して書き出す。
// 条件が2つ以上の場合は各条件を括弧で囲み、演算子の優先順位に関わらず全条件の論理積になるようにする。
func (r *renderer) where(exprs []Expr) error {
	r.str(" WHERE ")
	if len(exprs) == 1 {
		return r.expr(exprs[0])
	}
	for i, e := range exprs {
		if i > 0 {
			r.str(" AND ")
		}
		r.str("(")
		if err := r.expr(e); err != nil {
			return err
		}
		r.str(")")
	}
	return nil
}

// list はexprsをsepで区切って書き出す。
func (r *renderer) list(exprs []Expr, sep string) error {
	for i, e := range exprs {
		if i > 0 {
			r.str(sep)
		}
		if err := r.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) result() (string, []any, error) {
	return r.sb.String(), r.args, nil
}

// appendClone はsの複製にvを追加したスライスを返す。
// 元のスライスのバッキング配列は共有しない。
func appendClone[T any](s []T, v ...T) []T {
	out := make([]T, 0, len(s)+len(v))
	out = append(out, s...)
	return append(out, v...)
}

// stringOf はQueryのレンダリング結果をログ用に文字列化する。
func stringOf(q Query) string {
	sql, _, err := q.Build()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return sql
}
