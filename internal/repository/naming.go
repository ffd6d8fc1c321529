package repository

import "github.com/gncompass/serverfront/internal/sqlb"

// Table は物理テーブル名とカラム参照の修飾を扱う。
type Table struct {
	name string
}

// NewTable はnameを物理テーブル名とするTableを返す。
func NewTable(name string) Table {
	return Table{name: name}
}

// Name は物理テーブル名を返す。
func (t Table) Name() string {
	return t.name
}

// Column はテーブル名で修飾したカラム参照（"table.key"）を返す。
func (t Table) Column(key string) string {
	return t.name + "." + key
}

// Columns は複数のカラムを修飾して返す。
func (t Table) Columns(keys ...string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = t.Column(k)
	}
	return out
}

// Hierarchy は共通属性を持つ親テーブルと、種別固有の子テーブルの2階層を表す。
// 子テーブルはIDKeyとTypeKeyの組で親テーブルに結合される。3階層以上は扱わない。
type Hierarchy struct {
	Parent  Table
	Child   Table
	IDKey   string
	TypeKey string
}

// Table は子テーブルの物理テーブル名を返す。
func (h Hierarchy) Table() string {
	return h.Child.Name()
}

// Column は子テーブルで修飾したカラム参照を返す。
func (h Hierarchy) Column(key string) string {
	return h.Child.Column(key)
}

// ColumnParent は親テーブルで修飾したカラム参照を返す。
func (h Hierarchy) ColumnParent(key string) string {
	return h.Parent.Column(key)
}

// TableParent は親テーブルの物理テーブル名を返す。
func (h Hierarchy) TableParent() string {
	return h.Parent.Name()
}

// JoinOn は親子を(id, type)で結合するON条件を返す。
func (h Hierarchy) JoinOn() sqlb.Expr {
	return sqlb.And(
		sqlb.ColEq(h.ColumnParent(h.IDKey), h.Column(h.IDKey)),
		sqlb.ColEq(h.ColumnParent(h.TypeKey), h.Column(h.TypeKey)),
	)
}

var (
	tableAssessments     = NewTable("assessments")
	tableAssessmentFiles = NewTable("assessment_files")
	tableRatings         = NewTable("ratings")
	tableUsers           = NewTable("users")
	tableBorrowers       = NewTable("borrowers")
	tableInvestors       = NewTable("investors")
	tableCountries       = NewTable("countries")
	tableBankConnections = NewTable("bank_connections")
	tableAmortizations   = NewTable("loan_amortizations")

	borrowerHierarchy = Hierarchy{Parent: tableUsers, Child: tableBorrowers, IDKey: "id", TypeKey: "type"}
	investorHierarchy = Hierarchy{Parent: tableUsers, Child: tableInvestors, IDKey: "id", TypeKey: "type"}
)
