package model

// MonthsPerYear は1年の月数。
const MonthsPerYear = 12

// LoanAmortization はローンの返済期間テンプレートを表す。
type LoanAmortization struct {
	ID     int64
	Name   string
	Months int
}

// TotalYears は返済期間の年数を返す。6ヶ月なら0.5のように端数を含む。
func (l *LoanAmortization) TotalYears() float64 {
	if l.Months > 0 {
		return float64(l.Months) / MonthsPerYear
	}
	return 0
}

// APIModel はAPI向けのビューを返す。
func (l *LoanAmortization) APIModel() AmortizationInfo {
	return AmortizationInfo{
		ID:     l.ID,
		Name:   l.Name,
		Months: l.Months,
		Years:  l.TotalYears(),
	}
}
