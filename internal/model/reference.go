package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BasePath はAPIのベースパス。
const BasePath = "/core/v1"

// Rating は承認済みアセスメントに付与される格付けを表す。
type Rating struct {
	ID          int64
	Name        string
	Rate        decimal.Decimal // 年利（%）
	Description string
}

// Info はAPI向けの格付けビューを返す。
func (r *Rating) Info() RatingInfo {
	return RatingInfo{
		ID:          r.ID,
		Name:        r.Name,
		Rate:        r.Rate.StringFixed(2),
		Description: r.Description,
	}
}

// Country は国マスタを表す。
type Country struct {
	ID   int64
	Code string
	Name string
}

// BankConnection はユーザーに紐づく銀行口座の接続情報を表す。
type BankConnection struct {
	ID          int64
	Reference   uuid.UUID
	UserID      int64
	Institution string
	Transit     string
	Account     string
	Created     time.Time
}

// Info はAPI向けのビューを返す。口座番号は末尾4桁以外をマスクする。
func (b *BankConnection) Info() BankConnectionInfo {
	return BankConnectionInfo{
		Reference:   b.Reference.String(),
		Institution: b.Institution,
		Transit:     b.Transit,
		Account:     maskAccount(b.Account),
	}
}

func maskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	masked := make([]byte, len(account))
	for i := range masked {
		if i < len(account)-4 {
			masked[i] = '*'
		} else {
			masked[i] = account[i]
		}
	}
	return string(masked)
}

// AssessmentFile はアセスメントに添付されたファイル（ストレージ上のblob）を表す。
type AssessmentFile struct {
	ID           int64
	AssessmentID int64
	BlobKey      string
	FileName     string
	ContentType  string
	Size         int64
	Uploaded     time.Time
}

// Matches は同一のblobを指しているかを返す。
func (f *AssessmentFile) Matches(other *AssessmentFile) bool {
	return other != nil && f.BlobKey == other.BlobKey
}

// APIModel はAPI向けのファイルビューを返す。
func (f *AssessmentFile) APIModel() AssessmentFileInfo {
	return AssessmentFileInfo{
		FileName:    f.FileName,
		ContentType: f.ContentType,
		Size:        f.Size,
		Uploaded:    f.Uploaded,
	}
}
