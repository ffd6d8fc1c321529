package model

import (
	"time"

	"github.com/google/uuid"
)

// UserType はユーザー種別を表す。値はusers.typeおよび子テーブルのtypeカラムに保存される。
type UserType int

const (
	// UserTypeBorrower は借り手。
	UserTypeBorrower UserType = 1
	// UserTypeInvestor は投資家。
	UserTypeInvestor UserType = 2
)

// String はユーザー種別名を返す。
func (t UserType) String() string {
	switch t {
	case UserTypeBorrower:
		return "borrower"
	case UserTypeInvestor:
		return "investor"
	default:
		return "unknown"
	}
}

// PathSegment はURLパス上のコレクション名（borrowers / investors）を返す。
func (t UserType) PathSegment() string {
	return t.String() + "s"
}

// ParseUserType はURLパスのコレクション名からユーザー種別を解析する。
func ParseUserType(segment string) (UserType, bool) {
	switch segment {
	case "borrowers":
		return UserTypeBorrower, true
	case "investors":
		return UserTypeInvestor, true
	default:
		return 0, false
	}
}

// User は借り手・投資家に共通するユーザー情報（usersテーブル）と、
// 種別ごとの詳細（borrowers / investorsテーブル）を保持する。
// BorrowerとInvestorはTypeに応じてどちらか一方のみ非nilとなる。
type User struct {
	ID           int64
	Type         UserType
	PasswordHash string
	PasswordDate time.Time
	Name         string
	Enabled      bool
	Flags        int
	Address1     string
	Address2     *string
	Address3     *string
	City         string
	Province     *string
	PostCode     *string
	CountryID    int64
	Created      time.Time

	Borrower *BorrowerDetails
	Investor *InvestorDetails

	// BankConnections はFetchConnectedInfoで取得されるまでnil。
	BankConnections []BankConnection
}

// BorrowerDetails は借り手固有の情報（borrowersテーブル）。
type BorrowerDetails struct {
	Reference uuid.UUID
	Email     string
	Phone     *string
	Employer  *string
	JobTitle  *string
}

// InvestorDetails は投資家固有の情報（investorsテーブル）。
type InvestorDetails struct {
	Reference uuid.UUID
	Email     string
}

// NewUser は新規登録用のユーザーを生成する。リファレンスUUIDはここで採番される。
func NewUser(t UserType, name, email, passwordHash string, countryID int64) *User {
	u := &User{
		Type:         t,
		PasswordHash: passwordHash,
		PasswordDate: time.Now(),
		Name:         name,
		Enabled:      true,
		CountryID:    countryID,
	}
	switch t {
	case UserTypeBorrower:
		u.Borrower = &BorrowerDetails{Reference: uuid.New(), Email: email}
	case UserTypeInvestor:
		u.Investor = &InvestorDetails{Reference: uuid.New(), Email: email}
	}
	return u
}

// Reference はユーザーの外部公開用UUIDを返す。
func (u *User) Reference() uuid.UUID {
	switch {
	case u.Borrower != nil:
		return u.Borrower.Reference
	case u.Investor != nil:
		return u.Investor.Reference
	default:
		return uuid.Nil
	}
}

// Email はログインに使うメールアドレスを返す。
func (u *User) Email() string {
	switch {
	case u.Borrower != nil:
		return u.Borrower.Email
	case u.Investor != nil:
		return u.Investor.Email
	default:
		return ""
	}
}

// Matches は種別とリファレンスUUID文字列がこのユーザーと一致するかを返す。
func (u *User) Matches(t UserType, reference string) bool {
	if u.Type != t {
		return false
	}
	ref, err := uuid.Parse(reference)
	if err != nil {
		return false
	}
	return ref == u.Reference()
}

// CanBeCreated は新規登録に必要な項目が揃っているかを返す。
func (u *User) CanBeCreated() bool {
	return u.PasswordHash != "" && u.Name != "" && u.Address1 != "" && u.City != "" &&
		u.CountryID > 0 && (u.Borrower != nil) != (u.Investor != nil)
}

// ApplyEditable はAPIで受け取った編集可能項目をユーザーに反映する。
// 呼び出し前にeditable.Validate()で必須項目を確認すること。
func (u *User) ApplyEditable(editable UserEditable) {
	if editable.Name != nil {
		u.Name = *editable.Name
	}
	if editable.Address1 != nil {
		u.Address1 = *editable.Address1
	}
	if editable.City != nil {
		u.City = *editable.City
	}
	u.Address2 = editable.Address2
	u.Address3 = editable.Address3
	u.Province = editable.Province
	u.PostCode = editable.PostCode

	if u.Borrower != nil {
		u.Borrower.Phone = editable.Phone
		u.Borrower.Employer = editable.Employer
		u.Borrower.JobTitle = editable.JobTitle
	}
}

// Viewable はAPI向けのユーザービューを返す。
// withConnectedInfoがtrueの場合は銀行口座などの接続情報も含める。
func (u *User) Viewable(countryCode string, withConnectedInfo bool) UserViewable {
	v := UserViewable{
		Reference: u.Reference().String(),
		Type:      u.Type.String(),
		Email:     u.Email(),
		Name:      u.Name,
		Address1:  u.Address1,
		Address2:  u.Address2,
		Address3:  u.Address3,
		City:      u.City,
		Province:  u.Province,
		PostCode:  u.PostCode,
		Country:   countryCode,
	}
	if u.Borrower != nil {
		v.Phone = u.Borrower.Phone
		v.Employer = u.Borrower.Employer
		v.JobTitle = u.Borrower.JobTitle
	}
	if withConnectedInfo {
		v.Banks = make([]BankConnectionInfo, 0, len(u.BankConnections))
		for _, b := range u.BankConnections {
			v.Banks = append(v.Banks, b.Info())
		}
	}
	return v
}
