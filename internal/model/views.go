package model

import "time"

// AssessmentInfo はアセスメント詳細のAPIレスポンス。
type AssessmentInfo struct {
	Reference  string               `json:"reference,omitempty"`
	Registered time.Time            `json:"registered"`
	Updated    time.Time            `json:"updated"`
	Status     int                  `json:"status"`
	StatusName string               `json:"status_name"`
	RatingID   int64                `json:"rating,omitempty"`
	UploadURL  string               `json:"upload_url,omitempty"`
	RatingInfo *RatingInfo          `json:"rating_info,omitempty"`
	Files      []AssessmentFileInfo `json:"files"`
}

// AssessmentSummary はアセスメント一覧のAPIレスポンス要素。
type AssessmentSummary struct {
	Reference  string    `json:"reference"`
	Updated    time.Time `json:"updated"`
	Status     int       `json:"status"`
	StatusName string    `json:"status_name"`
	RatingID   int64     `json:"rating,omitempty"`
}

// AssessmentFileInfo は添付ファイルのAPIレスポンス要素。
type AssessmentFileInfo struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Uploaded    time.Time `json:"uploaded"`
}

// RatingInfo は格付けのAPIレスポンス。
type RatingInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Rate        string `json:"rate"`
	Description string `json:"description,omitempty"`
}

// AmortizationInfo は返済期間テンプレートのAPIレスポンス。
type AmortizationInfo struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Months int     `json:"months"`
	Years  float64 `json:"years"`
}

// BankConnectionInfo は銀行口座接続のAPIレスポンス要素。
type BankConnectionInfo struct {
	Reference   string `json:"reference"`
	Institution string `json:"institution"`
	Transit     string `json:"transit"`
	Account     string `json:"account"`
}

// UserViewable はユーザー情報のAPIレスポンス。
type UserViewable struct {
	Reference string               `json:"reference"`
	Type      string               `json:"type"`
	Email     string               `json:"email"`
	Name      string               `json:"name"`
	Address1  string               `json:"address1"`
	Address2  *string              `json:"address2,omitempty"`
	Address3  *string              `json:"address3,omitempty"`
	City      string               `json:"city"`
	Province  *string              `json:"province,omitempty"`
	PostCode  *string              `json:"post_code,omitempty"`
	Country   string               `json:"country,omitempty"`
	Phone     *string              `json:"phone,omitempty"`
	Employer  *string              `json:"employer,omitempty"`
	JobTitle  *string              `json:"job_title,omitempty"`
	Banks     []BankConnectionInfo `json:"banks,omitempty"`
}

// UserEditable はプロフィール更新リクエストのボディ。
// nilのオプション項目はNULLとして保存される。
type UserEditable struct {
	Name     *string `json:"name"`
	Address1 *string `json:"address1"`
	Address2 *string `json:"address2"`
	Address3 *string `json:"address3"`
	City     *string `json:"city"`
	Province *string `json:"province"`
	PostCode *string `json:"post_code"`
	Phone    *string `json:"phone"`
	Employer *string `json:"employer"`
	JobTitle *string `json:"job_title"`
}

// Validate は必須項目（name, address1, city）が揃っているかを検証する。
func (e UserEditable) Validate() error {
	if e.Name == nil || *e.Name == "" || e.Address1 == nil || e.City == nil {
		return NewInvalidProfileError()
	}
	return nil
}
