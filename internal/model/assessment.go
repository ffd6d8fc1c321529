package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus は審査（アセスメント）のライフサイクル状態を表す。
// 値はassessments.statusカラムに保存される整数と一致する。
type AssessmentStatus int

const (
	// AssessmentStarted は作成直後の状態。ファイルのアップロードを受け付ける唯一の状態。
	AssessmentStarted AssessmentStatus = 1
	// AssessmentPending は提出済みで審査待ちの状態。
	AssessmentPending AssessmentStatus = 2
	// AssessmentApproved は承認済みの状態。格付け（Rating）を必ず持つ。
	AssessmentApproved AssessmentStatus = 3
	// AssessmentRejected は却下された状態。
	AssessmentRejected AssessmentStatus = 4
)

// String はステータス名を返す。
func (s AssessmentStatus) String() string {
	switch s {
	case AssessmentStarted:
		return "started"
	case AssessmentPending:
		return "pending"
	case AssessmentApproved:
		return "approved"
	case AssessmentRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MinSubmitFiles は提出に必要な添付ファイルの最小数。
const MinSubmitFiles = 2

// UploadCallbackPath はアップロード完了時にストレージから呼び出されるコールバックのパス接頭辞。
// 末尾にアセスメントのリファレンスUUIDが付与される。
const UploadCallbackPath = BasePath + "/uploads/assessments/"

// Assessment は借り手が提出する融資審査の書類パッケージを表す。
type Assessment struct {
	ID         int64
	Reference  uuid.UUID
	BorrowerID int64
	Registered time.Time
	Updated    time.Time
	Status     AssessmentStatus
	RatingID   int64

	// Rating は承認済み（AssessmentApproved）の場合のみ非nil。
	Rating *Rating
	Files  []AssessmentFile
}

// CanUpload はファイルのアップロードを受け付けられるかを返す。
// 提出前（AssessmentStarted）のみ許可される。
func (a *Assessment) CanUpload() bool {
	return a.Status == AssessmentStarted
}

// CanBeSubmitted は提出の事前条件を満たしているかを返す。
func (a *Assessment) CanBeSubmitted() bool {
	return a.CanUpload() && len(a.Files) >= MinSubmitFiles
}

// CanBeReviewed は審査結果を適用できるかを返す。
func (a *Assessment) CanBeReviewed() bool {
	return a.Status == AssessmentPending
}

// UploadCallback はアップロードURL発行時に渡すコールバックパスを返す。
func (a *Assessment) UploadCallback() string {
	return UploadCallbackPath + a.Reference.String()
}

// FileThatMatches は添付済みファイルの中からfileと同一のものを返す。見つからない場合はnilを返す。
func (a *Assessment) FileThatMatches(file *AssessmentFile) *AssessmentFile {
	for i := range a.Files {
		if a.Files[i].Matches(file) {
			return &a.Files[i]
		}
	}
	return nil
}

// APIInfo はAPI向けの詳細ビューを返す。
// includeReferenceがfalseの場合はリファレンスUUIDを含めない。
// uploadURLはAssessmentStartedの場合のみ出力される。
func (a *Assessment) APIInfo(includeReference bool, uploadURL string) AssessmentInfo {
	info := AssessmentInfo{
		Registered: a.Registered,
		Updated:    a.Updated,
		Status:     int(a.Status),
		StatusName: a.Status.String(),
		RatingID:   a.RatingID,
		Files:      make([]AssessmentFileInfo, 0, len(a.Files)),
	}
	if includeReference {
		info.Reference = a.Reference.String()
	}
	if a.Status == AssessmentStarted {
		info.UploadURL = uploadURL
	}
	if a.Rating != nil {
		r := a.Rating.Info()
		info.RatingInfo = &r
	}
	for _, f := range a.Files {
		info.Files = append(info.Files, f.APIModel())
	}
	return info
}

// APISummary はAPI向けのサマリービューを返す。
func (a *Assessment) APISummary() AssessmentSummary {
	return AssessmentSummary{
		Reference:  a.Reference.String(),
		Updated:    a.Updated,
		Status:     int(a.Status),
		StatusName: a.Status.String(),
		RatingID:   a.RatingID,
	}
}

// ReviewOutcome は審査の判定結果を表す。
// StatusはAssessmentApprovedまたはAssessmentRejectedのいずれか。
type ReviewOutcome struct {
	Status   AssessmentStatus
	RatingID int64
}

// Valid は判定結果が適用可能な組み合わせかを返す。
// 承認には格付けが必須で、却下には格付けを付けない。
func (o ReviewOutcome) Valid() bool {
	switch o.Status {
	case AssessmentApproved:
		return o.RatingID > 0
	case AssessmentRejected:
		return o.RatingID == 0
	default:
		return false
	}
}
