package assessment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gncompass/serverfront/internal/model"
)

// --- モック ---

type mockAssessmentRepo struct {
	createFn           func(ctx context.Context, borrowerID int64) (*model.Assessment, error)
	findByReferenceFn  func(ctx context.Context, borrowerID int64, reference uuid.UUID) (*model.Assessment, error)
	listByBorrowerFn   func(ctx context.Context, borrowerID int64) ([]*model.Assessment, error)
	findLastApprovedFn func(ctx context.Context, borrowerID int64) (*model.Assessment, error)
	listPendingFn      func(ctx context.Context, limit int, exclude []int64) ([]*model.Assessment, error)
	submitFn           func(ctx context.Context, a *model.Assessment) (bool, error)
	applyOutcomeFn     func(ctx context.Context, a *model.Assessment, o model.ReviewOutcome) (bool, error)
	addFileFn          func(ctx context.Context, a *model.Assessment, f *model.AssessmentFile) (bool, error)
}

func (m *mockAssessmentRepo) Create(ctx context.Context, borrowerID int64) (*model.Assessment, error) {
	return m.createFn(ctx, borrowerID)
}
func (m *mockAssessmentRepo) FindByReference(ctx context.Context, borrowerID int64, reference uuid.UUID) (*model.Assessment, error) {
	return m.findByReferenceFn(ctx, borrowerID, reference)
}
func (m *mockAssessmentRepo) ListByBorrower(ctx context.Context, borrowerID int64) ([]*model.Assessment, error) {
	return m.listByBorrowerFn(ctx, borrowerID)
}
func (m *mockAssessmentRepo) FindLastApproved(ctx context.Context, borrowerID int64) (*model.Assessment, error) {
	return m.findLastApprovedFn(ctx, borrowerID)
}
func (m *mockAssessmentRepo) ListPending(ctx context.Context, limit int, exclude []int64) ([]*model.Assessment, error) {
	return m.listPendingFn(ctx, limit, exclude)
}
func (m *mockAssessmentRepo) Submit(ctx context.Context, a *model.Assessment) (bool, error) {
	return m.submitFn(ctx, a)
}
func (m *mockAssessmentRepo) ApplyOutcome(ctx context.Context, a *model.Assessment, o model.ReviewOutcome) (bool, error) {
	return m.applyOutcomeFn(ctx, a, o)
}
func (m *mockAssessmentRepo) AddFile(ctx context.Context, a *model.Assessment, f *model.AssessmentFile) (bool, error) {
	return m.addFileFn(ctx, a, f)
}
func (m *mockAssessmentRepo) DeleteAbandoned(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

type mockUploads struct {
	calls int
}

func (m *mockUploads) UploadURL(reference, callbackPath string) (string, error) {
	m.calls++
	return "https://uploads.example.com/upload/" + reference, nil
}
func (m *mockUploads) VerifyCallback(token, reference, callbackPath string) error {
	return nil
}

type policyFunc func(ctx context.Context, a *model.Assessment) (model.ReviewOutcome, error)

func (f policyFunc) Decide(ctx context.Context, a *model.Assessment) (model.ReviewOutcome, error) {
	return f(ctx, a)
}

type recordingMetrics struct {
	transitions []string
	decisions   []string
}

func (r *recordingMetrics) RecordHTTPStatus(int)                     {}
func (r *recordingMetrics) RecordQueryLatency(string, time.Duration) {}
func (r *recordingMetrics) RecordAbandonedDeleted(int)               {}
func (r *recordingMetrics) RecordAssessmentTransition(status string) {
	r.transitions = append(r.transitions, status)
}
func (r *recordingMetrics) RecordReviewDecision(status string) {
	r.decisions = append(r.decisions, status)
}

func newStarted(files int) *model.Assessment {
	a := &model.Assessment{
		ID:         1,
		Reference:  uuid.New(),
		BorrowerID: 7,
		Status:     model.AssessmentStarted,
	}
	for i := 0; i < files; i++ {
		a.Files = append(a.Files, model.AssessmentFile{ID: int64(i + 1), BlobKey: uuid.NewString()})
	}
	return a
}

func approveWith(rating int64) ReviewPolicy {
	return policyFunc(func(context.Context, *model.Assessment) (model.ReviewOutcome, error) {
		return model.ReviewOutcome{Status: model.AssessmentApproved, RatingID: rating}, nil
	})
}

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %s, want %s", apiErr.Code, code)
	}
}

// --- テスト ---

func TestCreate_ReturnsUploadURL(t *testing.T) {
	a := newStarted(0)
	repo := &mockAssessmentRepo{
		createFn: func(ctx context.Context, borrowerID int64) (*model.Assessment, error) {
			if borrowerID != 7 {
				t.Errorf("borrowerID = %d, want 7", borrowerID)
			}
			return a, nil
		},
	}
	rec := &recordingMetrics{}
	svc := NewService(repo, &mockUploads{}, approveWith(1), rec, nil, Options{})

	info, err := svc.Create(context.Background(), 7)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if info.Reference != a.Reference.String() {
		t.Errorf("Reference = %q", info.Reference)
	}
	if info.UploadURL == "" {
		t.Error("started assessment should carry an upload URL")
	}
	if len(rec.transitions) != 1 || rec.transitions[0] != "started" {
		t.Errorf("transitions = %v", rec.transitions)
	}
}

func TestGet_InvalidReference_ReturnsNotFound(t *testing.T) {
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(context.Context, int64, uuid.UUID) (*model.Assessment, error) {
			t.Fatal("repository should not be called for an unparsable reference")
			return nil, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	_, err := svc.Get(context.Background(), 7, "not-a-uuid", true)
	assertAPIError(t, err, model.ErrCodeAssessmentNotFound)
}

func TestGet_Missing_ReturnsNotFound(t *testing.T) {
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(context.Context, int64, uuid.UUID) (*model.Assessment, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	_, err := svc.Get(context.Background(), 7, uuid.NewString(), true)
	assertAPIError(t, err, model.ErrCodeAssessmentNotFound)
}

func TestGet_Pending_OmitsUploadURL(t *testing.T) {
	a := newStarted(2)
	a.Status = model.AssessmentPending
	uploads := &mockUploads{}
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(context.Context, int64, uuid.UUID) (*model.Assessment, error) {
			return a, nil
		},
	}
	svc := NewService(repo, uploads, approveWith(1), nil, nil, Options{})

	info, err := svc.Get(context.Background(), 7, a.Reference.String(), false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if info.UploadURL != "" || uploads.calls != 0 {
		t.Errorf("pending assessment should not issue upload URL (url=%q calls=%d)", info.UploadURL, uploads.calls)
	}
	if info.Reference != "" {
		t.Errorf("Reference should be omitted, got %q", info.Reference)
	}
}

func TestSubmit_NotSubmittable(t *testing.T) {
	a := newStarted(1)
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(context.Context, int64, uuid.UUID) (*model.Assessment, error) {
			return a, nil
		},
		submitFn: func(context.Context, *model.Assessment) (bool, error) {
			return false, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	_, err := svc.Submit(context.Background(), 7, a.Reference.String())
	assertAPIError(t, err, model.ErrCodeAssessmentNotSubmittable)
}

func TestSubmit_InlineReviewApproves(t *testing.T) {
	a := newStarted(2)
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(context.Context, int64, uuid.UUID) (*model.Assessment, error) {
			return a, nil
		},
		submitFn: func(_ context.Context, a *model.Assessment) (bool, error) {
			a.Status = model.AssessmentPending
			return true, nil
		},
		applyOutcomeFn: func(_ context.Context, a *model.Assessment, o model.ReviewOutcome) (bool, error) {
			a.Status = o.Status
			a.RatingID = o.RatingID
			a.Rating = &model.Rating{ID: o.RatingID, Name: "B"}
			return true, nil
		},
	}
	rec := &recordingMetrics{}
	svc := NewService(repo, &mockUploads{}, approveWith(2), rec, nil, Options{ReviewInline: true})

	info, err := svc.Submit(context.Background(), 7, a.Reference.String())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if info.Status != int(model.AssessmentApproved) || info.RatingID != 2 {
		t.Errorf("status = %d rating = %d, want approved with rating 2", info.Status, info.RatingID)
	}
	if info.RatingInfo == nil {
		t.Error("approved assessment should carry rating info")
	}
	want := []string{"pending", "approved"}
	if len(rec.transitions) != 2 || rec.transitions[0] != want[0] || rec.transitions[1] != want[1] {
		t.Errorf("transitions = %v, want %v", rec.transitions, want)
	}
	if len(rec.decisions) != 1 || rec.decisions[0] != "approved" {
		t.Errorf("decisions = %v", rec.decisions)
	}
}

func TestSubmit_InlineReviewFailureStillSubmits(t *testing.T) {
	a := newStarted(2)
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(context.Context, int64, uuid.UUID) (*model.Assessment, error) {
			return a, nil
		},
		submitFn: func(_ context.Context, a *model.Assessment) (bool, error) {
			a.Status = model.AssessmentPending
			return true, nil
		},
	}
	failing := policyFunc(func(context.Context, *model.Assessment) (model.ReviewOutcome, error) {
		return model.ReviewOutcome{}, errors.New("policy unavailable")
	})
	svc := NewService(repo, &mockUploads{}, failing, nil, nil, Options{ReviewInline: true})

	info, err := svc.Submit(context.Background(), 7, a.Reference.String())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if info.Status != int(model.AssessmentPending) {
		t.Errorf("status = %d, want pending", info.Status)
	}
}

func TestAttachUpload_SameBlobIsIdempotent(t *testing.T) {
	a := newStarted(1)
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(_ context.Context, borrowerID int64, _ uuid.UUID) (*model.Assessment, error) {
			if borrowerID != 0 {
				t.Errorf("callback lookup should not filter by borrower, got %d", borrowerID)
			}
			return a, nil
		},
		addFileFn: func(context.Context, *model.Assessment, *model.AssessmentFile) (bool, error) {
			t.Fatal("AddFile should not be called for an already attached blob")
			return false, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	file := &model.AssessmentFile{BlobKey: a.Files[0].BlobKey}
	if _, err := svc.AttachUpload(context.Background(), a.Reference.String(), file); err != nil {
		t.Fatalf("AttachUpload() error = %v", err)
	}
	if file.ID != a.Files[0].ID {
		t.Errorf("file.ID = %d, want existing %d", file.ID, a.Files[0].ID)
	}
}

func TestAttachUpload_Locked(t *testing.T) {
	a := newStarted(2)
	a.Status = model.AssessmentPending
	repo := &mockAssessmentRepo{
		findByReferenceFn: func(context.Context, int64, uuid.UUID) (*model.Assessment, error) {
			return a, nil
		},
		addFileFn: func(context.Context, *model.Assessment, *model.AssessmentFile) (bool, error) {
			return false, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	_, err := svc.AttachUpload(context.Background(), a.Reference.String(), &model.AssessmentFile{BlobKey: "new"})
	assertAPIError(t, err, model.ErrCodeAssessmentLocked)
}

func TestReview_RejectsNonPending(t *testing.T) {
	svc := NewService(&mockAssessmentRepo{}, &mockUploads{}, approveWith(1), nil, nil, Options{})

	if err := svc.Review(context.Background(), newStarted(2)); !errors.Is(err, ErrNotReviewable) {
		t.Errorf("err = %v, want ErrNotReviewable", err)
	}
}

func TestReview_InvalidOutcomeIsNotApplied(t *testing.T) {
	a := newStarted(2)
	a.Status = model.AssessmentPending
	repo := &mockAssessmentRepo{
		applyOutcomeFn: func(context.Context, *model.Assessment, model.ReviewOutcome) (bool, error) {
			t.Fatal("invalid outcome should not reach the repository")
			return false, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(0), nil, nil, Options{})

	if err := svc.Review(context.Background(), a); err == nil {
		t.Error("expected error for approval without rating")
	}
}

func TestLastApproved_NoneReturnsNotFound(t *testing.T) {
	repo := &mockAssessmentRepo{
		findLastApprovedFn: func(context.Context, int64) (*model.Assessment, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	_, err := svc.LastApproved(context.Background(), 7)
	assertAPIError(t, err, model.ErrCodeAssessmentNotFound)
}

func TestList_MapsSummaries(t *testing.T) {
	first, second := newStarted(0), newStarted(0)
	repo := &mockAssessmentRepo{
		listByBorrowerFn: func(context.Context, int64) ([]*model.Assessment, error) {
			return []*model.Assessment{first, second}, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	list, err := svc.List(context.Background(), 7)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Reference != first.Reference.String() {
		t.Errorf("list = %+v", list)
	}
}

func TestReviewPending_PassesExclusionToRepository(t *testing.T) {
	var gotLimit int
	var gotExclude []int64
	repo := &mockAssessmentRepo{
		listPendingFn: func(ctx context.Context, limit int, exclude []int64) ([]*model.Assessment, error) {
			gotLimit, gotExclude = limit, exclude
			return []*model.Assessment{{ID: 5, Status: model.AssessmentPending}}, nil
		},
	}
	svc := NewService(repo, &mockUploads{}, approveWith(1), nil, nil, Options{})

	list, err := svc.ReviewPending(context.Background(), 10, []int64{1, 2})
	if err != nil {
		t.Fatalf("ReviewPending() error = %v", err)
	}
	if gotLimit != 10 || len(gotExclude) != 2 || gotExclude[0] != 1 || gotExclude[1] != 2 {
		t.Errorf("limit=%d exclude=%v", gotLimit, gotExclude)
	}
	if len(list) != 1 || list[0].ID != 5 {
		t.Errorf("list = %+v", list)
	}
}
