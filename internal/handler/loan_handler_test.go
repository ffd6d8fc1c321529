package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gncompass/serverfront/internal/model"
)

func TestListAmortizations(t *testing.T) {
	h := NewLoanHandler(&mockLoanService{
		amortizationsFn: func(ctx context.Context) ([]model.AmortizationInfo, error) {
			return []model.AmortizationInfo{
				{ID: 1, Name: "6 months", Months: 6, Years: 0.5},
				{ID: 2, Name: "3 years", Months: 36, Years: 3},
			}, nil
		},
	})

	w := httptest.NewRecorder()
	h.ListAmortizations(w, httptest.NewRequest(http.MethodGet, "/core/v1/amortizations", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []model.AmortizationInfo
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Years != 0.5 || got[1].Months != 36 {
		t.Errorf("got %+v", got)
	}
}

func TestGetAmortization(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		svcErr     error
		wantStatus int
	}{
		{"found", "3", nil, http.StatusOK},
		{"not numeric", "abc", nil, http.StatusBadRequest},
		{"not positive", "0", nil, http.StatusBadRequest},
		{"not found", "99", model.NewAmortizationNotFoundError(99), http.StatusNotFound},
		{"storage", "4", errors.New("timeout"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLoanHandler(&mockLoanService{
				amortizationFn: func(ctx context.Context, id int64) (*model.AmortizationInfo, error) {
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return &model.AmortizationInfo{ID: id, Months: 12, Years: 1}, nil
				},
			})

			req := httptest.NewRequest(http.MethodGet, "/core/v1/amortizations/"+tt.id, nil)
			req = withChiURLParams(req, "id", tt.id)
			w := httptest.NewRecorder()

			h.GetAmortization(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestListRatings(t *testing.T) {
	h := NewLoanHandler(&mockLoanService{
		ratingsFn: func(ctx context.Context) ([]model.RatingInfo, error) {
			return []model.RatingInfo{{ID: 1, Name: "A", Rate: "5.25"}}, nil
		},
	})

	w := httptest.NewRecorder()
	h.ListRatings(w, httptest.NewRequest(http.MethodGet, "/core/v1/ratings", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []model.RatingInfo
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Rate != "5.25" {
		t.Errorf("got %+v", got)
	}
}
