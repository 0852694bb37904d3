package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	apperrors "parkwatch/pkg/errors"
)

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) PageResponse {
	t.Helper()
	var page PageResponse
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode page response: %v", err)
	}
	return page
}

func TestWritePage_PaginationFlags(t *testing.T) {
	tests := []struct {
		name       string
		totalCount int64
		page       int
		limit      int
		wantNext   bool
		wantPrev   bool
	}{
		{"first page of three", 30, 1, 10, true, false},
		{"middle page", 30, 2, 10, true, true},
		{"last full page", 30, 3, 10, false, true},
		{"single page", 5, 1, 10, false, false},
		{"partial last page", 25, 3, 10, false, true},
		{"page past the end", 30, 5, 10, false, true},
		{"empty result set", 0, 1, 10, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WritePage(rec, []string{}, tt.totalCount, tt.page, tt.limit); err != nil {
				t.Fatalf("WritePage returned error: %v", err)
			}

			page := decodePage(t, rec)
			if page.HasNext != tt.wantNext {
				t.Errorf("HasNext = %v, want %v", page.HasNext, tt.wantNext)
			}
			if page.HasPrev != tt.wantPrev {
				t.Errorf("HasPrev = %v, want %v", page.HasPrev, tt.wantPrev)
			}
			if page.TotalCount != tt.totalCount {
				t.Errorf("TotalCount = %d, want %d", page.TotalCount, tt.totalCount)
			}
			if page.Page != tt.page || page.Limit != tt.limit {
				t.Errorf("Page/Limit = %d/%d, want %d/%d", page.Page, page.Limit, tt.page, tt.limit)
			}
		})
	}
}

func TestWriteError_UsesAppErrorStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteError(rec, apperrors.NotFound("parking lot")); err != nil {
		t.Fatalf("WriteError returned error: %v", err)
	}
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", body.Code)
	}
}
