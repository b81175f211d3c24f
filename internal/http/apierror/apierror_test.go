package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
	"github.com/MrJamesThe3rd/labelhub/internal/store"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("locking order: %w", order.ErrNotFound), want: http.StatusNotFound},
		{err: ledger.ErrInsufficientFunds, want: http.StatusPaymentRequired},
		{err: order.ErrNotStartable, want: http.StatusConflict},
		{err: order.ErrInvalidTransition, want: http.StatusBadRequest},
		{err: order.ErrDuplicateTracking, want: http.StatusBadRequest},
		{err: store.ErrConflict, want: http.StatusConflict},
		{err: ledger.ErrDuplicateReference, want: http.StatusConflict},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestWrite_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
