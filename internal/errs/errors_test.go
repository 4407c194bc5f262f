package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"unauthenticated", ErrUnauthenticated, KindUnauthenticated, http.StatusUnauthorized},
		{"forbidden", ErrForbidden, KindForbidden, http.StatusForbidden},
		{"wrapped not active", fmt.Errorf("accept alert: %w", ErrNotFoundOrInactive), KindNotFound, http.StatusNotFound},
		{"badge", ErrResponderNotFound, KindNotFound, http.StatusNotFound},
		{"owner", ErrNotFoundOrUnauthorized, KindNotFound, http.StatusNotFound},
		{"invalid", fmt.Errorf("%w: badge number is required", ErrInvalidArgument), KindInvalidArgument, http.StatusBadRequest},
		{"conflict", ErrConflict, KindConflict, http.StatusConflict},
		{"unexpected", errors.New("connection reset"), KindInternal, http.StatusInternalServerError},
		{"nil", nil, KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := KindOf(tt.err)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.status, k.HTTPStatus())
		})
	}
}
