package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/tabula/internal/errs"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		kind errs.ErrKind
		want int
	}{
		{errs.ErrKindInvalidInput, http.StatusBadRequest},
		{errs.ErrKindConversion, http.StatusBadRequest},
		{errs.ErrKindOutOfRange, http.StatusBadRequest},
		{errs.ErrKindNotFound, http.StatusNotFound},
		{errs.ErrKindPermissionDenied, http.StatusForbidden},
		{errs.ErrKindProtocolMisuse, http.StatusConflict},
		{errs.ErrKindTimeout, http.StatusGatewayTimeout},
		{errs.ErrKindConnectionFailed, http.StatusServiceUnavailable},
		{errs.ErrKindQueryFailed, http.StatusInternalServerError},
		{errs.ErrKindConfiguration, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("handler: %w", errs.New(tt.kind, "boom"))
			assert.Equal(t, tt.want, statusOf(err))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("plain")))
}
