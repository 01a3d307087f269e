package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"rejected", Rejected(OpUpdate, "denied"), KindRejected},
		{"wrapped rejected", fmt.Errorf("pipeline: %w", Rejected(OpUpdate, "denied")), KindRejected},
		{"not found", NotFound(OpGet, "x"), KindNotFound},
		{"deadline", context.DeadlineExceeded, KindUnreachable},
		{"unknown", errors.New("boom"), KindUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	err := Unreachable(OpList, context.Canceled)
	assert.Equal(t, "list orders: unreachable: context canceled", err.Error())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, "update order status: rejected: nope", Rejected(OpUpdate, "nope").Error())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
