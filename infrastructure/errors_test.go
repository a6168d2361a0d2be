package infrastructure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"authorization", Authorization("nope"), codes.PermissionDenied},
		{"wrapped validation", fmt.Errorf("send: %w", Validation("bad")), codes.InvalidArgument},
		{"conflict", Conflict("dup"), codes.AlreadyExists},
		{"plain error", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Internal("failed to insert message", errors.New("pq: connection refused"))
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Equal(t, "channel not found", PublicMessage(NotFound("channel not found")))
}

func TestErrorCarriesGRPCStatus(t *testing.T) {
	st, ok := status.FromError(Authentication("invalid token", ErrInvalidToken))
	assert.True(t, ok)
	assert.Equal(t, codes.Unauthenticated, st.Code())
	assert.ErrorIs(t, Authentication("invalid token", ErrInvalidToken), ErrInvalidToken)
}
