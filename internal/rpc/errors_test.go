package rpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	amerrors "github.com/docsearchd/docsearchd/internal/errors"
)

func TestMapError_Nil_ReturnsNil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_RPCError_PassesThroughUnchanged(t *testing.T) {
	e := &Error{Code: ErrCodeInvalidParams, Message: "bad"}
	assert.Same(t, e, MapError(e))
}

func TestMapError_ContextDeadlineExceeded_MapsToTimeout(t *testing.T) {
	e := MapError(context.DeadlineExceeded)
	assert.Equal(t, ErrCodeTimeout, e.Code)
}

func TestMapError_ContextCanceled_MapsToCancelled(t *testing.T) {
	e := MapError(context.Canceled)
	assert.Equal(t, ErrCodeCancelled, e.Code)
}

func TestMapError_PlainError_MapsToInternal(t *testing.T) {
	e := MapError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternalError, e.Code)
}

func TestMapError_DocErrorCategories(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found - collection", amerrors.NotFoundError(amerrors.ErrCodeCollectionNotFound, "nope"), ErrCodeCollectionNotFound},
		{"not found - document", amerrors.NotFoundError(amerrors.ErrCodeDocumentNotFound, "nope"), ErrCodeDocumentNotFound},
		{"validation - query", amerrors.New(amerrors.ErrCodeInvalidQuery, "bad query", nil), ErrCodeInvalidQuery},
		{"validation - generic", amerrors.ValidationError("bad input", nil), ErrCodeInvalidParams},
		{"io - file not found", amerrors.IOError("missing", nil), ErrCodeFileNotFound},
		{"conflict", amerrors.ConflictError("stale"), ErrCodeVersionConflict},
		{"rate limited", amerrors.RateLimitedError("slow down"), ErrCodeRateLimited},
		{"cancelled", amerrors.CancelledError("gone"), ErrCodeCancelled},
		{"partial upstream", amerrors.PartialUpstreamError("degraded", nil), ErrCodePartialUpstream},
		{"internal", amerrors.InternalError("boom", nil), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := MapError(tt.err)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}
