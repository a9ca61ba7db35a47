package rpc

import (
	"context"
	"errors"
	"fmt"

	amerrors "github.com/docsearchd/docsearchd/internal/errors"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Application error codes, the -32000..-32099 range JSON-RPC 2.0 reserves
// for implementation-defined errors. This table is the JSON-RPC analogue
// of internal/mcp/errors.go's MapError, extended from that table's 5
// custom codes to cover every amerrors.Category this tree produces.
const (
	ErrCodeCollectionNotFound = -32000
	ErrCodeDocumentNotFound   = -32001
	ErrCodeEmbeddingFailed    = -32002
	ErrCodeTimeout            = -32003
	ErrCodeFileNotFound       = -32004
	ErrCodeFileTooLarge       = -32005
	ErrCodeIndexCorrupt       = -32006
	ErrCodeInvalidQuery       = -32007
	ErrCodeVersionConflict    = -32008
	ErrCodeRateLimited        = -32009
	ErrCodeCancelled          = -32010
	ErrCodePartialUpstream    = -32011
	ErrCodeConfigInvalid      = -32012
)

var (
	// ErrMethodNotFound is returned by handlers that want the dispatcher's
	// generic "method not found" mapping rather than writing their own.
	ErrMethodNotFound = errors.New("method not found")
)

// MapError converts any error returned by a registered handler into a
// JSON-RPC Error, preferring the DocError category/code when present.
func MapError(err error) *Error {
	if err == nil {
		return nil
	}

	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var de *amerrors.DocError
	if errors.As(err, &de) {
		return mapDocError(de)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &Error{Code: ErrCodeCancelled, Message: "request was canceled"}
	case errors.Is(err, ErrMethodNotFound):
		return &Error{Code: ErrCodeMethodNotFound, Message: err.Error()}
	default:
		return &Error{Code: ErrCodeInternalError, Message: "internal server error"}
	}
}

func mapDocError(de *amerrors.DocError) *Error {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s %s", de.Message, de.Suggestion)
	}
	e := &Error{Message: message}

	switch de.Category {
	case amerrors.CategoryIO:
		switch de.Code {
		case amerrors.ErrCodeFileNotFound:
			e.Code = ErrCodeFileNotFound
		case amerrors.ErrCodeFileTooLarge:
			e.Code = ErrCodeFileTooLarge
		case amerrors.ErrCodeCorruptIndex:
			e.Code = ErrCodeIndexCorrupt
		case amerrors.ErrCodeCollectionNotFound:
			e.Code = ErrCodeCollectionNotFound
		case amerrors.ErrCodeDocumentNotFound:
			e.Code = ErrCodeDocumentNotFound
		default:
			e.Code = ErrCodeInternalError
		}
	case amerrors.CategoryConfig:
		e.Code = ErrCodeConfigInvalid
	case amerrors.CategoryNetwork:
		e.Code = ErrCodeTimeout
	case amerrors.CategoryValidation:
		switch de.Code {
		case amerrors.ErrCodeInvalidQuery, amerrors.ErrCodeQueryEmpty, amerrors.ErrCodeQueryTooLong:
			e.Code = ErrCodeInvalidQuery
		default:
			e.Code = ErrCodeInvalidParams
		}
	case amerrors.CategoryConflict:
		e.Code = ErrCodeVersionConflict
	case amerrors.CategoryRateLimited:
		e.Code = ErrCodeRateLimited
	case amerrors.CategoryCancelled:
		e.Code = ErrCodeCancelled
	case amerrors.CategoryPartial:
		e.Code = ErrCodePartialUpstream
	default:
		e.Code = ErrCodeInternalError
	}
	return e
}

// NewInvalidParamsError builds an invalid-params error with a custom message.
func NewInvalidParamsError(msg string) *Error {
	return &Error{Code: ErrCodeInvalidParams, Message: msg}
}
