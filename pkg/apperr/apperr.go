package apperr

import (
	"errors"
	"net/http"
)

// Code is the stable machine-readable error identifier returned to API clients.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeCaptureFailed       Code = "CAPTURE_FAILED"
	CodeMissingPayment      Code = "MISSING_PAYMENT"
	CodeOrderCreationFailed Code = "ORDER_CREATION_FAILED"
	CodeAmountMismatch      Code = "AMOUNT_MISMATCH"
	CodeGateway             Code = "GATEWAY_ERROR"
	CodeGatewayTimeout      Code = "GATEWAY_TIMEOUT"
	CodeConfig              Code = "CONFIG_ERROR"
	CodeIdempotency         Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal            Code = "SERVER_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized:        {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:           {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:            {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", DetailsAllowed: true},
	CodeConflict:            {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", DetailsAllowed: true},
	CodeInvalidState:        {HTTPStatus: http.StatusConflict, PublicMessage: "state transition disallowed", DetailsAllowed: true},
	CodeCaptureFailed:       {HTTPStatus: http.StatusPaymentRequired, PublicMessage: "payment capture failed", DetailsAllowed: true},
	CodeMissingPayment:      {HTTPStatus: http.StatusBadRequest, PublicMessage: "transaction has no payment order", DetailsAllowed: true},
	CodeOrderCreationFailed: {HTTPStatus: http.StatusBadGateway, PublicMessage: "payment order creation failed", DetailsAllowed: true},
	CodeAmountMismatch:      {HTTPStatus: http.StatusConflict, PublicMessage: "captured amount does not match", DetailsAllowed: true},
	CodeGateway:             {HTTPStatus: http.StatusBadGateway, PublicMessage: "payment gateway error", DetailsAllowed: true},
	CodeGatewayTimeout:      {HTTPStatus: http.StatusGatewayTimeout, Retryable: true, PublicMessage: "payment gateway timeout", DetailsAllowed: true},
	CodeConfig:              {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "payment service is not configured", DetailsAllowed: true},
	CodeIdempotency:         {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
	CodeInternal:            {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error carries a Code through wrapped error chains.
type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in the chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf resolves the code for any error; unknown errors are internal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// PublicMessage returns what may be shown to the caller for err.
func PublicMessage(err error) string {
	code := CodeOf(err)
	meta := MetadataFor(code)
	if meta.DetailsAllowed && err != nil {
		return err.Error()
	}
	return meta.PublicMessage
}
