package handlers

import (
	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/app/service/payment"
	"github.com/fatflowers/partypay/internal/app/service/provider"
	"github.com/fatflowers/partypay/internal/app/service/statistics"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
)

// Envelope types for swag; handlers write response.APIResponse[T].

// RespOK is an envelope for endpoints returning no specific data.
type RespOK struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// RespError is the failure envelope; Code is one of the API error codes.
type RespError struct {
	Success bool        `json:"success" example:"false"`
	Code    string      `json:"code" example:"INVALID_STATE"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type RespOrder struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Data    payment.OrderResult `json:"data"`
}

type RespResult struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    payment.Result `json:"data"`
}

type RespCapture struct {
	Success bool                  `json:"success"`
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Data    payment.CaptureResult `json:"data"`
}

type RespTransaction struct {
	Success bool                    `json:"success"`
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Data    payment.TransactionView `json:"data"`
}

type RespListTransactions struct {
	Success bool                                 `json:"success"`
	Code    string                               `json:"code"`
	Message string                               `json:"message"`
	Data    transaction.ScanTransactionsResponse `json:"data"`
}

type RespFeeSettings struct {
	Success bool             `json:"success"`
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Data    fees.FeeSettings `json:"data"`
}

type RespOnboardingLink struct {
	Success bool                    `json:"success"`
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Data    provider.OnboardingLink `json:"data"`
}

type RespProviderStatus struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Data    provider.StatusView `json:"data"`
}

type RespStatistics struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Data    statistics.Response `json:"data"`
}
