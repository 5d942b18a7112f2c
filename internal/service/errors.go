package service

import (
	"errors"
	"strings"

	"github.com/checkout-next/internal/constants"
)

var (
	ErrCheckoutNotFound       = errors.New("checkout not found")
	ErrCheckoutFetchFailed    = errors.New("checkout fetch failed")
	ErrCheckoutUpdateFailed   = errors.New("checkout update failed")
	ErrCheckoutCreateFailed   = errors.New("checkout create failed")
	ErrCheckoutCompleteFailed = errors.New("checkout complete failed")
	ErrCheckoutNotFullyPaid   = errors.New("checkout not fully paid")
	ErrVoucherUsageExhausted  = errors.New("voucher usage exhausted")
)

// CheckoutError 结算领域错误，带输入字段、稳定错误码与可读信息
type CheckoutError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Variants []uint `json:"variants,omitempty"`
}

func (e CheckoutError) Error() string {
	if e.Field == "" {
		return e.Code + ": " + e.Message
	}
	return e.Field + ": " + e.Code + ": " + e.Message
}

// CheckoutErrors 一次变更收集到的全部领域错误
type CheckoutErrors []CheckoutError

func (e CheckoutErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, item := range e {
		parts = append(parts, item.Error())
	}
	return strings.Join(parts, "; ")
}

// HasCode 是否包含指定错误码
func (e CheckoutErrors) HasCode(code string) bool {
	for _, item := range e {
		if item.Code == code {
			return true
		}
	}
	return false
}

// IsInputError 是否为调用方输入形状错误（在领域校验之前短路）
func (e CheckoutErrors) IsInputError() bool {
	return e.HasCode(constants.ErrorCodeGraphQLError)
}

// AsCheckoutErrors 提取领域错误列表
func AsCheckoutErrors(err error) (CheckoutErrors, bool) {
	var list CheckoutErrors
	if errors.As(err, &list) {
		return list, true
	}
	var single CheckoutError
	if errors.As(err, &single) {
		return CheckoutErrors{single}, true
	}
	return nil, false
}

func newCheckoutError(field, code, message string, variants ...uint) CheckoutError {
	return CheckoutError{Field: field, Code: code, Message: message, Variants: variants}
}

func inputError(field, message string) CheckoutErrors {
	return CheckoutErrors{newCheckoutError(field, constants.ErrorCodeGraphQLError, message)}
}

func domainError(field, code, message string, variants ...uint) CheckoutErrors {
	return CheckoutErrors{newCheckoutError(field, code, message, variants...)}
}

func (e CheckoutErrors) hasVariant(variantID uint) bool {
	for _, item := range e {
		for _, id := range item.Variants {
			if id == variantID {
				return true
			}
		}
	}
	return false
}
