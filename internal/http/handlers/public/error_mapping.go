package public

import (
	"errors"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/http/handlers/shared"
	"github.com/checkout-next/internal/http/response"
	"github.com/checkout-next/internal/plugin"
	"github.com/checkout-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrCheckoutNotFound, code: response.CodeNotFound, msg: "checkout not found"},
	{target: service.ErrCheckoutNotFullyPaid, code: response.CodeBadRequest, msg: "checkout not fully paid"},
	{target: service.ErrVoucherUsageExhausted, code: response.CodeBadRequest, msg: "voucher usage exhausted"},
	{target: service.ErrCheckoutCreateFailed, code: response.CodeInternal, msg: "checkout create failed"},
	{target: service.ErrCheckoutUpdateFailed, code: response.CodeInternal, msg: "checkout update failed"},
	{target: service.ErrCheckoutCompleteFailed, code: response.CodeInternal, msg: "checkout complete failed"},
	{target: service.ErrCheckoutFetchFailed, code: response.CodeInternal, msg: "checkout fetch failed"},
}

// respondCheckoutError 统一输出结算相关错误：
// 上游插件失败返回 503 并标注是否可重试；领域错误列表放在 data.errors。
func respondCheckoutError(c *gin.Context, err error) {
	if upstream, ok := plugin.AsUpstream(err); ok {
		shared.RequestLog(c).Warnw("checkout_upstream_failed",
			"plugin", upstream.Plugin,
			"hook", upstream.Hook,
			"retryable", upstream.Retryable,
			"error", upstream.Err,
		)
		shared.RespondErrorWithData(c, response.CodeServiceUnavailable, "pricing service unavailable", gin.H{
			"errors": service.CheckoutErrors{{
				Code:    constants.ErrorCodeUpstreamUnavailable,
				Message: upstream.Error(),
			}},
			"retryable": upstream.Retryable,
		})
		return
	}
	if list, ok := service.AsCheckoutErrors(err); ok {
		code := response.CodeBadRequest
		if checkoutMissing(list) {
			code = response.CodeNotFound
		}
		msg := "invalid request"
		if len(list) > 0 {
			msg = list[0].Message
		}
		shared.RespondErrorWithData(c, code, msg, gin.H{"errors": list})
		return
	}
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "internal error")
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			if rule.code >= response.CodeInternal {
				shared.RespondError(c, rule.code, rule.msg, err)
				return
			}
			shared.RespondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	shared.RespondError(c, fallbackCode, fallbackMsg, err)
}

// checkoutMissing 仅结算单本身不存在时返回 404，优惠码等资源不存在仍按 400 处理
func checkoutMissing(list service.CheckoutErrors) bool {
	for _, item := range list {
		if item.Code == constants.ErrorCodeNotFound && item.Field == constants.FieldToken {
			return true
		}
	}
	return false
}
