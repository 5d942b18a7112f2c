package public

import (
	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/http/handlers/shared"
	"github.com/checkout-next/internal/http/response"
	"github.com/checkout-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutLineRequest 结算行请求
type CheckoutLineRequest struct {
	VariantID uint `json:"variant_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// CreateCheckoutRequest 创建结算单请求
type CreateCheckoutRequest struct {
	Channel  string                `json:"channel" binding:"required"`
	Currency string                `json:"currency"`
	Email    string                `json:"email"`
	Lines    []CheckoutLineRequest `json:"lines"`
}

// UpdateEmailRequest 更新邮箱请求
type UpdateEmailRequest struct {
	Email string `json:"email"`
}

// UpdateLinesRequest 更新结算行请求
type UpdateLinesRequest struct {
	Lines []CheckoutLineRequest `json:"lines" binding:"required"`
}

// AddPromoCodeRequest 添加优惠码请求
type AddPromoCodeRequest struct {
	PromoCode string `json:"promo_code" binding:"required"`
}

// RemovePromoCodeRequest 移除优惠码请求，code 与 promo_id 二选一
type RemovePromoCodeRequest struct {
	PromoCode *string `json:"promo_code"`
	PromoID   *string `json:"promo_id"`
}

// UpdateDeliveryMethodRequest 更新配送方式请求
type UpdateDeliveryMethodRequest struct {
	DeliveryMethodID string `json:"delivery_method_id"`
}

func toLineInputs(lines []CheckoutLineRequest) []service.CheckoutLineInput {
	inputs := make([]service.CheckoutLineInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, service.CheckoutLineInput{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	return inputs
}

// respondBindError 请求体无法解析时按输入形状错误返回
func respondBindError(c *gin.Context, field string, err error) {
	shared.RequestLog(c).Debugw("checkout_request_bind_failed", "path", c.FullPath(), "error", err)
	shared.RespondErrorWithData(c, response.CodeBadRequest, "invalid request body", gin.H{
		"errors": service.CheckoutErrors{{
			Field:   field,
			Code:    constants.ErrorCodeGraphQLError,
			Message: "invalid request body",
		}},
	})
}

// CreateCheckout 创建结算单
func (h *Handler) CreateCheckout(c *gin.Context) {
	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, constants.FieldChannel, err)
		return
	}
	result, err := h.CheckoutService.Create(c.Request.Context(), service.CreateCheckoutInput{
		Channel:   req.Channel,
		Currency:  req.Currency,
		Email:     req.Email,
		Lines:     toLineInputs(req.Lines),
		Requester: shared.RequesterFromContext(c),
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// GetCheckout 获取结算单及其金额
func (h *Handler) GetCheckout(c *gin.Context) {
	result, err := h.CheckoutService.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateCheckoutEmail 更新结算单邮箱
func (h *Handler) UpdateCheckoutEmail(c *gin.Context) {
	var req UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, constants.FieldEmail, err)
		return
	}
	result, err := h.CheckoutService.UpdateEmail(c.Request.Context(), c.Param("token"), req.Email)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateCheckoutLines 更新结算行数量，数量为 0 删除该行
func (h *Handler) UpdateCheckoutLines(c *gin.Context) {
	var req UpdateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, constants.FieldLines, err)
		return
	}
	result, err := h.CheckoutService.UpdateLines(c.Request.Context(), c.Param("token"), toLineInputs(req.Lines))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// AddPromoCode 添加优惠码或礼品卡
func (h *Handler) AddPromoCode(c *gin.Context) {
	var req AddPromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, constants.FieldPromoCode, err)
		return
	}
	result, err := h.CheckoutService.AddPromoCode(c.Request.Context(), c.Param("token"), req.PromoCode, shared.RequesterFromContext(c))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// RemovePromoCode 移除优惠码或礼品卡
func (h *Handler) RemovePromoCode(c *gin.Context) {
	var req RemovePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, constants.FieldPromoCode, err)
		return
	}
	result, err := h.CheckoutService.RemovePromoCode(c.Request.Context(), c.Param("token"), req.PromoCode, req.PromoID)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateShippingAddress 更新收货地址
func (h *Handler) UpdateShippingAddress(c *gin.Context) {
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, constants.FieldShippingAddress, err)
		return
	}
	result, err := h.CheckoutService.UpdateShippingAddress(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateDeliveryMethod 选择配送方式
func (h *Handler) UpdateDeliveryMethod(c *gin.Context) {
	var req UpdateDeliveryMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, constants.FieldDeliveryMethod, err)
		return
	}
	result, err := h.CheckoutService.UpdateDeliveryMethod(c.Request.Context(), c.Param("token"), req.DeliveryMethodID)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// ListShippingMethods 列出当前可用的配送方式
func (h *Handler) ListShippingMethods(c *gin.Context) {
	methods, err := h.CheckoutService.ShippingMethods(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, gin.H{"shipping_methods": methods})
}

// CompleteCheckout 完成结算并生成订单
func (h *Handler) CompleteCheckout(c *gin.Context) {
	result, err := h.CheckoutService.CompleteCheckout(c.Request.Context(), c.Param("token"), shared.RequesterFromContext(c))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.SuccessWithMsg(c, "checkout completed", result)
}
