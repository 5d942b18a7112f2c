package constants

// 优惠券（Voucher）类型常量
const (
	VoucherTypeEntireOrder     = "ENTIRE_ORDER"
	VoucherTypeSpecificProduct = "SPECIFIC_PRODUCT"
	VoucherTypeShipping        = "SHIPPING"
)

// 折扣值类型常量
const (
	DiscountValueTypeFixed      = "fixed"
	DiscountValueTypePercentage = "percentage"
)

// 结算错误码（对外稳定的机器可读代码）
const (
	ErrorCodeNotFound                      = "NOT_FOUND"
	ErrorCodeInvalid                       = "INVALID"
	ErrorCodeVoucherNotApplicable          = "VOUCHER_NOT_APPLICABLE"
	ErrorCodeUnavailableVariantInChannel   = "UNAVAILABLE_VARIANT_IN_CHANNEL"
	ErrorCodeProductNotPublished           = "PRODUCT_NOT_PUBLISHED"
	ErrorCodeProductUnavailableForPurchase = "PRODUCT_UNAVAILABLE_FOR_PURCHASE"
	ErrorCodeInsufficientStock             = "INSUFFICIENT_STOCK"
	ErrorCodeQuantityGreaterThanLimit      = "QUANTITY_GREATER_THAN_LIMIT"
	ErrorCodeZeroQuantity                  = "ZERO_QUANTITY"
	ErrorCodeShippingNotRequired           = "SHIPPING_NOT_REQUIRED"
	ErrorCodeEmailNotSet                   = "EMAIL_NOT_SET"
	ErrorCodeGraphQLError                  = "GRAPHQL_ERROR"
	ErrorCodeCheckoutNotFullyPaid          = "CHECKOUT_NOT_FULLY_PAID"
	ErrorCodeUpstreamUnavailable           = "UPSTREAM_UNAVAILABLE"
	ErrorCodeShippingMethodNotApplicable   = "SHIPPING_METHOD_NOT_APPLICABLE"
	ErrorCodeShippingAddressNotSet         = "SHIPPING_ADDRESS_NOT_SET"
	ErrorCodeShippingMethodNotSet          = "SHIPPING_METHOD_NOT_SET"
)

// 错误字段标识
const (
	FieldPromoCode       = "promoCode"
	FieldPromoID         = "promoId"
	FieldLines           = "lines"
	FieldQuantity        = "quantity"
	FieldVariantID       = "variantId"
	FieldShippingAddress = "shippingAddress"
	FieldDeliveryMethod  = "deliveryMethodId"
	FieldEmail           = "email"
	FieldToken           = "token"
	FieldChannel         = "channel"
	FieldTotal           = "total"
)

// 促销码标识前缀（promo_id = "<kind>:<id>"）
const (
	PromoKindVoucher  = "voucher"
	PromoKindGiftCard = "gift_card"
)

// 礼品卡事件类型
const (
	GiftCardEventUsedInOrder = "used_in_order"
	GiftCardEventDeactivated = "deactivated"
	GiftCardEventBound       = "bound"
)

// 订单状态常量
const (
	OrderStatusUnfulfilled = "unfulfilled"
	OrderStatusUnconfirmed = "unconfirmed"
)

// 支付状态常量
const (
	PaymentStatusPending  = "pending"
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// 配送方式类型
const (
	ShippingMethodTypePrice = "price"
)

// 外部配送方式 ID 前缀
const ExternalShippingMethodPrefix = "app:"

// 设置键常量
const (
	SettingKeyCheckoutConfig = "checkout_config"
)

// 结算设置字段
const (
	SettingFieldDisplayGrossPrices   = "display_gross_prices"
	SettingFieldVoucherRequiresEmail = "voucher_requires_email"
	SettingFieldMaxLineQuantity      = "max_line_quantity"
	SettingFieldExpireAfterHours     = "expire_after_hours"
)

// 插件配置项类型
const (
	PluginOptionTypeString  = "string"
	PluginOptionTypeBoolean = "boolean"
	PluginOptionTypeSecret  = "secret"
)

// 插件标识
const (
	PluginFlatRateTax = "checkout.taxes.flat_rate"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskCheckoutCompleted         = "checkout:completed"
	TaskCheckoutDeleteExpired     = "checkout:delete_expired"
	TaskGiftCardDeactivateExpired = "gift_card:deactivate_expired"
)
