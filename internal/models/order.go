package models

import "time"

// Order 由结算单生成的订单
type Order struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                                          // 主键
	OrderNo            string    `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_no"`         // 订单号
	CheckoutToken      string    `gorm:"type:varchar(36);index" json:"checkout_token"`                  // 来源结算单
	Channel            string    `gorm:"type:varchar(64);not null;index" json:"channel"`                // 渠道
	Currency           string    `gorm:"type:varchar(3);not null" json:"currency"`                      // 币种
	Status             string    `gorm:"type:varchar(32);not null;index" json:"status"`                 // 状态
	UserID             *uint     `gorm:"index" json:"user_id,omitempty"`                                // 用户
	Email              string    `gorm:"type:varchar(255);index" json:"email"`                          // 邮箱
	VoucherCode        *string   `gorm:"type:varchar(64)" json:"voucher_code"`                          // 优惠码
	ShippingMethodID   *uint     `json:"shipping_method_id"`                                            // 配送方式
	ShippingMethodName string    `gorm:"type:varchar(255)" json:"shipping_method_name"`                 // 配送方式名称
	ShippingAddressID  *uint     `json:"shipping_address_id"`                                           // 收货地址
	SubtotalNet        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal_net"`     // 小计（未税）
	SubtotalGross      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal_gross"`   // 小计（含税）
	ShippingNet        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_net"`     // 运费（未税）
	ShippingGross      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_gross"`   // 运费（含税）
	DiscountAmount     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`  // 优惠码折扣
	GiftCardAmount     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"gift_card_amount"` // 礼品卡抵扣
	TotalNet           Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_net"`        // 应付（未税）
	TotalGross         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_gross"`      // 应付（含税）
	CreatedAt          time.Time `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt          time.Time `json:"updated_at"`                                                    // 更新时间

	Lines []OrderLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderLine 订单行
type OrderLine struct {
	ID                    uint      `gorm:"primarykey" json:"id"`
	OrderID               uint      `gorm:"not null;index" json:"order_id"`
	VariantID             uint      `gorm:"not null;index" json:"variant_id"`
	ProductName           string    `gorm:"type:varchar(386)" json:"product_name"`
	VariantName           string    `gorm:"type:varchar(255)" json:"variant_name"`
	SKU                   string    `gorm:"type:varchar(255)" json:"sku"`
	Quantity              int       `gorm:"not null" json:"quantity"`
	Currency              string    `gorm:"type:varchar(3);not null" json:"currency"`
	UndiscountedUnitPrice Money     `gorm:"type:decimal(20,2);not null;default:0" json:"undiscounted_unit_price"`
	UnitPrice             Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`
	TotalNet              Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_net"`
	TotalGross            Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_gross"`
	IsShippingRequired    bool      `gorm:"not null" json:"is_shipping_required"`
	CreatedAt             time.Time `json:"created_at"`
}

// TableName 指定表名
func (OrderLine) TableName() string {
	return "order_lines"
}
