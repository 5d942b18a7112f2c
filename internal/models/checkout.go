package models

import (
	"strings"
	"time"
)

// Checkout 结算单（进行中的购物车）
type Checkout struct {
	Token                    string    `gorm:"type:varchar(36);primarykey" json:"token"`                     // 唯一标识
	Channel                  string    `gorm:"type:varchar(64);not null;index" json:"channel"`               // 渠道
	Currency                 string    `gorm:"type:varchar(3);not null" json:"currency"`                     // 币种
	Email                    string    `gorm:"type:varchar(255)" json:"email"`                               // 邮箱（可为空）
	UserID                   *uint     `gorm:"index" json:"user_id,omitempty"`                               // 所属用户
	ShippingAddressID        *uint     `json:"-"`                                                            // 收货地址
	BillingAddressID         *uint     `json:"-"`                                                            // 账单地址
	ShippingMethodID         *uint     `gorm:"index" json:"shipping_method_id"`                              // 已选配送方式
	ExternalShippingMethodID string    `gorm:"type:varchar(255)" json:"external_shipping_method_id"`         // 外部配送方式ID
	VoucherCode              *string   `gorm:"type:varchar(64);index" json:"voucher_code"`                   // 已应用优惠码
	DiscountAmount           Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠码折扣金额
	DiscountName             string    `gorm:"type:varchar(255)" json:"discount_name"`                       // 优惠名称
	LastChange               time.Time `gorm:"index" json:"last_change"`                                     // 价格相关字段最后变更时间
	CreatedAt                time.Time `gorm:"index" json:"created_at"`                                      // 创建时间

	ShippingAddress *Address           `gorm:"foreignKey:ShippingAddressID" json:"shipping_address,omitempty"`
	BillingAddress  *Address           `gorm:"foreignKey:BillingAddressID" json:"billing_address,omitempty"`
	Lines           []CheckoutLine     `gorm:"foreignKey:CheckoutToken;references:Token" json:"lines,omitempty"`
	GiftCards       []CheckoutGiftCard `gorm:"foreignKey:CheckoutToken;references:Token" json:"-"`
}

// TableName 指定表名
func (Checkout) TableName() string {
	return "checkouts"
}

// HasVoucher 是否已应用优惠码
func (c *Checkout) HasVoucher() bool {
	return c != nil && c.VoucherCode != nil && strings.TrimSpace(*c.VoucherCode) != ""
}

// HasDeliveryMethod 是否已选择配送方式（内部或外部）
func (c *Checkout) HasDeliveryMethod() bool {
	if c == nil {
		return false
	}
	return c.ShippingMethodID != nil || strings.TrimSpace(c.ExternalShippingMethodID) != ""
}

// ClearVoucher 清除优惠码与折扣
func (c *Checkout) ClearVoucher() {
	c.VoucherCode = nil
	c.DiscountAmount = ZeroMoney()
	c.DiscountName = ""
}

// ClearDeliveryMethod 清除已选配送方式
func (c *Checkout) ClearDeliveryMethod() {
	c.ShippingMethodID = nil
	c.ExternalShippingMethodID = ""
}

// GiftCardIDs 按挂载顺序返回礼品卡ID
func (c *Checkout) GiftCardIDs() []uint {
	if c == nil {
		return nil
	}
	ids := make([]uint, 0, len(c.GiftCards))
	for _, item := range c.GiftCards {
		ids = append(ids, item.GiftCardID)
	}
	return ids
}

// HasGiftCard 是否已挂载指定礼品卡
func (c *Checkout) HasGiftCard(giftCardID uint) bool {
	for _, id := range c.GiftCardIDs() {
		if id == giftCardID {
			return true
		}
	}
	return false
}

// CheckoutLine 结算行
type CheckoutLine struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CheckoutToken string    `gorm:"type:varchar(36);not null;index" json:"-"`
	VariantID     uint      `gorm:"not null;index" json:"variant_id"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	PriceOverride *Money    `gorm:"type:decimal(20,2)" json:"price_override,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (CheckoutLine) TableName() string {
	return "checkout_lines"
}

// CheckoutGiftCard 结算单挂载的礼品卡（ID 顺序即挂载顺序）
type CheckoutGiftCard struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CheckoutToken string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_checkout_gift_card" json:"-"`
	GiftCardID    uint      `gorm:"not null;uniqueIndex:idx_checkout_gift_card" json:"gift_card_id"`
	CreatedAt     time.Time `json:"created_at"`

	GiftCard *GiftCard `gorm:"foreignKey:GiftCardID" json:"gift_card,omitempty"`
}

// TableName 指定表名
func (CheckoutGiftCard) TableName() string {
	return "checkout_gift_cards"
}
