package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Voucher 优惠码定义
type Voucher struct {
	ID                       uint        `gorm:"primarykey" json:"id"`                                                 // 主键
	Code                     string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`                    // 优惠码（统一大写）
	Name                     string      `gorm:"type:varchar(255)" json:"name"`                                        // 名称
	Type                     string      `gorm:"type:varchar(24);not null;default:'ENTIRE_ORDER'" json:"type"`         // 适用类型
	DiscountValueType        string      `gorm:"type:varchar(16);not null;default:'fixed'" json:"discount_value_type"` // 折扣值类型
	StartDate                time.Time   `gorm:"index;not null" json:"start_date"`                                     // 生效时间
	EndDate                  *time.Time  `gorm:"index" json:"end_date"`                                                // 失效时间
	UsageLimit               *int        `json:"usage_limit"`                                                          // 总使用次数上限
	Used                     int         `gorm:"not null;default:0" json:"used"`                                       // 已使用次数
	ApplyOncePerOrder        bool        `gorm:"not null;default:false" json:"apply_once_per_order"`                   // 仅对最便宜的一件生效
	ApplyOncePerCustomer     bool        `gorm:"not null;default:false" json:"apply_once_per_customer"`                // 每位顾客限用一次
	MinCheckoutItemsQuantity int         `gorm:"not null;default:0" json:"min_checkout_items_quantity"`                // 最少件数
	Countries                StringArray `gorm:"type:json" json:"countries"`                                           // 运费券国家白名单
	ProductIDs               UintArray   `gorm:"type:json" json:"product_ids"`                                         // 适用商品
	CategoryIDs              UintArray   `gorm:"type:json" json:"category_ids"`                                        // 适用分类
	CollectionIDs            UintArray   `gorm:"type:json" json:"collection_ids"`                                      // 适用集合
	VariantIDs               UintArray   `gorm:"type:json" json:"variant_ids"`                                         // 适用规格
	CreatedAt                time.Time   `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt                time.Time   `json:"updated_at"`                                                           // 更新时间

	ChannelListings []VoucherChannelListing `gorm:"foreignKey:VoucherID" json:"channel_listings,omitempty"`
}

// TableName 指定表名
func (Voucher) TableName() string {
	return "vouchers"
}

// BeforeSave 统一优惠码格式
func (v *Voucher) BeforeSave(tx *gorm.DB) error {
	v.Code = NormalizeCode(v.Code)
	return nil
}

// IsActiveAt 判断指定时间是否在有效期内
func (v *Voucher) IsActiveAt(now time.Time) bool {
	if v == nil || v.StartDate.After(now) {
		return false
	}
	return v.EndDate == nil || v.EndDate.After(now)
}

// ListingFor 返回指定渠道的配置
func (v *Voucher) ListingFor(channel string) *VoucherChannelListing {
	if v == nil {
		return nil
	}
	for i := range v.ChannelListings {
		if v.ChannelListings[i].Channel == channel {
			return &v.ChannelListings[i]
		}
	}
	return nil
}

// VoucherChannelListing 优惠码在渠道内的折扣值与门槛
type VoucherChannelListing struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	VoucherID     uint   `gorm:"not null;uniqueIndex:idx_voucher_channel" json:"voucher_id"`
	Channel       string `gorm:"type:varchar(64);not null;uniqueIndex:idx_voucher_channel" json:"channel"`
	Currency      string `gorm:"type:varchar(3);not null" json:"currency"`
	DiscountValue Money  `gorm:"type:decimal(20,2);not null;default:0" json:"discount_value"`
	MinSpent      *Money `gorm:"type:decimal(20,2)" json:"min_spent"`
	IsActive      bool   `gorm:"not null;default:true" json:"is_active"`
}

// TableName 指定表名
func (VoucherChannelListing) TableName() string {
	return "voucher_channel_listings"
}

// VoucherCustomer 记录“每位顾客限用一次”的使用者
type VoucherCustomer struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	VoucherID     uint      `gorm:"not null;uniqueIndex:idx_voucher_customer" json:"voucher_id"`
	CustomerEmail string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_voucher_customer" json:"customer_email"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (VoucherCustomer) TableName() string {
	return "voucher_customers"
}

// NormalizeCode 优惠码与礼品卡码统一为去空格大写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
