package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品
type Product struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                               // 主键
	CategoryID         *uint          `gorm:"index" json:"category_id,omitempty"`                 // 分类ID
	Slug               string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"` // 唯一标识
	Name               string         `gorm:"type:varchar(250);not null" json:"name"`             // 名称
	IsShippingRequired bool           `gorm:"not null;default:true" json:"is_shipping_required"`  // 是否需要物流配送
	ChargeTaxes        bool           `gorm:"not null;default:true" json:"charge_taxes"`          // 是否计税
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt          time.Time      `json:"updated_at"`                                         // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间

	ChannelListings []ProductChannelListing `gorm:"foreignKey:ProductID" json:"channel_listings,omitempty"`
	Variants        []ProductVariant        `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// ProductChannelListing 商品在渠道内的发布状态
type ProductChannelListing struct {
	ID                     uint       `gorm:"primarykey" json:"id"`
	ProductID              uint       `gorm:"not null;uniqueIndex:idx_product_channel" json:"product_id"`
	Channel                string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_channel" json:"channel"`
	IsPublished            bool       `gorm:"not null;default:false" json:"is_published"`
	PublishedAt            *time.Time `json:"published_at"`
	AvailableForPurchaseAt *time.Time `json:"available_for_purchase_at"`                                                // 为空表示不可购买
	VisibleInListings      bool       `gorm:"not null;default:true" json:"visible_in_listings"`
}

// TableName 指定表名
func (ProductChannelListing) TableName() string {
	return "product_channel_listings"
}

// IsAvailableForPurchase 判断指定时间是否已开放购买
func (l *ProductChannelListing) IsAvailableForPurchase(now time.Time) bool {
	if l == nil || l.AvailableForPurchaseAt == nil {
		return false
	}
	return !l.AvailableForPurchaseAt.After(now)
}

// ProductVariant 商品规格
type ProductVariant struct {
	ID                       uint      `gorm:"primarykey" json:"id"`
	ProductID                uint      `gorm:"not null;index" json:"product_id"`
	SKU                      string    `gorm:"type:varchar(255);uniqueIndex" json:"sku"`
	Name                     string    `gorm:"type:varchar(255)" json:"name"`
	TrackInventory           bool      `gorm:"not null;default:true" json:"track_inventory"`
	QuantityLimitPerCustomer *int      `json:"quantity_limit_per_customer"`
	CreatedAt                time.Time `gorm:"index" json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`

	Product         *Product                `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ChannelListings []VariantChannelListing `gorm:"foreignKey:VariantID" json:"channel_listings,omitempty"`
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}

// VariantChannelListing 规格在渠道内的价格
type VariantChannelListing struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	VariantID uint   `gorm:"not null;uniqueIndex:idx_variant_channel" json:"variant_id"`
	Channel   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_variant_channel" json:"channel"`
	Currency  string `gorm:"type:varchar(3);not null" json:"currency"`
	Price     *Money `gorm:"type:decimal(20,2)" json:"price"`                                          // 为空表示渠道内未定价
}

// TableName 指定表名
func (VariantChannelListing) TableName() string {
	return "variant_channel_listings"
}

// Stock 库存
type Stock struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	VariantID         uint      `gorm:"not null;uniqueIndex:idx_stock_variant_warehouse" json:"variant_id"`
	Warehouse         string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_stock_variant_warehouse" json:"warehouse"`
	Quantity          int       `gorm:"not null;default:0" json:"quantity"`
	QuantityAllocated int       `gorm:"not null;default:0" json:"quantity_allocated"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Stock) TableName() string {
	return "stocks"
}

// Available 可用库存
func (s Stock) Available() int {
	available := s.Quantity - s.QuantityAllocated
	if available < 0 {
		return 0
	}
	return available
}
