package models

import "time"

// Sale 商品促销（按商品/分类/集合/规格生效，不叠加）
type Sale struct {
	ID                uint       `gorm:"primarykey" json:"id"`
	Name              string     `gorm:"type:varchar(255);not null" json:"name"`
	DiscountValueType string     `gorm:"type:varchar(16);not null" json:"discount_value_type"`
	StartDate         time.Time  `gorm:"index;not null" json:"start_date"`
	EndDate           *time.Time `gorm:"index" json:"end_date"`
	ProductIDs        UintArray  `gorm:"type:json" json:"product_ids"`
	CategoryIDs       UintArray  `gorm:"type:json" json:"category_ids"`
	CollectionIDs     UintArray  `gorm:"type:json" json:"collection_ids"`
	VariantIDs        UintArray  `gorm:"type:json" json:"variant_ids"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	ChannelListings []SaleChannelListing `gorm:"foreignKey:SaleID" json:"channel_listings,omitempty"`
}

// TableName 指定表名
func (Sale) TableName() string {
	return "sales"
}

// IsActiveAt 判断指定时间是否在有效期内
func (s *Sale) IsActiveAt(now time.Time) bool {
	if s == nil || s.StartDate.After(now) {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}

// SaleChannelListing 促销在渠道内的折扣值
type SaleChannelListing struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	SaleID        uint   `gorm:"not null;uniqueIndex:idx_sale_channel" json:"sale_id"`
	Channel       string `gorm:"type:varchar(64);not null;uniqueIndex:idx_sale_channel" json:"channel"`
	Currency      string `gorm:"type:varchar(3);not null" json:"currency"`
	DiscountValue Money  `gorm:"type:decimal(20,2);not null;default:0" json:"discount_value"`
}

// TableName 指定表名
func (SaleChannelListing) TableName() string {
	return "sale_channel_listings"
}
