package models

import "time"

// ShippingZone 配送区域
type ShippingZone struct {
	ID        uint        `gorm:"primarykey" json:"id"`
	Name      string      `gorm:"type:varchar(100);not null" json:"name"`
	Countries StringArray `gorm:"type:json" json:"countries"`
	Channels  StringArray `gorm:"type:json" json:"channels"`
	Default   bool        `gorm:"not null;default:false" json:"default"`  // 兜底区域：覆盖其他区域未覆盖的国家
	CreatedAt time.Time   `json:"created_at"`

	Methods []ShippingMethod `gorm:"foreignKey:ZoneID" json:"methods,omitempty"`
}

// TableName 指定表名
func (ShippingZone) TableName() string {
	return "shipping_zones"
}

// ShippingMethod 配送方式
type ShippingMethod struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ZoneID    uint      `gorm:"not null;index" json:"zone_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Type      string    `gorm:"type:varchar(16);not null;default:'price'" json:"type"`
	CreatedAt time.Time `json:"created_at"`

	Zone            *ShippingZone                  `gorm:"foreignKey:ZoneID" json:"-"`
	ChannelListings []ShippingMethodChannelListing `gorm:"foreignKey:ShippingMethodID" json:"channel_listings,omitempty"`
}

// TableName 指定表名
func (ShippingMethod) TableName() string {
	return "shipping_methods"
}

// ListingFor 返回指定渠道的价格配置
func (m *ShippingMethod) ListingFor(channel string) *ShippingMethodChannelListing {
	if m == nil {
		return nil
	}
	for i := range m.ChannelListings {
		if m.ChannelListings[i].Channel == channel {
			return &m.ChannelListings[i]
		}
	}
	return nil
}

// ShippingMethodChannelListing 配送方式在渠道内的价格与订单金额门槛
type ShippingMethodChannelListing struct {
	ID                uint   `gorm:"primarykey" json:"id"`
	ShippingMethodID  uint   `gorm:"not null;uniqueIndex:idx_shipping_method_channel" json:"shipping_method_id"`
	Channel           string `gorm:"type:varchar(64);not null;uniqueIndex:idx_shipping_method_channel" json:"channel"`
	Currency          string `gorm:"type:varchar(3);not null" json:"currency"`
	Price             Money  `gorm:"type:decimal(20,2);not null;default:0" json:"price"`
	MinimumOrderPrice *Money `gorm:"type:decimal(20,2)" json:"minimum_order_price"`
	MaximumOrderPrice *Money `gorm:"type:decimal(20,2)" json:"maximum_order_price"`
}

// TableName 指定表名
func (ShippingMethodChannelListing) TableName() string {
	return "shipping_method_channel_listings"
}
