package models

import "time"

// Category 商品分类
type Category struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Slug      string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"type:varchar(250);not null" json:"name"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}

// Collection 商品集合
type Collection struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Slug      string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"type:varchar(250);not null" json:"name"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (Collection) TableName() string {
	return "collections"
}

// CollectionProduct 集合与商品的多对多关系
type CollectionProduct struct {
	CollectionID uint `gorm:"primarykey" json:"collection_id"`
	ProductID    uint `gorm:"primarykey;index" json:"product_id"`
}

// TableName 指定表名
func (CollectionProduct) TableName() string {
	return "collection_products"
}
