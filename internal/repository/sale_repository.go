package repository

import (
	"time"

	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
)

// SaleRepository 促销活动数据访问接口
type SaleRepository interface {
	ListActiveByChannel(channel string, now time.Time) ([]models.Sale, error)
	WithTx(tx *gorm.DB) *GormSaleRepository
}

// GormSaleRepository GORM 实现
type GormSaleRepository struct {
	db *gorm.DB
}

// NewSaleRepository 创建促销仓库
func NewSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSaleRepository) WithTx(tx *gorm.DB) *GormSaleRepository {
	if tx == nil {
		return r
	}
	return &GormSaleRepository{db: tx}
}

// ListActiveByChannel 获取指定渠道当前生效的促销，按 ID 升序（决定并列时的先后）
func (r *GormSaleRepository) ListActiveByChannel(channel string, now time.Time) ([]models.Sale, error) {
	var sales []models.Sale
	query := r.db.Model(&models.Sale{}).
		Joins("JOIN sale_channel_listings ON sale_channel_listings.sale_id = sales.id AND sale_channel_listings.channel = ?", channel).
		Where("sales.start_date <= ?", now).
		Where("(sales.end_date IS NULL OR sales.end_date > ?)", now).
		Preload("ChannelListings", "channel = ?", channel).
		Order("sales.id ASC")
	if err := query.Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}
