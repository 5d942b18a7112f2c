package repository

import (
	"errors"

	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
)

// ShippingRepository 配送区域与方式数据访问接口
type ShippingRepository interface {
	GetMethodByID(id uint) (*models.ShippingMethod, error)
	ListZonesByChannel(channel string) ([]models.ShippingZone, error)
	WithTx(tx *gorm.DB) *GormShippingRepository
}

// GormShippingRepository GORM 实现
type GormShippingRepository struct {
	db *gorm.DB
}

// NewShippingRepository 创建配送仓库
func NewShippingRepository(db *gorm.DB) *GormShippingRepository {
	return &GormShippingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShippingRepository) WithTx(tx *gorm.DB) *GormShippingRepository {
	if tx == nil {
		return r
	}
	return &GormShippingRepository{db: tx}
}

// GetMethodByID 获取配送方式及其区域、渠道价格
func (r *GormShippingRepository) GetMethodByID(id uint) (*models.ShippingMethod, error) {
	if id == 0 {
		return nil, nil
	}
	var method models.ShippingMethod
	if err := r.db.Preload("Zone").Preload("ChannelListings").First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &method, nil
}

// ListZonesByChannel 获取渠道可用的配送区域（渠道过滤在内存中完成，兼容 sqlite 与 postgres 的 JSON 列）
func (r *GormShippingRepository) ListZonesByChannel(channel string) ([]models.ShippingZone, error) {
	var zones []models.ShippingZone
	if err := r.db.
		Preload("Methods", func(db *gorm.DB) *gorm.DB {
			return db.Order("shipping_methods.id ASC")
		}).
		Preload("Methods.ChannelListings", "channel = ?", channel).
		Order("id ASC").
		Find(&zones).Error; err != nil {
		return nil, err
	}
	filtered := make([]models.ShippingZone, 0, len(zones))
	for _, zone := range zones {
		if len(zone.Channels) == 0 || zone.Channels.ContainsFold(channel) {
			filtered = append(filtered, zone)
		}
	}
	return filtered, nil
}
