package repository

import (
	"errors"

	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
)

// ProductRepository 商品目录数据访问接口
type ProductRepository interface {
	GetVariantByID(id uint) (*models.ProductVariant, error)
	ListVariantsByIDs(ids []uint) ([]models.ProductVariant, error)
	ListCollectionIDsByProductIDs(productIDs []uint) (map[uint][]uint, error)
	WithTx(tx *gorm.DB) *GormProductRepository
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品目录仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductRepository) WithTx(tx *gorm.DB) *GormProductRepository {
	if tx == nil {
		return r
	}
	return &GormProductRepository{db: tx}
}

func (r *GormProductRepository) withCatalog(query *gorm.DB) *gorm.DB {
	return query.
		Preload("ChannelListings").
		Preload("Product").
		Preload("Product.ChannelListings")
}

// GetVariantByID 获取规格及其商品、渠道配置
func (r *GormProductRepository) GetVariantByID(id uint) (*models.ProductVariant, error) {
	if id == 0 {
		return nil, nil
	}
	var variant models.ProductVariant
	if err := r.withCatalog(r.db).First(&variant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// ListVariantsByIDs 批量获取规格，已软删除商品的规格 Product 为空
func (r *GormProductRepository) ListVariantsByIDs(ids []uint) ([]models.ProductVariant, error) {
	if len(ids) == 0 {
		return []models.ProductVariant{}, nil
	}
	var variants []models.ProductVariant
	if err := r.withCatalog(r.db).Where("id IN ?", ids).Order("id ASC").Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// ListCollectionIDsByProductIDs 返回商品所属集合
func (r *GormProductRepository) ListCollectionIDsByProductIDs(productIDs []uint) (map[uint][]uint, error) {
	result := make(map[uint][]uint, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	var rows []models.CollectionProduct
	if err := r.db.Where("product_id IN ?", productIDs).
		Order("collection_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ProductID] = append(result[row.ProductID], row.CollectionID)
	}
	return result, nil
}
