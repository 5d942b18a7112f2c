package repository

import (
	"errors"

	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStockInsufficient 扣减时库存不足
var ErrStockInsufficient = errors.New("stock insufficient")

// StockRepository 库存数据访问接口
type StockRepository interface {
	SumAvailable(variantIDs []uint) (map[uint]int, error)
	Decrease(variantID uint, quantity int) error
	WithTx(tx *gorm.DB) *GormStockRepository
}

// GormStockRepository GORM 实现
type GormStockRepository struct {
	db *gorm.DB
}

// NewStockRepository 创建库存仓库
func NewStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStockRepository) WithTx(tx *gorm.DB) *GormStockRepository {
	if tx == nil {
		return r
	}
	return &GormStockRepository{db: tx}
}

// SumAvailable 汇总各规格在所有仓库的可用库存（未建库存记录的规格不出现在结果中）
func (r *GormStockRepository) SumAvailable(variantIDs []uint) (map[uint]int, error) {
	result := make(map[uint]int, len(variantIDs))
	if len(variantIDs) == 0 {
		return result, nil
	}
	var stocks []models.Stock
	if err := r.db.Where("variant_id IN ?", variantIDs).Find(&stocks).Error; err != nil {
		return nil, err
	}
	for _, stock := range stocks {
		result[stock.VariantID] += stock.Available()
	}
	return result, nil
}

// Decrease 按仓库 ID 顺序扣减库存，须在事务中调用
func (r *GormStockRepository) Decrease(variantID uint, quantity int) error {
	if variantID == 0 || quantity <= 0 {
		return errors.New("invalid stock decrease params")
	}
	var stocks []models.Stock
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("variant_id = ?", variantID).
		Order("id ASC").
		Find(&stocks).Error; err != nil {
		return err
	}
	remaining := quantity
	for _, stock := range stocks {
		if remaining == 0 {
			break
		}
		take := stock.Available()
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		result := r.db.Model(&models.Stock{}).
			Where("id = ? AND quantity - quantity_allocated >= ?", stock.ID, take).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", take))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStockInsufficient
		}
		remaining -= take
	}
	if remaining > 0 {
		return ErrStockInsufficient
	}
	return nil
}
