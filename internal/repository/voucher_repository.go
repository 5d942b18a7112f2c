package repository

import (
	"errors"
	"strings"

	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoucherRepository 优惠码数据访问接口
type VoucherRepository interface {
	GetByID(id uint) (*models.Voucher, error)
	GetByCode(code string) (*models.Voucher, error)
	IncrementUsed(id uint) (bool, error)
	HasCustomerUsed(voucherID uint, email string) (bool, error)
	CreateCustomer(voucherID uint, email string) (bool, error)
	WithTx(tx *gorm.DB) *GormVoucherRepository
}

// GormVoucherRepository GORM 实现
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository 创建优惠码仓库
func NewVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVoucherRepository) WithTx(tx *gorm.DB) *GormVoucherRepository {
	if tx == nil {
		return r
	}
	return &GormVoucherRepository{db: tx}
}

// GetByID 根据 ID 获取优惠码
func (r *GormVoucherRepository) GetByID(id uint) (*models.Voucher, error) {
	if id == 0 {
		return nil, nil
	}
	var voucher models.Voucher
	if err := r.db.Preload("ChannelListings").First(&voucher, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// GetByCode 根据优惠码获取（大小写不敏感）
func (r *GormVoucherRepository) GetByCode(code string) (*models.Voucher, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	var voucher models.Voucher
	if err := r.db.Preload("ChannelListings").Where("code = ?", code).First(&voucher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// IncrementUsed 在未超出使用上限时增加使用次数
func (r *GormVoucherRepository) IncrementUsed(id uint) (bool, error) {
	result := r.db.Model(&models.Voucher{}).
		Where("id = ? AND (usage_limit IS NULL OR used < usage_limit)", id).
		UpdateColumn("used", gorm.Expr("used + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// HasCustomerUsed 顾客是否已使用过该优惠码
func (r *GormVoucherRepository) HasCustomerUsed(voucherID uint, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if voucherID == 0 || email == "" {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.VoucherCustomer{}).
		Where("voucher_id = ? AND customer_email = ?", voucherID, email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateCustomer 记录顾客使用，已存在时返回 false
func (r *GormVoucherRepository) CreateCustomer(voucherID uint, email string) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.VoucherCustomer{
		VoucherID:     voucherID,
		CustomerEmail: strings.ToLower(strings.TrimSpace(email)),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
