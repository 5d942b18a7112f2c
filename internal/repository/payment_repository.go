package repository

import (
	"errors"
	"strings"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	ListCapturedByCheckout(token string) ([]models.Payment, error)
	AttachOrder(token string, orderID uint) error
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ListCapturedByCheckout 查询结算单下尚未关联订单的已扣款支付
func (r *GormPaymentRepository) ListCapturedByCheckout(token string) ([]models.Payment, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return []models.Payment{}, nil
	}
	var payments []models.Payment
	if err := r.db.Where("checkout_token = ? AND status = ? AND order_id IS NULL", token, constants.PaymentStatusCaptured).
		Order("id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// AttachOrder 将结算单的支付关联到订单
func (r *GormPaymentRepository) AttachOrder(token string, orderID uint) error {
	return r.db.Model(&models.Payment{}).
		Where("checkout_token = ? AND order_id IS NULL", token).
		Update("order_id", orderID).Error
}
