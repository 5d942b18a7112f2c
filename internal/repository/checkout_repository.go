package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckoutRepository 结算单数据访问接口
type CheckoutRepository interface {
	Create(checkout *models.Checkout) error
	GetByToken(token string) (*models.Checkout, error)
	GetByTokenForUpdate(token string) (*models.Checkout, error)
	Update(checkout *models.Checkout) error
	Delete(token string) error
	CreateLine(line *models.CheckoutLine) error
	UpdateLineQuantity(lineID uint, quantity int) error
	DeleteLines(lineIDs []uint) error
	AttachGiftCard(token string, giftCardID uint) (bool, error)
	DetachGiftCard(token string, giftCardID uint) (bool, error)
	SaveAddress(address *models.Address) error
	ListExpiredTokens(before time.Time, limit int) ([]string, error)
	WithTx(tx *gorm.DB) *GormCheckoutRepository
}

// GormCheckoutRepository GORM 实现
type GormCheckoutRepository struct {
	db *gorm.DB
}

// NewCheckoutRepository 创建结算单仓库
func NewCheckoutRepository(db *gorm.DB) *GormCheckoutRepository {
	return &GormCheckoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCheckoutRepository) WithTx(tx *gorm.DB) *GormCheckoutRepository {
	if tx == nil {
		return r
	}
	return &GormCheckoutRepository{db: tx}
}

// withAssociations 行与礼品卡按插入顺序加载
func (r *GormCheckoutRepository) withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("ShippingAddress").
		Preload("BillingAddress").
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("checkout_lines.id ASC")
		}).
		Preload("GiftCards", func(db *gorm.DB) *gorm.DB {
			return db.Order("checkout_gift_cards.id ASC")
		}).
		Preload("GiftCards.GiftCard")
}

// Create 创建结算单（含初始行）
func (r *GormCheckoutRepository) Create(checkout *models.Checkout) error {
	if checkout == nil || strings.TrimSpace(checkout.Token) == "" {
		return errors.New("invalid checkout")
	}
	return r.db.Omit("ShippingAddress", "BillingAddress", "GiftCards").Create(checkout).Error
}

// GetByToken 根据 token 获取结算单
func (r *GormCheckoutRepository) GetByToken(token string) (*models.Checkout, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var checkout models.Checkout
	if err := r.withAssociations(r.db).Where("token = ?", token).First(&checkout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &checkout, nil
}

// GetByTokenForUpdate 加锁获取结算单
func (r *GormCheckoutRepository) GetByTokenForUpdate(token string) (*models.Checkout, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var checkout models.Checkout
	query := r.withAssociations(r.db.Clauses(clause.Locking{Strength: "UPDATE"}))
	if err := query.Where("token = ?", token).First(&checkout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &checkout, nil
}

// Update 仅保存结算单主记录，行与礼品卡通过专用方法维护
func (r *GormCheckoutRepository) Update(checkout *models.Checkout) error {
	if checkout == nil {
		return errors.New("invalid checkout")
	}
	return r.db.Omit(clause.Associations).Save(checkout).Error
}

// Delete 删除结算单及其行、礼品卡关联
func (r *GormCheckoutRepository) Delete(token string) error {
	if err := r.db.Where("checkout_token = ?", token).Delete(&models.CheckoutLine{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("checkout_token = ?", token).Delete(&models.CheckoutGiftCard{}).Error; err != nil {
		return err
	}
	return r.db.Where("token = ?", token).Delete(&models.Checkout{}).Error
}

// CreateLine 新增结算行
func (r *GormCheckoutRepository) CreateLine(line *models.CheckoutLine) error {
	return r.db.Create(line).Error
}

// UpdateLineQuantity 更新行数量
func (r *GormCheckoutRepository) UpdateLineQuantity(lineID uint, quantity int) error {
	return r.db.Model(&models.CheckoutLine{}).
		Where("id = ?", lineID).
		UpdateColumn("quantity", quantity).Error
}

// DeleteLines 批量删除结算行
func (r *GormCheckoutRepository) DeleteLines(lineIDs []uint) error {
	if len(lineIDs) == 0 {
		return nil
	}
	return r.db.Where("id IN ?", lineIDs).Delete(&models.CheckoutLine{}).Error
}

// AttachGiftCard 挂载礼品卡，已挂载时返回 false
func (r *GormCheckoutRepository) AttachGiftCard(token string, giftCardID uint) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.CheckoutGiftCard{
		CheckoutToken: token,
		GiftCardID:    giftCardID,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DetachGiftCard 卸载礼品卡，未挂载时返回 false
func (r *GormCheckoutRepository) DetachGiftCard(token string, giftCardID uint) (bool, error) {
	result := r.db.Where("checkout_token = ? AND gift_card_id = ?", token, giftCardID).
		Delete(&models.CheckoutGiftCard{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveAddress 创建或更新地址
func (r *GormCheckoutRepository) SaveAddress(address *models.Address) error {
	if address == nil {
		return errors.New("invalid address")
	}
	if address.ID == 0 {
		return r.db.Create(address).Error
	}
	return r.db.Save(address).Error
}

// ListExpiredTokens 查询长时间未变更的结算单
func (r *GormCheckoutRepository) ListExpiredTokens(before time.Time, limit int) ([]string, error) {
	tokens := make([]string, 0)
	query := r.db.Model(&models.Checkout{}).Where("last_change < ?", before).Order("last_change ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("token", &tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}
