package repository

import (
	"errors"
	"time"

	"github.com/checkout-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GiftCardRepository 礼品卡仓储接口
type GiftCardRepository interface {
	GetByID(id uint) (*models.GiftCard, error)
	GetByCode(code string) (*models.GiftCard, error)
	GetByIDForUpdate(id uint) (*models.GiftCard, error)
	ListByIDs(ids []uint) ([]models.GiftCard, error)
	ConsumeBalance(card *models.GiftCard, amount models.Money, usedAt time.Time) (bool, error)
	BindUser(id uint, userID *uint, email string) (bool, error)
	ListExpiredActive(now time.Time, limit int) ([]models.GiftCard, error)
	Deactivate(id uint) (bool, error)
	CreateEvents(events []models.GiftCardEvent) error
	ListEvents(giftCardID uint) ([]models.GiftCardEvent, error)
	WithTx(tx *gorm.DB) *GormGiftCardRepository
}

// GormGiftCardRepository GORM 礼品卡仓储实现
type GormGiftCardRepository struct {
	db *gorm.DB
}

// NewGiftCardRepository 创建礼品卡仓储
func NewGiftCardRepository(db *gorm.DB) *GormGiftCardRepository {
	return &GormGiftCardRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGiftCardRepository) WithTx(tx *gorm.DB) *GormGiftCardRepository {
	if tx == nil {
		return r
	}
	return &GormGiftCardRepository{db: tx}
}

// GetByID 根据 ID 查询礼品卡
func (r *GormGiftCardRepository) GetByID(id uint) (*models.GiftCard, error) {
	if id == 0 {
		return nil, nil
	}
	var card models.GiftCard
	if err := r.db.First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByCode 根据卡号查询礼品卡（大小写不敏感）
func (r *GormGiftCardRepository) GetByCode(code string) (*models.GiftCard, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	var card models.GiftCard
	if err := r.db.Where("code = ?", code).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByIDForUpdate 加锁查询礼品卡
func (r *GormGiftCardRepository) GetByIDForUpdate(id uint) (*models.GiftCard, error) {
	if id == 0 {
		return nil, nil
	}
	var card models.GiftCard
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// ListByIDs 批量查询礼品卡，按 ID 升序
func (r *GormGiftCardRepository) ListByIDs(ids []uint) ([]models.GiftCard, error) {
	if len(ids) == 0 {
		return []models.GiftCard{}, nil
	}
	var cards []models.GiftCard
	if err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// ConsumeBalance 扣减余额：以读取时的版本号与余额作为条件，被并发修改时返回 false
func (r *GormGiftCardRepository) ConsumeBalance(card *models.GiftCard, amount models.Money, usedAt time.Time) (bool, error) {
	if card == nil || card.ID == 0 {
		return false, errors.New("invalid gift card")
	}
	if !amount.Decimal.IsPositive() {
		return true, nil
	}
	if card.CurrentBalance.Decimal.LessThan(amount.Decimal) {
		return false, nil
	}
	remaining := card.CurrentBalance.Sub(amount)
	result := r.db.Model(&models.GiftCard{}).
		Where("id = ? AND version = ? AND is_active = ?", card.ID, card.Version, true).
		Updates(map[string]interface{}{
			"current_balance": remaining,
			"last_used_on":    usedAt,
			"version":         gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	card.CurrentBalance = remaining
	card.LastUsedOn = &usedAt
	card.Version++
	return true, nil
}

// BindUser 绑定首次使用的用户，已绑定时返回 false
func (r *GormGiftCardRepository) BindUser(id uint, userID *uint, email string) (bool, error) {
	result := r.db.Model(&models.GiftCard{}).
		Where("id = ? AND used_by_id IS NULL AND (used_by_email IS NULL OR used_by_email = '')", id).
		Updates(map[string]interface{}{
			"used_by_id":    userID,
			"used_by_email": email,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpiredActive 查询已过期但仍启用的礼品卡
func (r *GormGiftCardRepository) ListExpiredActive(now time.Time, limit int) ([]models.GiftCard, error) {
	var cards []models.GiftCard
	query := r.db.Where("is_active = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", true, now).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// Deactivate 停用礼品卡
func (r *GormGiftCardRepository) Deactivate(id uint) (bool, error) {
	result := r.db.Model(&models.GiftCard{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"version":   gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateEvents 写入礼品卡流水
func (r *GormGiftCardRepository) CreateEvents(events []models.GiftCardEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.Create(&events).Error
}

// ListEvents 查询礼品卡流水
func (r *GormGiftCardRepository) ListEvents(giftCardID uint) ([]models.GiftCardEvent, error) {
	var events []models.GiftCardEvent
	if err := r.db.Where("gift_card_id = ?", giftCardID).Order("id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
