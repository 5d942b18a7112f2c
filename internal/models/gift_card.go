package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// GiftCard 礼品卡（储值凭证）
type GiftCard struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	Code           string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`               // 卡号（统一大写，不对外输出）
	Currency       string         `gorm:"type:varchar(3);not null" json:"currency"`                     // 币种
	InitialBalance Money          `gorm:"type:decimal(20,2);not null;default:0" json:"initial_balance"` // 初始余额
	CurrentBalance Money          `gorm:"type:decimal(20,2);not null;default:0" json:"current_balance"` // 当前余额
	IsActive       bool           `gorm:"not null;default:true;index" json:"is_active"`                 // 是否启用
	ExpiryDate     *time.Time     `gorm:"index" json:"expiry_date"`                                     // 过期时间
	UsedByID       *uint          `gorm:"index" json:"used_by_id,omitempty"`                            // 绑定用户
	UsedByEmail    string         `gorm:"type:varchar(255);index" json:"used_by_email,omitempty"`       // 绑定邮箱
	CreatedByID    *uint          `json:"created_by_id,omitempty"`                                      // 创建人
	CreatedByEmail string         `gorm:"type:varchar(255)" json:"created_by_email,omitempty"`          // 创建人邮箱
	LastUsedOn     *time.Time     `json:"last_used_on"`                                                 // 最近使用时间
	Version        int            `gorm:"not null;default:0" json:"-"`                                  // 乐观锁版本
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt      time.Time      `json:"updated_at"`                                                   // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (GiftCard) TableName() string {
	return "gift_cards"
}

// BeforeSave 统一卡号格式
func (g *GiftCard) BeforeSave(tx *gorm.DB) error {
	g.Code = NormalizeCode(g.Code)
	return nil
}

// IsExpiredAt 判断是否已过期
func (g *GiftCard) IsExpiredAt(now time.Time) bool {
	if g == nil || g.ExpiryDate == nil {
		return false
	}
	return !g.ExpiryDate.After(now)
}

// DisplayCode 掩码后的卡号，仅保留末 4 位
func (g *GiftCard) DisplayCode() string {
	if g == nil {
		return ""
	}
	code := strings.TrimSpace(g.Code)
	if len(code) <= 4 {
		return "****"
	}
	return "****-" + code[len(code)-4:]
}

// BalancePrice 当前余额（带币种）
func (g *GiftCard) BalancePrice() Price {
	return PriceOf(g.CurrentBalance, g.Currency)
}

// GiftCardEvent 礼品卡流水事件
type GiftCardEvent struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	GiftCardID    uint      `gorm:"not null;index" json:"gift_card_id"`
	Type          string    `gorm:"type:varchar(32);not null;index" json:"type"`
	OrderID       *uint     `gorm:"index" json:"order_id,omitempty"`
	UserID        *uint     `json:"user_id,omitempty"`
	Email         string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	Amount        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	BalanceBefore Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_before"`
	BalanceAfter  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (GiftCardEvent) TableName() string {
	return "gift_card_events"
}
