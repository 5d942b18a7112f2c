package models

import "time"

// Payment 结算单关联的支付记录（由网关侧写入）
type Payment struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	CheckoutToken  string    `gorm:"type:varchar(36);index" json:"checkout_token"`
	OrderID        *uint     `gorm:"index" json:"order_id,omitempty"`
	Gateway        string    `gorm:"type:varchar(64);not null" json:"gateway"`
	PSPReference   string    `gorm:"type:varchar(255);index" json:"psp_reference"`
	Currency       string    `gorm:"type:varchar(3);not null" json:"currency"`
	Amount         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	CapturedAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"captured_amount"`
	Status         string    `gorm:"type:varchar(24);not null;index" json:"status"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
