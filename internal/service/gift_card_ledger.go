package service

import (
	"strings"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"
)

// Requester 发起变更的用户身份（可为空）
type Requester struct {
	UserID *uint
	Email  string
}

// GiftCardSummary 结算单上礼品卡的展示信息
type GiftCardSummary struct {
	ID      uint         `json:"id"`
	PromoID string       `json:"promo_id"` // 移除礼品卡时使用
	Code    string       `json:"code"`
	Balance models.Price `json:"balance"`
	Offset  models.Price `json:"offset"`
	Usable  bool         `json:"usable"`
}

// GiftCardLedger 礼品卡挂载、解绑与抵扣预览
type GiftCardLedger struct {
	repo repository.GiftCardRepository
}

// NewGiftCardLedger 创建礼品卡账本
func NewGiftCardLedger(repo repository.GiftCardRepository) *GiftCardLedger {
	return &GiftCardLedger{repo: repo}
}

// ValidateAttach 校验礼品卡能否挂载到结算单
func ValidateAttach(card *models.GiftCard, checkout *models.Checkout, requester Requester, now time.Time) CheckoutErrors {
	if card == nil {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "promo code is invalid")
	}
	if !card.IsActive {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "gift card is inactive")
	}
	if card.IsExpiredAt(now) {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "gift card is expired")
	}
	if models.NormalizeCurrency(card.Currency) != checkout.Currency {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "gift card currency does not match checkout")
	}
	if !card.CurrentBalance.Decimal.IsPositive() {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "gift card has no balance left")
	}
	if !giftCardUsableBy(card, requester, checkout.Email) {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "gift card belongs to another customer")
	}
	return nil
}

// Attach 在结算单上挂载礼品卡（仅内存），已挂载时直接返回 false，不再校验余额与有效期
func (l *GiftCardLedger) Attach(checkout *models.Checkout, card *models.GiftCard, requester Requester, now time.Time) (bool, CheckoutErrors) {
	if card != nil && checkout.HasGiftCard(card.ID) {
		return false, nil
	}
	if errs := ValidateAttach(card, checkout, requester, now); len(errs) > 0 {
		return false, errs
	}
	checkout.GiftCards = append(checkout.GiftCards, models.CheckoutGiftCard{
		CheckoutToken: checkout.Token,
		GiftCardID:    card.ID,
		GiftCard:      card,
		CreatedAt:     now,
	})
	return true, nil
}

// Detach 从结算单上移除礼品卡（仅内存），未挂载时为无操作
func (l *GiftCardLedger) Detach(checkout *models.Checkout, giftCardID uint) bool {
	if !checkout.HasGiftCard(giftCardID) {
		return false
	}
	kept := make([]models.CheckoutGiftCard, 0, len(checkout.GiftCards))
	for _, item := range checkout.GiftCards {
		if item.GiftCardID != giftCardID {
			kept = append(kept, item)
		}
	}
	checkout.GiftCards = kept
	return true
}

// FindByCode 按卡号查询礼品卡
func (l *GiftCardLedger) FindByCode(code string) (*models.GiftCard, error) {
	return l.repo.GetByCode(code)
}

// AttachedCards 读取结算单挂载的礼品卡最新状态，按挂载顺序返回
func (l *GiftCardLedger) AttachedCards(checkout *models.Checkout) ([]models.GiftCard, error) {
	ids := checkout.GiftCardIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	cards, err := l.repo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.GiftCard, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}
	ordered := make([]models.GiftCard, 0, len(ids))
	for _, id := range ids {
		if card, ok := byID[id]; ok {
			ordered = append(ordered, card)
		}
	}
	return ordered, nil
}

// AvailableOffset 预览礼品卡可抵扣金额：仅读取当前余额，不做预留
func AvailableOffset(card *models.GiftCard, currency string, now time.Time) models.Price {
	zero := models.ZeroPrice(currency)
	if card == nil || !card.IsActive || card.IsExpiredAt(now) {
		return zero
	}
	if models.NormalizeCurrency(card.Currency) != zero.Currency {
		return zero
	}
	return card.BalancePrice().FloorZero()
}

// TotalOffset 可用余额之和，不超过应付总额
func TotalOffset(cards []models.GiftCard, total models.Price, now time.Time) models.Price {
	sum := models.ZeroPrice(total.Currency)
	for i := range cards {
		sum = sum.Add(AvailableOffset(&cards[i], total.Currency, now))
	}
	return sum.Min(total.FloorZero())
}

// summarizeGiftCards 按挂载顺序依次抵扣，生成展示信息
func summarizeGiftCards(cards []models.GiftCard, payable models.Price, now time.Time) []GiftCardSummary {
	remaining := payable.FloorZero()
	result := make([]GiftCardSummary, 0, len(cards))
	for i := range cards {
		card := &cards[i]
		available := AvailableOffset(card, payable.Currency, now)
		offset := available.Min(remaining)
		remaining = remaining.SubFloor(offset)
		result = append(result, GiftCardSummary{
			ID:      card.ID,
			PromoID: PromoIDOf(PromoCodeGiftCard, card.ID),
			Code:    card.DisplayCode(),
			Balance: card.BalancePrice(),
			Offset:  offset,
			Usable:  available.IsPositive(),
		})
	}
	return result
}

func giftCardUsableBy(card *models.GiftCard, requester Requester, checkoutEmail string) bool {
	if card.UsedByID != nil {
		return requester.UserID != nil && *requester.UserID == *card.UsedByID
	}
	bound := strings.TrimSpace(card.UsedByEmail)
	if bound == "" {
		return true
	}
	email := strings.TrimSpace(requester.Email)
	if email == "" {
		email = strings.TrimSpace(checkoutEmail)
	}
	return strings.EqualFold(bound, email)
}
