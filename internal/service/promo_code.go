package service

import (
	"strconv"
	"strings"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"
)

// PromoCodeKind 促销码类型
type PromoCodeKind int

const (
	PromoCodeVoucher PromoCodeKind = iota + 1
	PromoCodeGiftCard
)

func (k PromoCodeKind) String() string {
	switch k {
	case PromoCodeVoucher:
		return constants.PromoKindVoucher
	case PromoCodeGiftCard:
		return constants.PromoKindGiftCard
	default:
		return "unknown"
	}
}

// PromoCode 已解析的促销码：Voucher 与 GiftCard 二选一
type PromoCode struct {
	Kind     PromoCodeKind
	Voucher  *models.Voucher
	GiftCard *models.GiftCard
}

// PromoRef 通过 promo_id 引用的促销码（"voucher:<id>" 或 "gift_card:<id>"）
type PromoRef struct {
	Kind PromoCodeKind
	ID   uint
}

// PromoIDOf 生成 promo_id
func PromoIDOf(kind PromoCodeKind, id uint) string {
	return kind.String() + ":" + strconv.FormatUint(uint64(id), 10)
}

// ParsePromoID 解析 promo_id，格式不合法时返回输入错误
func ParsePromoID(raw string) (PromoRef, CheckoutErrors) {
	kind, rawID, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return PromoRef{}, inputError(constants.FieldPromoID, "promo id must look like <kind>:<id>")
	}
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		return PromoRef{}, inputError(constants.FieldPromoID, "promo id contains an invalid identifier")
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case constants.PromoKindVoucher:
		return PromoRef{Kind: PromoCodeVoucher, ID: uint(id)}, nil
	case constants.PromoKindGiftCard:
		return PromoRef{Kind: PromoCodeGiftCard, ID: uint(id)}, nil
	default:
		return PromoRef{}, inputError(constants.FieldPromoID, "promo id has an unknown kind")
	}
}

// promoResolver 按码一次性解析为优惠码或礼品卡，优惠码优先
type promoResolver struct {
	vouchers  repository.VoucherRepository
	giftCards repository.GiftCardRepository
}

func (r promoResolver) resolve(code string) (*PromoCode, error) {
	normalized := models.NormalizeCode(code)
	if normalized == "" {
		return nil, nil
	}
	voucher, err := r.vouchers.GetByCode(normalized)
	if err != nil {
		return nil, err
	}
	if voucher != nil {
		return &PromoCode{Kind: PromoCodeVoucher, Voucher: voucher}, nil
	}
	card, err := r.giftCards.GetByCode(normalized)
	if err != nil {
		return nil, err
	}
	if card != nil {
		return &PromoCode{Kind: PromoCodeGiftCard, GiftCard: card}, nil
	}
	return nil, nil
}
