package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/queue"
	"github.com/checkout-next/internal/repository"

	"gorm.io/gorm"
)

// PaymentManager 查询结算单已确认收款的支付能力
type PaymentManager interface {
	CapturedAmount(ctx context.Context, checkout *models.Checkout) (models.Price, error)
}

// RecordedPaymentManager 基于支付记录表的实现（网关回调写入 captured 记录）
type RecordedPaymentManager struct {
	repo repository.PaymentRepository
}

// NewRecordedPaymentManager 创建支付查询
func NewRecordedPaymentManager(repo repository.PaymentRepository) *RecordedPaymentManager {
	return &RecordedPaymentManager{repo: repo}
}

// CapturedAmount 汇总尚未关联订单的已收款金额，忽略其他币种
func (m *RecordedPaymentManager) CapturedAmount(_ context.Context, checkout *models.Checkout) (models.Price, error) {
	total := models.ZeroPrice(checkout.Currency)
	if m == nil || m.repo == nil {
		return total, nil
	}
	payments, err := m.repo.ListCapturedByCheckout(checkout.Token)
	if err != nil {
		return total, err
	}
	for _, payment := range payments {
		if models.NormalizeCurrency(payment.Currency) != total.Currency {
			continue
		}
		total = total.Add(models.PriceOf(payment.CapturedAmount, total.Currency))
	}
	return total, nil
}

// CompleteCheckoutResult 结算完成结果
type CompleteCheckoutResult struct {
	Order          *models.Order  `json:"order"`
	GiftCardAmount models.Price   `json:"gift_card_amount"`
	Errors         CheckoutErrors `json:"errors"`
}

// CompleteCheckout 将结算单转为订单：礼品卡扣减、优惠码计次、库存扣减在同一事务内完成，任一失败整体回滚
func (s *CheckoutService) CompleteCheckout(ctx context.Context, token string, requester Requester) (*CompleteCheckoutResult, error) {
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	if len(state.lineErrs) > 0 {
		return nil, state.lineErrs
	}
	if len(state.snapshots) == 0 {
		return nil, domainError(constants.FieldLines, constants.ErrorCodeInvalid, "checkout has no lines")
	}
	if strings.TrimSpace(checkout.Email) == "" {
		return nil, domainError(constants.FieldEmail, constants.ErrorCodeEmailNotSet, "email is not set")
	}
	shippingRequired := IsShippingRequired(state.snapshots)
	if shippingRequired {
		if checkout.ShippingAddress == nil {
			return nil, domainError(constants.FieldShippingAddress, constants.ErrorCodeShippingAddressNotSet, "shipping address is not set")
		}
		if !checkout.HasDeliveryMethod() {
			return nil, domainError(constants.FieldDeliveryMethod, constants.ErrorCodeShippingMethodNotSet, "shipping method is not set")
		}
	}
	requests := stockRequestsFromLines(state.snapshots)
	stockErrs, err := s.stock.CheckAvailable(requests, state.settings.MaxLineQuantity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutCompleteFailed, err)
	}
	if len(stockErrs) > 0 {
		return nil, stockErrs
	}

	pricing, err := s.price(ctx, state)
	if err != nil {
		return nil, err
	}
	if pricing.VoucherRemoved {
		return nil, pricing.VoucherErrors
	}
	if shippingRequired && pricing.ShippingMethod == nil {
		return nil, domainError(constants.FieldDeliveryMethod, constants.ErrorCodeShippingMethodNotApplicable, "shipping method is not applicable")
	}
	captured, err := s.payments.CapturedAmount(ctx, checkout)
	if err != nil {
		logger.Warnw("checkout_payment_lookup_failed", "token", checkout.Token, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCheckoutCompleteFailed, err)
	}

	now := s.now()
	currency := checkout.Currency
	consumed := models.ZeroPrice(currency)
	order := &models.Order{}
	var giftCardIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		checkoutRepo := s.checkoutRepo.WithTx(tx)
		giftCardRepo := s.giftCardRepo.WithTx(tx)
		voucherRepo := s.voucherRepo.WithTx(tx)

		locked, err := checkoutRepo.GetByTokenForUpdate(checkout.Token)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrCheckoutNotFound
		}

		var events []models.GiftCardEvent
		var usedCards []*models.GiftCard
		for _, summary := range pricing.GiftCards {
			if !summary.Offset.IsPositive() {
				continue
			}
			card, err := giftCardRepo.GetByIDForUpdate(summary.ID)
			if err != nil {
				return err
			}
			take := AvailableOffset(card, currency, now).Min(summary.Offset)
			if !take.IsPositive() {
				logger.Warnw("gift_card_balance_exhausted", "token", checkout.Token, "gift_card_id", summary.ID)
				continue
			}
			before := card.CurrentBalance
			ok, err := giftCardRepo.ConsumeBalance(card, take.Amount, now)
			if err != nil {
				return err
			}
			if !ok {
				logger.Warnw("gift_card_consume_conflict", "token", checkout.Token, "gift_card_id", card.ID)
				continue
			}
			consumed = consumed.Add(take)
			usedCards = append(usedCards, card)
			events = append(events, models.GiftCardEvent{
				GiftCardID:    card.ID,
				Type:          constants.GiftCardEventUsedInOrder,
				UserID:        requesterUserID(requester, checkout),
				Email:         checkout.Email,
				Amount:        take.Amount,
				BalanceBefore: before,
				BalanceAfter:  card.CurrentBalance,
				CreatedAt:     now,
			})
		}
		if captured.Add(consumed).LessThan(pricing.TotalBeforeGiftCards.Gross) {
			return ErrCheckoutNotFullyPaid
		}

		if checkout.HasVoucher() {
			voucher, err := voucherRepo.GetByCode(*checkout.VoucherCode)
			if err != nil {
				return err
			}
			if voucher == nil {
				return ErrVoucherUsageExhausted
			}
			ok, err := voucherRepo.IncrementUsed(voucher.ID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrVoucherUsageExhausted
			}
			if voucher.ApplyOncePerCustomer {
				ok, err := voucherRepo.CreateCustomer(voucher.ID, checkout.Email)
				if err != nil {
					return err
				}
				if !ok {
					return ErrVoucherUsageExhausted
				}
			}
		}

		if err := s.stock.Decrease(s.stockRepo.WithTx(tx), requests); err != nil {
			return err
		}

		*order = buildOrder(checkout, pricing, requester, consumed, now)
		lines := buildOrderLines(pricing, currency, now)
		if err := s.orderRepo.WithTx(tx).Create(order, lines); err != nil {
			return err
		}
		order.Lines = lines

		for _, card := range usedCards {
			giftCardIDs = append(giftCardIDs, card.ID)
			bound, err := giftCardRepo.BindUser(card.ID, requesterUserID(requester, checkout), checkout.Email)
			if err != nil {
				return err
			}
			if bound {
				events = append(events, models.GiftCardEvent{
					GiftCardID:    card.ID,
					Type:          constants.GiftCardEventBound,
					UserID:        requesterUserID(requester, checkout),
					Email:         checkout.Email,
					BalanceBefore: card.CurrentBalance,
					BalanceAfter:  card.CurrentBalance,
					CreatedAt:     now,
				})
			}
		}
		for i := range events {
			orderID := order.ID
			events[i].OrderID = &orderID
		}
		if len(events) > 0 {
			if err := giftCardRepo.CreateEvents(events); err != nil {
				return err
			}
		}
		if err := s.paymentRepo.WithTx(tx).AttachOrder(checkout.Token, order.ID); err != nil {
			return err
		}
		return checkoutRepo.Delete(checkout.Token)
	})
	if err != nil {
		return nil, s.completionError(checkout, pricing, captured, consumed, err)
	}

	logger.Infow("checkout_completed",
		"token", checkout.Token,
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"total", order.TotalGross.String(),
		"gift_card_amount", consumed.Amount.String(),
	)
	if s.queueClient != nil && s.queueClient.Enabled() {
		payload := queue.CheckoutCompletedPayload{OrderID: order.ID, CheckoutToken: checkout.Token, GiftCardIDs: giftCardIDs}
		if err := s.queueClient.EnqueueCheckoutCompleted(payload); err != nil {
			logger.Warnw("checkout_completed_enqueue_failed", "order_id", order.ID, "error", err)
		}
	}
	return &CompleteCheckoutResult{Order: order, GiftCardAmount: consumed, Errors: CheckoutErrors{}}, nil
}

func (s *CheckoutService) completionError(checkout *models.Checkout, pricing *CheckoutPricing, captured, consumed models.Price, err error) error {
	switch {
	case errors.Is(err, ErrCheckoutNotFullyPaid):
		logger.Warnw("checkout_not_fully_paid",
			"token", checkout.Token,
			"total", pricing.TotalBeforeGiftCards.Gross.Amount.String(),
			"captured", captured.Amount.String(),
			"gift_card_consumed", consumed.Amount.String(),
		)
		return domainError(constants.FieldTotal, constants.ErrorCodeCheckoutNotFullyPaid, "checkout is not fully paid")
	case errors.Is(err, ErrVoucherUsageExhausted):
		return domainError(constants.FieldPromoCode, constants.ErrorCodeVoucherNotApplicable, "voucher usage limit reached")
	case errors.Is(err, repository.ErrStockInsufficient):
		return domainError(constants.FieldLines, constants.ErrorCodeInsufficientStock, "insufficient stock")
	case errors.Is(err, ErrCheckoutNotFound):
		return domainError(constants.FieldToken, constants.ErrorCodeNotFound, "checkout not found")
	}
	logger.Errorw("checkout_complete_failed", "token", checkout.Token, "error", err)
	return ErrCheckoutCompleteFailed
}

func buildOrder(checkout *models.Checkout, pricing *CheckoutPricing, requester Requester, giftCardAmount models.Price, now time.Time) models.Order {
	total := pricing.TotalBeforeGiftCards.SubFloor(giftCardAmount)
	order := models.Order{
		OrderNo:           generateOrderNo(now),
		CheckoutToken:     checkout.Token,
		Channel:           checkout.Channel,
		Currency:          checkout.Currency,
		Status:            constants.OrderStatusUnfulfilled,
		UserID:            requesterUserID(requester, checkout),
		Email:             checkout.Email,
		VoucherCode:       checkout.VoucherCode,
		ShippingAddressID: checkout.ShippingAddressID,
		SubtotalNet:       pricing.Subtotal.Net.Amount,
		SubtotalGross:     pricing.Subtotal.Gross.Amount,
		ShippingNet:       pricing.Shipping.Net.Amount,
		ShippingGross:     pricing.Shipping.Gross.Amount,
		DiscountAmount:    pricing.Discount.Amount,
		GiftCardAmount:    giftCardAmount.Amount,
		TotalNet:          total.Net.Amount,
		TotalGross:        total.Gross.Amount,
		CreatedAt:         now,
	}
	if method := pricing.ShippingMethod; method != nil {
		order.ShippingMethodName = method.Name
		if method.ID != 0 {
			id := method.ID
			order.ShippingMethodID = &id
		}
	}
	return order
}

func buildOrderLines(pricing *CheckoutPricing, currency string, now time.Time) []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(pricing.Lines))
	for _, line := range pricing.Lines {
		lines = append(lines, models.OrderLine{
			VariantID:             line.Snapshot.VariantID,
			ProductName:           line.Snapshot.ProductName,
			VariantName:           line.Snapshot.VariantName,
			SKU:                   line.Snapshot.SKU,
			Quantity:              line.Snapshot.Quantity,
			Currency:              currency,
			UndiscountedUnitPrice: line.Snapshot.UnitPrice.Amount,
			UnitPrice:             line.UnitPrice.Amount,
			TotalNet:              line.TaxedTotal.Net.Amount,
			TotalGross:            line.TaxedTotal.Gross.Amount,
			IsShippingRequired:    line.Snapshot.RequiresShipping,
			CreatedAt:             now,
		})
	}
	return lines
}

func requesterUserID(requester Requester, checkout *models.Checkout) *uint {
	if requester.UserID != nil {
		return requester.UserID
	}
	return checkout.UserID
}

func generateOrderNo(now time.Time) string {
	return fmt.Sprintf("CO%s%s", now.Format("20060102150405"), randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
