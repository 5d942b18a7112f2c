package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/plugin"
	"github.com/checkout-next/internal/queue"
	"github.com/checkout-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckoutServiceDeps 结算服务依赖
type CheckoutServiceDeps struct {
	CheckoutRepo     repository.CheckoutRepository
	ProductRepo      repository.ProductRepository
	VoucherRepo      repository.VoucherRepository
	GiftCardRepo     repository.GiftCardRepository
	ShippingRepo     repository.ShippingRepository
	StockRepo        repository.StockRepository
	OrderRepo        repository.OrderRepository
	PaymentRepo      repository.PaymentRepository
	Discounts        *DiscountService
	Settings         *SettingService
	Plugins          plugin.Manager
	ExternalShipping ExternalShippingResolver
	Payments         PaymentManager
	QueueClient      *queue.Client
	DefaultCurrency  string
}

// CheckoutService 结算单变更与定价服务
type CheckoutService struct {
	checkoutRepo    repository.CheckoutRepository
	productRepo     repository.ProductRepository
	voucherRepo     repository.VoucherRepository
	giftCardRepo    repository.GiftCardRepository
	stockRepo       repository.StockRepository
	orderRepo       repository.OrderRepository
	paymentRepo     repository.PaymentRepository
	discounts       *DiscountService
	settings        *SettingService
	vouchers        *VoucherEngine
	ledger          *GiftCardLedger
	shipping        *ShippingService
	stock           *StockService
	calculator      *CheckoutCalculator
	payments        PaymentManager
	promos          promoResolver
	queueClient     *queue.Client
	defaultCurrency string
	now             func() time.Time
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(deps CheckoutServiceDeps) *CheckoutService {
	vouchers := NewVoucherEngine(deps.VoucherRepo)
	shipping := NewShippingService(deps.ShippingRepo, deps.ExternalShipping)
	payments := deps.Payments
	if payments == nil {
		payments = NewRecordedPaymentManager(deps.PaymentRepo)
	}
	currency := models.NormalizeCurrency(deps.DefaultCurrency)
	if currency == "" {
		currency = "USD"
	}
	return &CheckoutService{
		checkoutRepo:    deps.CheckoutRepo,
		productRepo:     deps.ProductRepo,
		voucherRepo:     deps.VoucherRepo,
		giftCardRepo:    deps.GiftCardRepo,
		stockRepo:       deps.StockRepo,
		orderRepo:       deps.OrderRepo,
		paymentRepo:     deps.PaymentRepo,
		discounts:       deps.Discounts,
		settings:        deps.Settings,
		vouchers:        vouchers,
		ledger:          NewGiftCardLedger(deps.GiftCardRepo),
		shipping:        shipping,
		stock:           NewStockService(deps.StockRepo),
		calculator:      NewCheckoutCalculator(deps.Plugins, vouchers, shipping),
		payments:        payments,
		promos:          promoResolver{vouchers: deps.VoucherRepo, giftCards: deps.GiftCardRepo},
		queueClient:     deps.QueueClient,
		defaultCurrency: currency,
		now:             time.Now,
	}
}

// SetClock 替换时间来源（测试使用）
func (s *CheckoutService) SetClock(now func() time.Time) {
	s.now = now
	s.calculator.now = now
	if s.discounts != nil {
		s.discounts.now = now
	}
}

// CheckoutLineInput 结算行数量输入
type CheckoutLineInput struct {
	VariantID uint
	Quantity  int
}

// CreateCheckoutInput 创建结算单输入
type CreateCheckoutInput struct {
	Channel   string
	Currency  string
	Email     string
	Lines     []CheckoutLineInput
	Requester Requester
}

// AddressInput 地址输入
type AddressInput struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CompanyName    string `json:"company_name"`
	StreetAddress1 string `json:"street_address_1"`
	StreetAddress2 string `json:"street_address_2"`
	City           string `json:"city"`
	CityArea       string `json:"city_area"`
	PostalCode     string `json:"postal_code"`
	Country        string `json:"country"`
	CountryArea    string `json:"country_area"`
	Phone          string `json:"phone"`
}

// checkoutState 一次变更内复用的快照与目录数据
type checkoutState struct {
	checkout  *models.Checkout
	snapshots []LineSnapshot
	lineErrs  CheckoutErrors
	discounts []DiscountInfo
	settings  CheckoutSettings
}

// checkoutWrite 需要在事务中写入的附属变更
type checkoutWrite struct {
	address     *models.Address
	quantities  map[uint]int
	newLines    []*models.CheckoutLine
	deleteLines []uint
	attachCards []uint
	detachCards []uint
}

// Create 创建结算单
func (s *CheckoutService) Create(ctx context.Context, input CreateCheckoutInput) (*PricedCheckoutResult, error) {
	channel := strings.TrimSpace(input.Channel)
	if channel == "" {
		return nil, inputError(constants.FieldChannel, "channel is required")
	}
	currency := models.NormalizeCurrency(input.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, inputError(constants.FieldChannel, "currency must be a 3-letter code")
	}
	email, errs := normalizeCheckoutEmail(input.Email)
	if errs != nil {
		return nil, errs
	}
	lines, errs := mergeLineInputs(input.Lines, false)
	if errs != nil {
		return nil, errs
	}

	now := s.now()
	checkout := &models.Checkout{
		Token:      uuid.NewString(),
		Channel:    channel,
		Currency:   currency,
		Email:      email,
		UserID:     input.Requester.UserID,
		LastChange: now,
		CreatedAt:  now,
	}
	for _, line := range lines {
		checkout.Lines = append(checkout.Lines, models.CheckoutLine{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			CreatedAt: now,
		})
	}

	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	if len(state.lineErrs) > 0 {
		return nil, state.lineErrs
	}
	stockErrs, err := s.stock.CheckAvailable(stockRequestsFromLines(state.snapshots), state.settings.MaxLineQuantity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutCreateFailed, err)
	}
	if len(stockErrs) > 0 {
		return nil, stockErrs
	}
	pricing, err := s.price(ctx, state)
	if err != nil {
		return nil, err
	}
	if err := s.checkoutRepo.Create(checkout); err != nil {
		logger.Errorw("checkout_create_failed", "channel", channel, "error", err)
		return nil, ErrCheckoutCreateFailed
	}
	assignLineIDs(pricing, checkout)
	logger.Infow("checkout_created", "token", checkout.Token, "channel", channel, "lines", len(checkout.Lines))
	return buildPricedResult(checkout, pricing, nil), nil
}

// Get 获取结算单并计算金额（只读，不持久化自动修正）
func (s *CheckoutService) Get(ctx context.Context, token string) (*PricedCheckoutResult, error) {
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, state)
}

// UpdateEmail 更新结算单邮箱
func (s *CheckoutService) UpdateEmail(ctx context.Context, token, email string) (*PricedCheckoutResult, error) {
	normalized, errs := normalizeCheckoutEmail(email)
	if errs != nil {
		return nil, errs
	}
	if normalized == "" {
		return nil, inputError(constants.FieldEmail, "email is required")
	}
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(checkout.Email, normalized) {
		return s.view(ctx, state)
	}
	checkout.Email = normalized
	return s.priceAndCommit(ctx, state, checkoutWrite{}, false)
}

// UpdateLines 设置结算行数量：数量为 0 删除该行，新规格追加到末尾
func (s *CheckoutService) UpdateLines(ctx context.Context, token string, inputs []CheckoutLineInput) (*PricedCheckoutResult, error) {
	lines, errs := mergeLineInputs(inputs, true)
	if errs != nil {
		return nil, errs
	}
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	write := checkoutWrite{quantities: map[uint]int{}}
	touched := map[uint]bool{}
	for _, input := range lines {
		idx := -1
		for i := range checkout.Lines {
			if checkout.Lines[i].VariantID == input.VariantID {
				idx = i
				break
			}
		}
		switch {
		case idx >= 0 && input.Quantity == 0:
			write.deleteLines = append(write.deleteLines, checkout.Lines[idx].ID)
			checkout.Lines = append(checkout.Lines[:idx], checkout.Lines[idx+1:]...)
		case idx >= 0 && checkout.Lines[idx].Quantity != input.Quantity:
			checkout.Lines[idx].Quantity = input.Quantity
			write.quantities[checkout.Lines[idx].ID] = input.Quantity
			touched[input.VariantID] = true
		case idx < 0 && input.Quantity > 0:
			checkout.Lines = append(checkout.Lines, models.CheckoutLine{
				CheckoutToken: checkout.Token,
				VariantID:     input.VariantID,
				Quantity:      input.Quantity,
				CreatedAt:     now,
			})
			touched[input.VariantID] = true
		}
	}

	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	changed := len(write.deleteLines) > 0 || len(touched) > 0
	if !changed {
		return s.view(ctx, state)
	}
	if fatal := errorsForVariants(state.lineErrs, touched); len(fatal) > 0 {
		return nil, fatal
	}
	requests := make([]StockRequest, 0, len(touched))
	for _, req := range stockRequestsFromLines(state.snapshots) {
		if touched[req.VariantID] {
			requests = append(requests, req)
		}
	}
	stockErrs, err := s.stock.CheckAvailable(requests, state.settings.MaxLineQuantity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutUpdateFailed, err)
	}
	if len(stockErrs) > 0 {
		return nil, stockErrs
	}
	for i := range checkout.Lines {
		if checkout.Lines[i].ID == 0 {
			write.newLines = append(write.newLines, &checkout.Lines[i])
		}
	}
	return s.priceAndCommit(ctx, state, write, true)
}

// AddPromoCode 应用优惠码或礼品卡
func (s *CheckoutService) AddPromoCode(ctx context.Context, token, code string, requester Requester) (*PricedCheckoutResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, inputError(constants.FieldPromoCode, "promo code is required")
	}
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	promo, err := s.promos.resolve(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
	}
	if promo == nil {
		return nil, domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "promo code is invalid")
	}

	switch promo.Kind {
	case PromoCodeVoucher:
		voucher := promo.Voucher
		if checkout.HasVoucher() && models.NormalizeCode(*checkout.VoucherCode) == voucher.Code {
			return s.view(ctx, state)
		}
		errs, err := s.vouchers.Validate(voucher, VoucherCheck{
			Checkout:         checkout,
			Lines:            PriceLines(state.snapshots, state.discounts),
			Settings:         state.settings,
			ShippingRequired: IsShippingRequired(state.snapshots),
			Now:              s.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
		}
		if len(errs) > 0 {
			return nil, errs
		}
		voucherCode := voucher.Code
		checkout.VoucherCode = &voucherCode
		logger.Infow("checkout_voucher_applied", "token", checkout.Token, "voucher_id", voucher.ID)
		return s.priceAndCommit(ctx, state, checkoutWrite{}, true)
	case PromoCodeGiftCard:
		attached, errs := s.ledger.Attach(checkout, promo.GiftCard, requester, s.now())
		if len(errs) > 0 {
			return nil, errs
		}
		if !attached {
			return s.view(ctx, state)
		}
		logger.Infow("checkout_gift_card_attached", "token", checkout.Token, "gift_card_id", promo.GiftCard.ID)
		return s.priceAndCommit(ctx, state, checkoutWrite{attachCards: []uint{promo.GiftCard.ID}}, true)
	default:
		return nil, domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "promo code is invalid")
	}
}

// RemovePromoCode 移除优惠码或礼品卡，code 与 promoID 必须且只能提供一个；未挂载时为无操作
func (s *CheckoutService) RemovePromoCode(ctx context.Context, token string, code, promoID *string) (*PricedCheckoutResult, error) {
	hasCode := code != nil && strings.TrimSpace(*code) != ""
	hasID := promoID != nil && strings.TrimSpace(*promoID) != ""
	if hasCode == hasID {
		return nil, inputError(constants.FieldPromoCode, "exactly one of promo code or promo id must be provided")
	}
	var ref PromoRef
	if hasID {
		parsed, errs := ParsePromoID(*promoID)
		if errs != nil {
			return nil, errs
		}
		ref = parsed
	}
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}

	write := checkoutWrite{}
	removed := false
	if hasID {
		switch ref.Kind {
		case PromoCodeVoucher:
			removed, err = s.removeVoucherByID(checkout, ref.ID)
			if err != nil {
				return nil, err
			}
		case PromoCodeGiftCard:
			if s.ledger.Detach(checkout, ref.ID) {
				write.detachCards = append(write.detachCards, ref.ID)
				removed = true
			}
		}
	} else {
		normalized := models.NormalizeCode(*code)
		if checkout.HasVoucher() && models.NormalizeCode(*checkout.VoucherCode) == normalized {
			checkout.ClearVoucher()
			removed = true
		} else {
			card, err := s.giftCardRepo.GetByCode(normalized)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
			}
			if card != nil && s.ledger.Detach(checkout, card.ID) {
				write.detachCards = append(write.detachCards, card.ID)
				removed = true
			}
		}
	}
	if !removed {
		return s.view(ctx, state)
	}
	logger.Infow("checkout_promo_code_removed", "token", checkout.Token, "by_id", hasID)
	return s.priceAndCommit(ctx, state, write, true)
}

// UpdateShippingAddress 设置收货地址；纯数字商品结算单会保存地址但不影响金额
func (s *CheckoutService) UpdateShippingAddress(ctx context.Context, token string, input AddressInput) (*PricedCheckoutResult, error) {
	address, errs := addressFromInput(input)
	if errs != nil {
		return nil, errs
	}
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	if checkout.ShippingAddress != nil {
		address.ID = checkout.ShippingAddress.ID
		address.CreatedAt = checkout.ShippingAddress.CreatedAt
	}
	checkout.ShippingAddress = address
	return s.priceAndCommit(ctx, state, checkoutWrite{address: address}, IsShippingRequired(state.snapshots))
}

// UpdateDeliveryMethod 选择配送方式（内部方式 ID 或 "app:" 前缀的外部方式 ID）
func (s *CheckoutService) UpdateDeliveryMethod(ctx context.Context, token, methodID string) (*PricedCheckoutResult, error) {
	raw := strings.TrimSpace(methodID)
	if raw == "" {
		return nil, inputError(constants.FieldDeliveryMethod, "delivery method id is required")
	}
	var internalID uint
	external := ""
	if strings.HasPrefix(raw, constants.ExternalShippingMethodPrefix) {
		external = raw
	} else {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			return nil, inputError(constants.FieldDeliveryMethod, "delivery method id is invalid")
		}
		internalID = uint(parsed)
	}

	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	if !IsShippingRequired(state.snapshots) {
		return nil, domainError(constants.FieldDeliveryMethod, constants.ErrorCodeShippingNotRequired, "checkout does not require shipping")
	}
	if checkout.ShippingAddress == nil {
		return nil, domainError(constants.FieldShippingAddress, constants.ErrorCodeShippingAddressNotSet, "shipping address is not set")
	}
	if external != "" && checkout.ExternalShippingMethodID == external {
		return s.view(ctx, state)
	}
	if internalID != 0 && checkout.ShippingMethodID != nil && *checkout.ShippingMethodID == internalID {
		return s.view(ctx, state)
	}

	checkout.ClearDeliveryMethod()
	if external != "" {
		checkout.ExternalShippingMethodID = external
	} else {
		checkout.ShippingMethodID = &internalID
	}
	pricing, err := s.price(ctx, state)
	if err != nil {
		return nil, err
	}
	if pricing.ShippingCleared {
		return nil, domainError(constants.FieldDeliveryMethod, constants.ErrorCodeShippingMethodNotApplicable, "shipping method is not applicable")
	}
	if err := s.commit(state, pricing, checkoutWrite{}, true); err != nil {
		return nil, err
	}
	return buildPricedResult(checkout, pricing, state.lineErrs), nil
}

// ShippingMethods 列出当前可选的配送方式
func (s *CheckoutService) ShippingMethods(ctx context.Context, token string) ([]ShippingMethodOption, error) {
	checkout, err := s.loadCheckout(token)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, checkout)
	if err != nil {
		return nil, err
	}
	pricing, err := s.price(ctx, state)
	if err != nil {
		return nil, err
	}
	options, err := s.shipping.EligibleMethods(ctx, checkout, pricing.ShippingRequired, pricing.ShippingBasis)
	if err != nil {
		return nil, err
	}
	if options == nil {
		options = []ShippingMethodOption{}
	}
	return options, nil
}

func (s *CheckoutService) loadCheckout(token string) (*models.Checkout, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, inputError(constants.FieldToken, "checkout token is required")
	}
	checkout, err := s.checkoutRepo.GetByToken(token)
	if err != nil {
		logger.Warnw("checkout_fetch_failed", "token", token, "error", err)
		return nil, ErrCheckoutFetchFailed
	}
	if checkout == nil {
		return nil, domainError(constants.FieldToken, constants.ErrorCodeNotFound, "checkout not found")
	}
	return checkout, nil
}

func (s *CheckoutService) loadState(ctx context.Context, checkout *models.Checkout) (*checkoutState, error) {
	settings, err := s.settings.GetCheckoutSettings()
	if err != nil {
		logger.Warnw("checkout_settings_fetch_failed", "error", err)
	}
	catalog, err := loadCatalogView(s.productRepo, checkout.Lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
	}
	snapshots, lineErrs := BuildLineSnapshots(checkout, catalog, s.now())
	discounts, err := s.discounts.ActiveDiscounts(ctx, checkout.Channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
	}
	return &checkoutState{
		checkout:  checkout,
		snapshots: snapshots,
		lineErrs:  lineErrs,
		discounts: discounts,
		settings:  settings,
	}, nil
}

func (s *CheckoutService) price(ctx context.Context, state *checkoutState) (*CheckoutPricing, error) {
	checkout := state.checkout
	var voucher *models.Voucher
	if checkout.HasVoucher() {
		found, err := s.voucherRepo.GetByCode(*checkout.VoucherCode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
		}
		voucher = found
	}
	cards, err := s.ledger.AttachedCards(checkout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
	}
	return s.calculator.Compute(ctx, PricingInput{
		Checkout:  checkout,
		Lines:     state.snapshots,
		Discounts: state.discounts,
		Voucher:   voucher,
		GiftCards: cards,
		Settings:  state.settings,
	})
}

func (s *CheckoutService) view(ctx context.Context, state *checkoutState) (*PricedCheckoutResult, error) {
	pricing, err := s.price(ctx, state)
	if err != nil {
		return nil, err
	}
	return buildPricedResult(state.checkout, pricing, state.lineErrs), nil
}

// priceAndCommit 先完成全部计算，成功后才在事务中持久化
func (s *CheckoutService) priceAndCommit(ctx context.Context, state *checkoutState, write checkoutWrite, advance bool) (*PricedCheckoutResult, error) {
	pricing, err := s.price(ctx, state)
	if err != nil {
		return nil, err
	}
	if err := s.commit(state, pricing, write, advance); err != nil {
		return nil, err
	}
	assignLineIDs(pricing, state.checkout)
	return buildPricedResult(state.checkout, pricing, state.lineErrs), nil
}

func (s *CheckoutService) commit(state *checkoutState, pricing *CheckoutPricing, write checkoutWrite, advance bool) error {
	checkout := state.checkout
	dropped := droppedLineIDs(checkout, state.snapshots, write.deleteLines)
	write.deleteLines = append(write.deleteLines, dropped...)
	if pricing.VoucherRemoved || pricing.ShippingCleared || len(dropped) > 0 {
		advance = true
	}
	if checkout.HasVoucher() {
		checkout.DiscountAmount = pricing.Discount.Amount
		checkout.DiscountName = pricing.DiscountName
	} else {
		checkout.ClearVoucher()
	}
	if advance {
		checkout.LastChange = s.now()
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.checkoutRepo.WithTx(tx)
		if write.address != nil {
			if err := repo.SaveAddress(write.address); err != nil {
				return err
			}
			addressID := write.address.ID
			checkout.ShippingAddressID = &addressID
		}
		if len(write.deleteLines) > 0 {
			if err := repo.DeleteLines(write.deleteLines); err != nil {
				return err
			}
		}
		for lineID, quantity := range write.quantities {
			if err := repo.UpdateLineQuantity(lineID, quantity); err != nil {
				return err
			}
		}
		for _, line := range write.newLines {
			line.CheckoutToken = checkout.Token
			if err := repo.CreateLine(line); err != nil {
				return err
			}
		}
		for _, id := range write.attachCards {
			if _, err := repo.AttachGiftCard(checkout.Token, id); err != nil {
				return err
			}
		}
		for _, id := range write.detachCards {
			if _, err := repo.DetachGiftCard(checkout.Token, id); err != nil {
				return err
			}
		}
		return repo.Update(checkout)
	})
	if err != nil {
		logger.Errorw("checkout_update_failed", "token", checkout.Token, "error", err)
		return ErrCheckoutUpdateFailed
	}
	if len(dropped) > 0 {
		logger.Infow("checkout_lines_dropped", "token", checkout.Token, "line_ids", dropped)
		removed := make(map[uint]bool, len(dropped))
		for _, id := range dropped {
			removed[id] = true
		}
		kept := checkout.Lines[:0]
		for _, line := range checkout.Lines {
			if !removed[line.ID] {
				kept = append(kept, line)
			}
		}
		checkout.Lines = kept
	}
	return nil
}

// droppedLineIDs 已落库但未进入本次快照的行（不可售或数量为零），变更时一并删除
func droppedLineIDs(checkout *models.Checkout, snapshots []LineSnapshot, pending []uint) []uint {
	kept := make(map[uint]bool, len(snapshots)+len(pending))
	for _, snapshot := range snapshots {
		kept[snapshot.LineID] = true
	}
	for _, id := range pending {
		kept[id] = true
	}
	var dropped []uint
	for _, line := range checkout.Lines {
		if line.ID != 0 && !kept[line.ID] {
			dropped = append(dropped, line.ID)
		}
	}
	return dropped
}

func (s *CheckoutService) removeVoucherByID(checkout *models.Checkout, voucherID uint) (bool, error) {
	if !checkout.HasVoucher() {
		return false, nil
	}
	voucher, err := s.voucherRepo.GetByCode(*checkout.VoucherCode)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCheckoutFetchFailed, err)
	}
	if voucher == nil || voucher.ID != voucherID {
		return false, nil
	}
	checkout.ClearVoucher()
	return true, nil
}

// assignLineIDs 新建行落库后回填行 ID
func assignLineIDs(pricing *CheckoutPricing, checkout *models.Checkout) {
	ids := make(map[uint]uint, len(checkout.Lines))
	for _, line := range checkout.Lines {
		ids[line.VariantID] = line.ID
	}
	for i := range pricing.Lines {
		if pricing.Lines[i].Snapshot.LineID == 0 {
			pricing.Lines[i].Snapshot.LineID = ids[pricing.Lines[i].Snapshot.VariantID]
		}
	}
}

// mergeLineInputs 校验并合并同一规格的输入，后出现的数量覆盖之前的
func mergeLineInputs(inputs []CheckoutLineInput, allowZero bool) ([]CheckoutLineInput, CheckoutErrors) {
	merged := make([]CheckoutLineInput, 0, len(inputs))
	index := map[uint]int{}
	for _, input := range inputs {
		if input.VariantID == 0 {
			return nil, inputError(constants.FieldVariantID, "variant id is required")
		}
		if input.Quantity < 0 || (!allowZero && input.Quantity == 0) {
			return nil, domainError(constants.FieldQuantity, constants.ErrorCodeZeroQuantity, "quantity must be greater than zero", input.VariantID)
		}
		if idx, ok := index[input.VariantID]; ok {
			merged[idx].Quantity = input.Quantity
			continue
		}
		index[input.VariantID] = len(merged)
		merged = append(merged, input)
	}
	return merged, nil
}

// errorsForVariants 仅保留涉及本次变更规格的行错误
func errorsForVariants(errs CheckoutErrors, variants map[uint]bool) CheckoutErrors {
	var result CheckoutErrors
	for _, item := range errs {
		var hit []uint
		for _, id := range item.Variants {
			if variants[id] {
				hit = append(hit, id)
			}
		}
		if len(hit) > 0 {
			result = append(result, newCheckoutError(item.Field, item.Code, item.Message, hit...))
		}
	}
	return result
}

func normalizeCheckoutEmail(raw string) (string, CheckoutErrors) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", nil
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return "", inputError(constants.FieldEmail, "email is invalid")
	}
	return strings.ToLower(email), nil
}

func addressFromInput(input AddressInput) (*models.Address, CheckoutErrors) {
	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if len(country) != 2 {
		return nil, inputError(constants.FieldShippingAddress, "country must be an ISO 3166-1 alpha-2 code")
	}
	return &models.Address{
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		CompanyName:    strings.TrimSpace(input.CompanyName),
		StreetAddress1: strings.TrimSpace(input.StreetAddress1),
		StreetAddress2: strings.TrimSpace(input.StreetAddress2),
		City:           strings.TrimSpace(input.City),
		CityArea:       strings.TrimSpace(input.CityArea),
		PostalCode:     strings.TrimSpace(input.PostalCode),
		Country:        country,
		CountryArea:    strings.TrimSpace(input.CountryArea),
		Phone:          strings.TrimSpace(input.Phone),
	}, nil
}

// IsNotFound 判断错误是否为结算单不存在
func IsNotFound(err error) bool {
	if errors.Is(err, ErrCheckoutNotFound) {
		return true
	}
	list, ok := AsCheckoutErrors(err)
	return ok && list.HasCode(constants.ErrorCodeNotFound)
}
