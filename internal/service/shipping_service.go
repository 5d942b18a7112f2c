package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"
)

// ShippingMethodOption 可选配送方式（内部方式或外部方式）
type ShippingMethodOption struct {
	ID         uint         `json:"id,omitempty"`
	ExternalID string       `json:"external_id,omitempty"`
	Name       string       `json:"name"`
	ZoneID     uint         `json:"zone_id,omitempty"`
	Price      models.Price `json:"price"`
}

// Key 统一的配送方式标识
func (o ShippingMethodOption) Key() string {
	if o.ExternalID != "" {
		return o.ExternalID
	}
	return strconv.FormatUint(uint64(o.ID), 10)
}

// ExternalShippingMethod 外部应用提供的配送方式
type ExternalShippingMethod struct {
	ID                string
	Name              string
	Price             models.Price
	MinimumOrderPrice *models.Price
	MaximumOrderPrice *models.Price
}

// ExternalShippingResolver 外部配送方式来源
type ExternalShippingResolver interface {
	ListShippingMethods(ctx context.Context, checkout *models.Checkout, address *models.Address) ([]ExternalShippingMethod, error)
}

// ShippingService 配送方式可用性判断与重新校验
type ShippingService struct {
	repo     repository.ShippingRepository
	external ExternalShippingResolver
}

// NewShippingService 创建配送服务，external 可为空
func NewShippingService(repo repository.ShippingRepository, external ExternalShippingResolver) *ShippingService {
	return &ShippingService{repo: repo, external: external}
}

// EligibleMethods 返回当前地址与订单金额下可用的配送方式，basis 为用于订单金额门槛的金额
func (s *ShippingService) EligibleMethods(ctx context.Context, checkout *models.Checkout, shippingRequired bool, basis models.Price) ([]ShippingMethodOption, error) {
	if checkout == nil || !shippingRequired || checkout.ShippingAddress == nil {
		return nil, nil
	}
	country := checkout.ShippingAddress.CountryCode()
	if country == "" {
		return nil, nil
	}
	zones, err := s.repo.ListZonesByChannel(checkout.Channel)
	if err != nil {
		return nil, err
	}

	options := make([]ShippingMethodOption, 0)
	for _, zone := range matchZones(zones, country) {
		for i := range zone.Methods {
			method := &zone.Methods[i]
			listing := method.ListingFor(checkout.Channel)
			if listing == nil || models.NormalizeCurrency(listing.Currency) != checkout.Currency {
				continue
			}
			if !withinOrderPrice(basis, optionalPrice(listing.MinimumOrderPrice, checkout.Currency), optionalPrice(listing.MaximumOrderPrice, checkout.Currency)) {
				continue
			}
			options = append(options, ShippingMethodOption{
				ID:     method.ID,
				Name:   method.Name,
				ZoneID: zone.ID,
				Price:  models.PriceOf(listing.Price, checkout.Currency),
			})
		}
	}

	if s.external == nil {
		return options, nil
	}
	externals, err := s.external.ListShippingMethods(ctx, checkout, checkout.ShippingAddress)
	if err != nil {
		return nil, err
	}
	for _, method := range externals {
		if !strings.HasPrefix(method.ID, constants.ExternalShippingMethodPrefix) || method.Price.Currency != checkout.Currency {
			continue
		}
		if !withinOrderPrice(basis, method.MinimumOrderPrice, method.MaximumOrderPrice) {
			continue
		}
		options = append(options, ShippingMethodOption{ExternalID: method.ID, Name: method.Name, Price: method.Price})
	}
	return options, nil
}

// Revalidate 校验已选配送方式是否仍然有效，失效时清空选择；返回仍有效的方式
func (s *ShippingService) Revalidate(ctx context.Context, checkout *models.Checkout, shippingRequired bool, basis models.Price) (*ShippingMethodOption, bool, error) {
	if !checkout.HasDeliveryMethod() {
		return nil, false, nil
	}
	if !shippingRequired {
		clearDeliveryMethod(checkout, "shipping_not_required")
		return nil, true, nil
	}
	options, err := s.EligibleMethods(ctx, checkout, shippingRequired, basis)
	if err != nil {
		return nil, false, err
	}
	if selected := findSelectedMethod(checkout, options); selected != nil {
		return selected, false, nil
	}
	clearDeliveryMethod(checkout, "method_not_eligible")
	return nil, true, nil
}

func findSelectedMethod(checkout *models.Checkout, options []ShippingMethodOption) *ShippingMethodOption {
	external := strings.TrimSpace(checkout.ExternalShippingMethodID)
	for i := range options {
		option := &options[i]
		if external != "" && option.ExternalID == external {
			return option
		}
		if checkout.ShippingMethodID != nil && option.ExternalID == "" && option.ID == *checkout.ShippingMethodID {
			return option
		}
	}
	return nil
}

func clearDeliveryMethod(checkout *models.Checkout, reason string) {
	logger.Infow("checkout_delivery_method_cleared",
		"token", checkout.Token,
		"shipping_method_id", checkout.ShippingMethodID,
		"external_shipping_method_id", checkout.ExternalShippingMethodID,
		"reason", reason,
	)
	checkout.ClearDeliveryMethod()
}

// matchZones 优先使用明确覆盖该国家的区域，没有时回退到默认区域
func matchZones(zones []models.ShippingZone, country string) []models.ShippingZone {
	matched := make([]models.ShippingZone, 0, len(zones))
	for _, zone := range zones {
		if !zone.Default && zone.Countries.ContainsFold(country) {
			matched = append(matched, zone)
		}
	}
	if len(matched) > 0 {
		return matched
	}
	for _, zone := range zones {
		if zone.Default {
			matched = append(matched, zone)
		}
	}
	return matched
}

func optionalPrice(amount *models.Money, currency string) *models.Price {
	if amount == nil {
		return nil
	}
	price := models.PriceOf(*amount, currency)
	return &price
}

func withinOrderPrice(basis models.Price, minimum, maximum *models.Price) bool {
	if minimum != nil && minimum.Currency == basis.Currency && basis.LessThan(*minimum) {
		return false
	}
	if maximum != nil && maximum.Currency == basis.Currency && basis.GreaterThan(*maximum) {
		return false
	}
	return true
}
