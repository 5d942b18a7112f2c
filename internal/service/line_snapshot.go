package service

import (
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"
)

// LineSnapshot 单个结算行在一次计算内的不可变视图
type LineSnapshot struct {
	LineID                   uint
	VariantID                uint
	ProductID                uint
	CategoryID               uint
	CollectionIDs            []uint
	ProductName              string
	VariantName              string
	SKU                      string
	Quantity                 int
	UnitPrice                models.Price
	RequiresShipping         bool
	ChargeTaxes              bool
	TrackInventory           bool
	QuantityLimitPerCustomer *int
}

// UndiscountedTotal 未打折行合计
func (l LineSnapshot) UndiscountedTotal() models.Price {
	return l.UnitPrice.Mul(l.Quantity)
}

// CatalogView 构建快照所需的目录数据
type CatalogView struct {
	Variants    map[uint]*models.ProductVariant
	Collections map[uint][]uint
}

// loadCatalogView 批量读取结算行引用的规格与集合
func loadCatalogView(repo repository.ProductRepository, lines []models.CheckoutLine) (CatalogView, error) {
	view := CatalogView{
		Variants:    make(map[uint]*models.ProductVariant, len(lines)),
		Collections: map[uint][]uint{},
	}
	if len(lines) == 0 {
		return view, nil
	}
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := repo.ListVariantsByIDs(ids)
	if err != nil {
		return view, err
	}
	productIDs := make([]uint, 0, len(variants))
	for i := range variants {
		view.Variants[variants[i].ID] = &variants[i]
		productIDs = append(productIDs, variants[i].ProductID)
	}
	collections, err := repo.ListCollectionIDsByProductIDs(productIDs)
	if err != nil {
		return view, err
	}
	view.Collections = collections
	return view, nil
}

// BuildLineSnapshots 为每个数量大于零的行生成快照，按插入顺序输出；
// 渠道内不可购买的行被剔除并按错误码汇总受影响的规格
func BuildLineSnapshots(checkout *models.Checkout, catalog CatalogView, now time.Time) ([]LineSnapshot, CheckoutErrors) {
	if checkout == nil {
		return nil, nil
	}
	snapshots := make([]LineSnapshot, 0, len(checkout.Lines))
	dropped := map[string][]uint{}
	order := make([]string, 0, 3)
	drop := func(code string, variantID uint) {
		if _, ok := dropped[code]; !ok {
			order = append(order, code)
		}
		dropped[code] = append(dropped[code], variantID)
	}

	for _, line := range checkout.Lines {
		if line.Quantity <= 0 {
			continue
		}
		variant := catalog.Variants[line.VariantID]
		if variant == nil || variant.Product == nil {
			drop(constants.ErrorCodeUnavailableVariantInChannel, line.VariantID)
			continue
		}
		product := variant.Product
		productListing := productListingFor(product, checkout.Channel)
		if productListing == nil {
			drop(constants.ErrorCodeUnavailableVariantInChannel, line.VariantID)
			continue
		}
		if !productListing.IsPublished {
			drop(constants.ErrorCodeProductNotPublished, line.VariantID)
			continue
		}
		if !productListing.IsAvailableForPurchase(now) {
			drop(constants.ErrorCodeProductUnavailableForPurchase, line.VariantID)
			continue
		}
		variantListing := variantListingFor(variant, checkout.Channel)
		if variantListing == nil || variantListing.Price == nil ||
			models.NormalizeCurrency(variantListing.Currency) != checkout.Currency {
			drop(constants.ErrorCodeUnavailableVariantInChannel, line.VariantID)
			continue
		}

		unitPrice := models.PriceOf(*variantListing.Price, checkout.Currency)
		if line.PriceOverride != nil {
			unitPrice = models.PriceOf(*line.PriceOverride, checkout.Currency)
		}
		categoryID := uint(0)
		if product.CategoryID != nil {
			categoryID = *product.CategoryID
		}
		snapshots = append(snapshots, LineSnapshot{
			LineID:                   line.ID,
			VariantID:                variant.ID,
			ProductID:                product.ID,
			CategoryID:               categoryID,
			CollectionIDs:            catalog.Collections[product.ID],
			ProductName:              product.Name,
			VariantName:              variant.Name,
			SKU:                      variant.SKU,
			Quantity:                 line.Quantity,
			UnitPrice:                unitPrice,
			RequiresShipping:         product.IsShippingRequired,
			ChargeTaxes:              product.ChargeTaxes,
			TrackInventory:           variant.TrackInventory,
			QuantityLimitPerCustomer: variant.QuantityLimitPerCustomer,
		})
	}

	var errs CheckoutErrors
	for _, code := range order {
		errs = append(errs, newCheckoutError(constants.FieldLines, code, unavailableLineMessage(code), dropped[code]...))
	}
	return snapshots, errs
}

// IsShippingRequired 任一行需要物流即需要配送
func IsShippingRequired(lines []LineSnapshot) bool {
	for _, line := range lines {
		if line.RequiresShipping {
			return true
		}
	}
	return false
}

func totalQuantity(lines []LineSnapshot) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

func productListingFor(product *models.Product, channel string) *models.ProductChannelListing {
	for i := range product.ChannelListings {
		if product.ChannelListings[i].Channel == channel {
			return &product.ChannelListings[i]
		}
	}
	return nil
}

func variantListingFor(variant *models.ProductVariant, channel string) *models.VariantChannelListing {
	for i := range variant.ChannelListings {
		if variant.ChannelListings[i].Channel == channel {
			return &variant.ChannelListings[i]
		}
	}
	return nil
}

func unavailableLineMessage(code string) string {
	switch code {
	case constants.ErrorCodeProductNotPublished:
		return "product is not published in this channel"
	case constants.ErrorCodeProductUnavailableForPurchase:
		return "product is not available for purchase yet"
	default:
		return "variant is not available in this channel"
	}
}
