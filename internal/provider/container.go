package provider

import (
	"time"

	"github.com/checkout-next/internal/cache"
	"github.com/checkout-next/internal/config"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/plugin"
	"github.com/checkout-next/internal/queue"
	"github.com/checkout-next/internal/repository"
	"github.com/checkout-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Plugins     plugin.Manager

	// Repositories
	CheckoutRepo repository.CheckoutRepository
	ProductRepo  repository.ProductRepository
	SaleRepo     repository.SaleRepository
	VoucherRepo  repository.VoucherRepository
	GiftCardRepo repository.GiftCardRepository
	ShippingRepo repository.ShippingRepository
	StockRepo    repository.StockRepository
	OrderRepo    repository.OrderRepository
	PaymentRepo  repository.PaymentRepository
	SettingRepo  repository.SettingRepository

	// Services
	SettingService  *service.SettingService
	DiscountService *service.DiscountService
	CheckoutService *service.CheckoutService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化插件
	c.initPlugins()

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CheckoutRepo = repository.NewCheckoutRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.SaleRepo = repository.NewSaleRepository(db)
	c.VoucherRepo = repository.NewVoucherRepository(db)
	c.GiftCardRepo = repository.NewGiftCardRepository(db)
	c.ShippingRepo = repository.NewShippingRepository(db)
	c.StockRepo = repository.NewStockRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initPlugins() {
	manager, err := plugin.NewManagerFromConfig(c.Config.Plugins, plugin.DefaultFactories())
	if err != nil {
		logger.Errorw("provider_init_plugins_failed", "error", err)
		panic(err)
	}
	logger.Infow("provider_plugins_loaded", "plugins", manager.Plugins())
	c.Plugins = manager
}

func (c *Container) initServices() {
	checkoutCfg := c.Config.Checkout
	c.SettingService = service.NewSettingService(c.SettingRepo, service.CheckoutSettingsFromConfig(checkoutCfg))
	c.DiscountService = service.NewDiscountService(c.SaleRepo, time.Duration(checkoutCfg.DiscountCacheSeconds)*time.Second)
	c.CheckoutService = service.NewCheckoutService(service.CheckoutServiceDeps{
		CheckoutRepo:    c.CheckoutRepo,
		ProductRepo:     c.ProductRepo,
		VoucherRepo:     c.VoucherRepo,
		GiftCardRepo:    c.GiftCardRepo,
		ShippingRepo:    c.ShippingRepo,
		StockRepo:       c.StockRepo,
		OrderRepo:       c.OrderRepo,
		PaymentRepo:     c.PaymentRepo,
		Discounts:       c.DiscountService,
		Settings:        c.SettingService,
		Plugins:         c.Plugins,
		QueueClient:     c.QueueClient,
		DefaultCurrency: checkoutCfg.DefaultCurrency,
	})
}
