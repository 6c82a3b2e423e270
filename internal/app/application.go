package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/auth"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/cache"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/notify"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/accounts"
	catalogsvc "github.com/Aromatic05/CurioBox-sub000/internal/app/services/catalog"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/maintenance"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/orders"
	randomsvc "github.com/Aromatic05/CurioBox-sub000/internal/app/services/random"
	showcasesvc "github.com/Aromatic05/CurioBox-sub000/internal/app/services/showcase"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/uploads"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage/memory"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/system"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users     storage.UserStore
	Catalog   storage.CatalogStore
	Inventory storage.InventoryStore
	Showcase  storage.ShowcaseStore
}

// Options tunes the services. Zero values pick development defaults.
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
	// BcryptCost overrides the password hashing cost; tests lower it.
	BcryptCost int

	// Revocations and Cache default to process memory.
	Revocations auth.RevocationStore
	Cache       cache.Cache

	// Drawer overrides the crypto-random draw.
	Drawer orders.Drawer

	UploadDir      string
	UploadPrefix   string
	UploadMaxBytes int64

	// CheckOrigin gates websocket upgrades; nil allows any origin.
	CheckOrigin func(*http.Request) bool

	// Cron specs; empty disables the job.
	PruneSpec   string
	SummarySpec string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Tokens      *auth.Manager
	Accounts    *accounts.Service
	Catalog     *catalogsvc.Service
	Orders      *orders.Service
	Showcase    *showcasesvc.Service
	Uploads     *uploads.Service
	Random      *randomsvc.Service
	Notify      *notify.Hub
	Maintenance *maintenance.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	var mem *memory.Store
	lazyMem := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if stores.Users == nil {
		stores.Users = lazyMem()
	}
	if stores.Catalog == nil {
		stores.Catalog = lazyMem()
	}
	if stores.Inventory == nil {
		stores.Inventory = lazyMem()
	}
	if stores.Showcase == nil {
		stores.Showcase = lazyMem()
	}

	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	memRevocations, _ := opts.Revocations.(*auth.MemoryRevocations)
	if opts.Revocations == nil {
		memRevocations = auth.NewMemoryRevocations()
		opts.Revocations = memRevocations
	}
	memCache, _ := opts.Cache.(*cache.Memory)
	if opts.Cache == nil {
		memCache = cache.NewMemory()
		opts.Cache = memCache
	}

	tokens := auth.NewManager(opts.JWTSecret, opts.Issuer, opts.TokenTTL, opts.Revocations)
	acctService := accounts.New(stores.Users, tokens, log.Named("accounts"))
	if opts.BcryptCost > 0 {
		acctService.WithBcryptCost(opts.BcryptCost)
	}

	randomService := randomsvc.New(log.Named("random"))
	drawer := opts.Drawer
	if drawer == nil {
		drawer = randomService
	}

	hub := notify.NewHub(opts.CheckOrigin, log.Named("notify"))
	catalogService := catalogsvc.New(stores.Catalog, opts.Cache, log.Named("catalog"))
	orderService := orders.New(stores.Catalog, stores.Inventory, drawer, log.Named("orders"))
	showcaseService := showcasesvc.New(stores.Showcase, stores.Users, hub, log.Named("showcase"))
	uploadService := uploads.New(opts.UploadDir, opts.UploadPrefix, opts.UploadMaxBytes, log.Named("uploads"))

	jobs := maintenance.New(log.Named("maintenance"))
	if opts.PruneSpec != "" {
		if memRevocations != nil {
			if err := jobs.Add(maintenance.PruneJob("prune-revocations", opts.PruneSpec, memRevocations, log)); err != nil {
				return nil, err
			}
		}
		if memCache != nil {
			if err := jobs.Add(maintenance.PruneJob("prune-cache", opts.PruneSpec, memCache, log)); err != nil {
				return nil, err
			}
		}
	}
	if opts.SummarySpec != "" {
		if err := jobs.Add(maintenance.SummaryJob(opts.SummarySpec, orderService.Stats, log.Named("maintenance"))); err != nil {
			return nil, err
		}
	}

	manager := system.NewManager()
	for _, name := range []string{"accounts", "catalog", "orders", "showcase"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	for _, svc := range []system.Service{hub, jobs} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:     manager,
		log:         log,
		Tokens:      tokens,
		Accounts:    acctService,
		Catalog:     catalogService,
		Orders:      orderService,
		Showcase:    showcaseService,
		Uploads:     uploadService,
		Random:      randomService,
		Notify:      hub,
		Maintenance: jobs,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the registered lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Names()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
