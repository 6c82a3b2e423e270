// Package app composes the CurioBox storefront: stores, services and their
// lifecycle.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── auth/               # JWT issuing, verification and revocation
//	├── cache/              # Catalog cache (memory or redis)
//	├── domain/             # Domain models (pure data structures)
//	│   ├── catalog/        # Boxes, items, probability tables
//	│   ├── inventory/      # Orders and warehouse boxes
//	│   ├── showcase/       # Posts, comments, tags
//	│   └── user/           # Accounts and roles
//	├── storage/            # Store interfaces and implementations
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic, one package per area
//	├── notify/             # Websocket notification hub
//	├── httpapi/            # HTTP handlers and routing
//	├── runtime/            # Process bootstrap (database, server, shutdown)
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/curiobox/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app/httpapi
//	      │                        │
//	      ▼                        ▼
//	internal/app (composition) ──► internal/app/services/*
//	                                     │
//	                                     ▼
//	                           internal/app/storage (interfaces)
//
// # Adding a New Area
//
//  1. Create domain models in internal/app/domain/<area>/
//  2. Add the store interface to internal/app/storage/interfaces.go
//  3. Implement it in internal/app/storage/memory/ and postgres/
//  4. Create the service in internal/app/services/<area>/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/handler_<area>.go
package app
