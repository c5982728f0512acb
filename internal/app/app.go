package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/delivery/internal/cache"
	"github.com/Additional-Code/delivery/internal/config"
	"github.com/Additional-Code/delivery/internal/customer"
	"github.com/Additional-Code/delivery/internal/database"
	"github.com/Additional-Code/delivery/internal/logger"
	"github.com/Additional-Code/delivery/internal/messaging"
	"github.com/Additional-Code/delivery/internal/observability"
	repositoryorder "github.com/Additional-Code/delivery/internal/repository/order"
	grpcserver "github.com/Additional-Code/delivery/internal/server/grpc"
	httpserver "github.com/Additional-Code/delivery/internal/server/http"
	serviceorder "github.com/Additional-Code/delivery/internal/service/order"
	transporthttp "github.com/Additional-Code/delivery/internal/transport/http"
	"github.com/Additional-Code/delivery/internal/worker"
	workerorder "github.com/Additional-Code/delivery/internal/worker/order"
)

// Storage is the minimal graph for schema and data tooling.
var Storage = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Storage,
	cache.Module,
	customer.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
