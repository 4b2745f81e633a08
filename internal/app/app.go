package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/cache"
	"github.com/infinitetech/repairdesk/internal/config"
	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/logger"
	"github.com/infinitetech/repairdesk/internal/messaging"
	"github.com/infinitetech/repairdesk/internal/observability"
	archiverepo "github.com/infinitetech/repairdesk/internal/repository/archive"
	bookingrepo "github.com/infinitetech/repairdesk/internal/repository/booking"
	grpcserver "github.com/infinitetech/repairdesk/internal/server/grpc"
	httpserver "github.com/infinitetech/repairdesk/internal/server/http"
	bookingservice "github.com/infinitetech/repairdesk/internal/service/booking"
	transporthttp "github.com/infinitetech/repairdesk/internal/transport/http"
	"github.com/infinitetech/repairdesk/internal/worker"
	workerbooking "github.com/infinitetech/repairdesk/internal/worker/booking"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	bookingrepo.Module,
	archiverepo.Module,
	bookingservice.Module,
)

// FxLogging routes Fx lifecycle events through the service logger.
var FxLogging = fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})

// API wires the HTTP and gRPC servers on top of the core modules.
var API = fx.Options(
	Core,
	FxLogging,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	FxLogging,
	worker.Module,
	workerbooking.Module,
)

// Module is the default application wiring.
var Module = API
