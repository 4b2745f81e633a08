package http

import (
	"go.uber.org/fx"

	admintransport "github.com/infinitetech/repairdesk/internal/transport/http/admin"
	bookingtransport "github.com/infinitetech/repairdesk/internal/transport/http/booking"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	bookingtransport.Module,
	admintransport.Module,
)
