package admin

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/infinitetech/repairdesk/internal/transport/http/route"
)

// Module wires the admin dashboard handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		route.Mount(e, func(g *echo.Group) { Register(g, h) })
	}),
)
