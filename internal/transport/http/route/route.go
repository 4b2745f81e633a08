// Package route mounts transport handlers on the Echo router.
package route

import "github.com/labstack/echo/v4"

// Prefixes lists the path prefixes every route is reachable under.
var Prefixes = []string{"", "/api"}

// Mount calls register once per prefix so handlers answer on both /x and /api/x.
func Mount(e *echo.Echo, register func(g *echo.Group)) {
	for _, prefix := range Prefixes {
		register(e.Group(prefix))
	}
}
