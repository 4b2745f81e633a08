package booking

import "go.uber.org/fx"

// Module provides the booking service to Fx.
var Module = fx.Provide(NewService)
