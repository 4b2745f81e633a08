package booking

import "go.uber.org/fx"

// Module provides the active booking repository to Fx.
var Module = fx.Provide(NewRepository)
