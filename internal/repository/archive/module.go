package archive

import "go.uber.org/fx"

// Module provides the archive repository to Fx.
var Module = fx.Provide(NewRepository)
