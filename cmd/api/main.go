// Command api runs the booking HTTP and gRPC servers without the operator CLI.
package main

import (
	"go.uber.org/fx"

	"github.com/infinitetech/repairdesk/internal/app"
)

func main() {
	fx.New(app.API).Run()
}
