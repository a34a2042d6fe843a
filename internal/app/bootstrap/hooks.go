// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires the blog into the WAFFLE lifecycle. app.Run calls them in
// order, from configuration loading to graceful shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "stratablog",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,    // MongoDB, image storage, mailer
	EnsureSchema:   EnsureSchema, // validators + indexes
	Startup:        Startup,      // admin provisioning, background jobs
	BuildHandler:   BuildHandler,
	Shutdown:       Shutdown,
}
