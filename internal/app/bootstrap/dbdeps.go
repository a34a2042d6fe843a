// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratablog/internal/app/system/mailer"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the backends created in ConnectDB and passed to the
// remaining lifecycle hooks. Shutdown closes them.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// FileStorage holds featured images.
	FileStorage storage.Store

	// Mailer delivers reply notifications.
	Mailer *mailer.Mailer
}
