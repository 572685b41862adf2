// Package migrations embeds the ledger schema into the binary and registers
// it with the database package. Import it for side effects:
//
//	import _ "github.com/onehud/registrar/migrations"
package migrations

import (
	"embed"

	"github.com/onehud/registrar/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.Migrations = files
	database.MigrationsDir = "."
}
