package store

// database/sql driver registrations shared by the application store and the
// tenant pools the datasource cache constructs. A data source whose
// driver_name column is not registered here fails pool construction with a
// normal load error.
import (
	_ "github.com/lib/pq"           // driver_name "postgres"
	_ "github.com/mattn/go-sqlite3" // driver_name "sqlite3"
)
