// Package migrations holds the data migrations applied after the schema is
// created from the models.
package migrations

import "github.com/jmoiron/sqlx"

// Driver is the database driver name the migrations run against. It picks
// the placeholder style of the queries.
var Driver = "postgres"

func rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(Driver), query)
}
