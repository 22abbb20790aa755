// Package database opens the connection pool described by the resolved
// settings: pgx for PostgreSQL, database/sql with the MySQL driver otherwise.
package database
