// Package database provides the relational side of the harness: connection
// setup for PostgreSQL (pgx) or SQLite (modernc), embedded goose
// migrations, the query executor used by bulk generation, the user
// directory and the database notification channel. Queries are built with
// goqu so the same code serves both dialects.
package database
