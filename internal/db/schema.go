package db

import _ "embed"

// Schema is the DDL for every table the queries in this package touch. It is
// idempotent and applied by store.Migrate at startup.
//
//go:embed schema.sql
var Schema string
