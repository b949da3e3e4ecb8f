package database

import _ "embed"

// Schema is the full schema produced by applying every migration. Tests
// execute it directly against in-memory databases.
//
//go:embed schema.sql
var Schema string
