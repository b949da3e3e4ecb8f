package database

// schema.sql is derived from the migrations; regenerate it after adding one:
//   go generate ./internal/database
// CI can verify it with:
//   go run internal/database/tools/generate_schema.go -check

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
