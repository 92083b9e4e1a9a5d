// Package pg persists authorization state in PostgreSQL. Aggregates live in
// authorization_record with their token map as jsonb; token_index maps token
// digests back to aggregates and carries the consumed flag used for the
// conditional-update double-spend guard. ID tokens are never indexed.
package pg
