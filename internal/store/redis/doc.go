// Package redis backs the persistence contracts with a shared Redis
// instance, so multiple server processes see one consistent token space.
// One-shot semantics (code consumption, challenge take) lean on Redis
// primitives that are atomic server-side: SETNX and GETDEL.
package redis
