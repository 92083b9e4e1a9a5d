// Package memory provides in-process implementations of the persistence
// contracts: authorization store, consent store, client registry and the
// one-shot challenge store. Suitable for development, tests and single-node
// deployments; the redis and pg backends provide the same contracts for
// shared stores.
package memory
