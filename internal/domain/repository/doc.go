// Package repository defines the persistence contracts of the authorization
// server core: registered clients, authorization aggregates and user consents.
//
// Implementations live under internal/store. The interfaces here are the only
// thing the protocol layer knows about persistence; backends differ in how
// they index token values and how they implement the conditional updates that
// prevent double-spending of one-shot artifacts.
package repository
