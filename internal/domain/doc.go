// Package domain defines the core telemetry types and the contracts between
// the bridge and its adapters.
//
// No implementation code lives here, only value types and interfaces. Keeping
// them on this side prevents the adapters from importing each other.
package domain
