// Package app holds the broadcast core.
//
// Registry is the only state shared between the accept path and the broadcast
// path. Bridge drains a domain.Source, stamps each reading with its own clock,
// encodes it once and hands it to every registered viewer. Depends on domain
// interfaces, not on the transport or the device. Measurements go through
// BroadcastMetrics, which the Prometheus adapter implements.
package app
