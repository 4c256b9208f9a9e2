// Package events defines the runtime's observable event taxonomy and the
// emitters that deliver events to external subscribers.
//
// Emission is non-blocking by contract: an emitter must never stall the
// component that raised the event. Delivery is at-least-once for the Redis
// publisher and best-effort (drop on full buffer) for the in-process bus.
package events
