// Package event defines the coordination event types and the bus that carries
// them. The bus decouples the registry, orchestrator, and violation monitor
// from external observers (reporting, logging sinks) without direct
// dependencies between them.
//
// Events follow the "category.action" naming convention:
//
//	plan.submitted, plan.rejected
//	conflict.detected
//	claim.registered, claim.pending, claim.released
//	batch.started, batch.completed
//	violation.detected
//	phase.changed
//
// The bus is synchronous: Publish calls every matching handler before
// returning. Handlers that panic are recovered and logged so one misbehaving
// observer cannot block delivery to the rest.
package event
