// Package health holds the liveness and readiness probes served on the
// admin port and the public /-/ paths.
//
// Probes compose with [All]. [ShutdownGate] fails readiness while the
// server drains so the load balancer stops routing new visitors before
// in-flight consent writes are flushed.
package health
