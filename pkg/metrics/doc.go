/*
Package metrics exposes the platform's Prometheus instrumentation.

Collectors are package-level and registered in init(), so any package
can increment them without wiring. Counters tied to actions
(retries, API requests, active tasks) are updated at the call site;
inventory gauges (deployments by status, stacks, targets, WebSocket
connections) are refreshed by the polling Collector, which reads the
store on an interval so the gauges stay correct across restarts.

Handler returns the /metrics HTTP handler.
*/
package metrics
