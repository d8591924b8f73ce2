// Package scanner probes a host for Docker, Swarm, Kubernetes and
// virtualization capabilities over a CommandExecutor and normalizes
// the findings into a ScanResult. Individual probe failures accumulate
// as errors without aborting the scan.
package scanner
