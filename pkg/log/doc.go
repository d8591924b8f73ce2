/*
Package log provides structured logging for all WindFlow components.

Built on zerolog. The composition root calls Init once; components take
child loggers via WithComponent and attach domain identifiers with the
WithDeployment/WithTarget/WithUser helpers so every line carries its
context as fields rather than formatted into the message.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("orchestrator")
	logger.Info().Str("deployment_id", id).Msg("worker started")

Console output (human-readable, RFC3339 timestamps) is the default;
JSONOutput switches to machine-parseable lines for production. Note
that this is process logging only: deployment logs shown to users are
stored on the Deployment row and follow the [INFO]/[ERROR]/... prefix
contract in pkg/types, not this package.
*/
package log
