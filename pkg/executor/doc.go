/*
Package executor abstracts command execution on deployment targets.

Everything WindFlow does to a host — capability probes, docker and
docker compose invocations, compose file placement — goes through the
CommandExecutor interface, so the same code paths serve the local
machine (subprocess via sh -c) and remote targets (SSH, one multiplexed
connection with a session per command).

# Sudo Wrapping

When a target's credentials name a sudo user, every command is rewritten
to

	sudo -S -p '' -u USER sh -c 'COMMAND'

with the sudo password piped on stdin. Remote file writes use sudo -n
instead, because stdin carries the file content there.

# Result Semantics

Run separates two failure planes: infrastructure faults (cannot spawn,
connection lost, timeout) come back as Go errors, while a non-zero exit
from the command itself is a normal Result unless requireSuccess is
set. Probes rely on inspecting non-zero exits; deployment callers set
requireSuccess or check Result.ExitStatus themselves. Timeouts wrap
context.DeadlineExceeded so callers can map them to the "Timeout"
failure contract.
*/
package executor
