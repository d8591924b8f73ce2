/*
Package render turns stack templates plus variables into executable
deployment specs.

The renderer walks a template (maps, slices, string leaves) and
evaluates each string leaf as a restricted expression language:

	{{ name }}                 substitute from the variable context
	{{ generate_password() }}  call one of the fixed generator functions

# Generator Library

The function set is closed:

  - generate_password(length=24, include_special=true)
  - generate_secret(length=32) — lowercase hex
  - random_string(length, charset) — alphanumeric, alpha, numeric, hex
  - generate_uuid(), generate_uuid_short()
  - base64_encode(s), base64_decode(s)
  - hash_value(s, algo) — sha256, sha512, md5, sha1
  - random_port(min=10000, max=65535)
  - get_valid_port(start=5432, max_attempts=100) — first locally
    bindable TCP port
  - env(name, default="")
  - now(format="%Y-%m-%d %H:%M:%S") — strftime directives
  - random_choice(options...)
  - generate_animalname/cosmicname/mythologyname(prefix="", style="")
    with style presets "", "ubuntu", "docker", "full"

# Error Semantics

Two failure classes are kept apart deliberately. Unknown variables and
unparsable expressions are non-fatal: the original text stays in place
and a warning is logged, so a half-filled template still renders.
A generator call that parses but fails to evaluate (port range
exhausted, invalid base64, unknown algorithm) returns an error from
Render, because silently keeping the literal would deploy a broken
spec.

# Render-Once Contract

All generators draw from crypto/rand and are non-deterministic. The
orchestrator renders a deployment exactly once, persists the rendered
variables and config on the row, and reuses those snapshots for every
retry; nothing in this package memoizes.

Variable merging happens before template rendering: MergeVariables
starts from stack defaults in declaration order, overlays user values,
and renders each value with the previously resolved variables as
context, so shallow cross-variable references work without a fixpoint
pass.
*/
package render
