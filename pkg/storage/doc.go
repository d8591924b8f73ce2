/*
Package storage persists platform state in an embedded BoltDB file,
one bucket per entity (deployments, stacks, targets, users) with JSON
values keyed by ID.

Reads run in db.View transactions and writes in db.Update, so every
operation is atomic and readers never block each other. Create and
Update share the upsert path; deletes are idempotent. List operations
scan the bucket and filter in memory, which is fine at the entity
counts a single server manages.

Target credentials are encrypted at rest when a
security.SecretsManager is attached via SetSecretsManager; all other
values are stored as plain JSON.
*/
package storage
