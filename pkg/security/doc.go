// Package security provides AES-256-GCM encryption for secrets at
// rest. The storage layer uses it to encrypt target credentials before
// they hit disk.
package security
