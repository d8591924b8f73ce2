// Package stack loads and validates stack definition files: the YAML
// documents that pair a deployment template with its variable schema
// and target parameters.
package stack
