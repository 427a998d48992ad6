// Package database builds the process-wide database client: a raw query
// client speaking the Neon HTTP SQL protocol, a Bun ORM wrapper around it,
// and a pooled client whose transport follows the configured topology.
// It also carries query hooks, logging, and driver error classification.
package database
