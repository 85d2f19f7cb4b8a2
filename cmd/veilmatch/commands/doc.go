// Package commands defines the veilmatch CLI.
//
// Commands
//
//   - serve       Run the HTTP API and NATS consumers
//   - migrate     Apply the database schema
//   - backfill    Replay archived trust signals
//   - score       Compute a trust score from a tally of actions
//   - grid        Draw the reveal grid for a trust score
//   - milestones  Show milestone progress for a sobriety date or day count
package commands
