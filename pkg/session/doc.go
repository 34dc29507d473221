// Package session owns the mapping from session id to a live browser
// instance and coordinates concurrent access to it.
//
// The package is built around four pieces:
//
//  1. Session: one browser handle plus bookkeeping metadata. All browser
//     access goes through Session.Use, which serializes operations per
//     session and refreshes the last-accessed timestamp on success.
//  2. Store: the concurrent id-to-session map, the only shared mutable
//     state. Iteration happens over snapshots so the reaper never mutates
//     while walking.
//  3. Manager: creation against the capacity ceiling, lookup, idempotent
//     termination, and the shutdown drain.
//  4. Reaper: a cancellable periodic task evicting sessions older than the
//     configured lifetime, continuing past individual failures.
//
// Browsers are provisioned through the Driver interface so the manager is
// testable without a real browser; the production implementation lives in
// pkg/driver/playwright.
//
// # Error taxonomy
//
// Failures surface as sentinel errors (ErrNotFound, ErrCapacityExceeded,
// ErrProvisioningFailed, ErrSessionClosed, ErrTimeout) matched with
// errors.Is at the API boundary. None of them should ever escalate to a
// process-level fault: a session failure affects that session only.
package session
