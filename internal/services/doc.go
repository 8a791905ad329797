// package services defines interface Service for interacting with streaming catalogs.
//
// The pipeline consumes a catalog as a capability: list the account's
// favorites per entity kind, and fetch a downloadable artifact for an item at
// a configured quality. Qobuz is the only implementation; the interface keeps
// the reconciler and worker pools testable against doubles.
//
// Download errors are classified into transient (retryable within a cycle)
// and permanent (terminal) so retry orchestration can live in the worker
// pool rather than inside the client.
package services
