// Package session implements the refresh-session lifecycle for the bakery backend.
//
// A session is an opaque refresh credential owned by a username. The package
// issues sessions under a per-user capacity limit (evicting the oldest usable
// session on overflow), validates and records their use, rotates them on
// refresh, revokes them by id, user or device, sweeps expired rows, and
// derives statistics and device anomaly reports from the stored population.
//
// Persistence is reached only through the Store port. MemoryStore serves dev
// runs and tests; PostgresStore is the production adapter.
//
// Transport (HTTP) integration and access-token signing are out of scope here.
package session
