// Package stores persists the history of settings runs in SQLite.
//
// Every run is recorded in the runs table when it starts and finished as
// succeeded or failed. A succeeded run also stores its settings tree in the
// snapshots table using the tagged JSON form of settings.Table, so integer
// and string keys and integer and double values survive the round trip.
// Schema changes are applied with embedded golang-migrate migrations.
package stores
