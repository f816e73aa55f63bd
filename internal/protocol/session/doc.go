// Package session owns the command link to an external viewer process.
//
// The session listens on a local TCP endpoint, spawns the viewer with
// --hostAddress pointing at it, accepts exactly one connection back, and
// then exchanges one request and one response at a time. Responses are
// framed either by a single bounded read or by a delimiter byte.
//
// Kill asks the viewer for its process id over the link and signals that
// process. A viewer that has already gone away is not an error.
package session
