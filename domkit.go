// Package domkit builds element trees from declarative node specs and reads
// values back out of them on behalf of a host application.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, rod/, websocket/).
package domkit
