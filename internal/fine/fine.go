// Package fine defines the FINE protocol message model. FINE stands for
// "FIlesystem over NEtwork": a request/response protocol derived from FUSE in
// which a client asks a server to operate on nodes of an exported directory
// tree.
//
// The messages here are transport-independent. The stream subpackage frames
// them over a pair of byte streams, and the server subpackage implements an
// engine that answers them from a host directory.
//
// fine was initially written against FUSE 7.31.
package fine

// Request is used for protocol request messages which are sent by a client to
// the server.
type Request interface {
	fineRequest()
}

// Response is used for protocol response message types which are sent from the
// server after processing a request.
type Response interface {
	fineResponse()
}
