// Package transport implements the one-producer/one-consumer queue socket
// between the sender process and the processing daemon.
//
// Messages are opaque document payloads tagged with a filename and page
// index, framed with length prefixes over plain TCP. Delivery is FIFO per
// connection and at-most-once per successful Send: a Send that returns nil is
// queued for the receiver, a Send that returns ErrNoReceiver was not sent and
// the caller must keep the source data.
package transport
