// Package transport carries raw DPS payloads between the sync engine and
// the vacuums.
//
// The engine only sees the Port interface. The production Port is Gateway,
// which speaks request/response over MQTT to an external process that owns
// the encrypted local device protocol:
//
//	robovac/gateway/request/{device}               <- RequestMessage
//	robovac/gateway/response/{device}/{request_id} -> ResponseMessage
//
// Every failure surfaced by a Port is an *Error that matches ErrTransport
// with errors.Is. Callers decide what a failure means; the transport itself
// never retries.
package transport
