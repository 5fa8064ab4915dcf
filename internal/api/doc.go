// Package api implements the HTTP REST API and WebSocket server for the
// robovac service.
//
// This package provides:
//   - REST endpoints to read vacuum state, battery and history
//   - Command and refresh endpoints that go through the device manager
//   - WebSocket hub broadcasting "vacuum.state" events on every publish
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # WebSocket
//
// Clients connect to /api/v1/ws and pick channels either with the
// "channels" query parameter or a subscribe message:
//
//	{"type":"subscribe","id":"1","channels":["vacuum.state:hallway"]}
//
// "vacuum.state" receives every vacuum; "vacuum.state:{id}" just one.
//
// # Consistency
//
// Reads come straight from the shared state cache and never wait for a
// poll. A command returns 202 once the device accepts the write; the new
// state is visible after the poll it triggers.
package api
