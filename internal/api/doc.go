// Package api serves the local web dashboard: a small JSON API over
// the device registry, the static dashboard assets, and a WebSocket
// push channel that mirrors every registry change in real time.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Dashboard relay commands flow through the engine, so their echoes
// are suppressed on the chat side exactly like chat-issued commands.
package api
