// Package relay implements the real-time message relay for the Text chat
// application.
//
// Clients connect over WebSocket and complete a setup handshake that binds an
// authenticated user identity to the connection and joins it to that user's
// room. The relay then fans out typing indicators and new-message events to
// the right set of connections. It holds no persistent state: the HTTP API
// and database are external collaborators, and message payloads pass through
// opaquely.
//
// The implementation is organized into specialized files for configuration,
// the hub event loop, room membership, clients, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows.
package relay
