// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the lobby socket.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	NotAMemberError       websocket.StatusCode = 3001 // User was removed from the lobby's player map.
	InvalidLobbyCodeError websocket.StatusCode = 3003 // Lobby code in the URL does not resolve.
	LobbyClosedError      websocket.StatusCode = 3004 // Lobby was deleted while the client was connected.
)
