package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	// InboundTypeSend carries a new chat message from the client.
	// Unrecognized inbound types are ignored without closing the
	// connection so newer clients keep working against older servers.
	InboundTypeSend = "message.send"

	// OutboundTypeMessage notifies clients about a newly persisted message.
	OutboundTypeMessage = "message.new"
	// OutboundTypeError carries a domain error to one client.
	OutboundTypeError = "error"
)

// WebSocket close codes in the application range. Unauthorized means the
// credential was bad or missing; forbidden means the credential was fine
// but the user is not a participant of the requested chat.
const (
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
)

// SendData is the payload of a message.send frame. Missing metadata
// defaults to an empty object.
type SendData struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserData is the public identity embedded in responses and events.
type UserData struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Nickname string `json:"nickname"`
}

// MessageData is the canonical message representation pushed to clients.
type MessageData struct {
	ID        int64          `json:"id"`
	ChatID    int64          `json:"chat_id"`
	Sender    UserData       `json:"sender"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
