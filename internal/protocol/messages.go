package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageError carries structured context for observability.
type MessageError struct {
	Code    string // e.g. "INVALID_JSON", "MISSING_FIELD", "UNKNOWN_TYPE"
	Field   string // which field was the problem, if applicable
	Message string // human-readable detail
}

func (e *MessageError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("message error [%s]: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("message error [%s]: %s", e.Code, e.Message)
}

// Device→server message types.
const (
	TypeHello     = "hello"
	TypeAuth      = "auth"
	TypeResponse  = "response"
	TypeEvent     = "event"
	TypePushToken = "push_token"
	TypeVoipToken = "voip_token"
)

// Server→device message types.
const (
	TypePairingCode  = "pairing_code"
	TypeAuthRequired = "auth_required"
	TypeAuthResult   = "auth_result"
	TypeCommand      = "command"
)

type rawMessage struct {
	Type string `json:"type"`
}

// ErrorInfo is the structured error a device attaches to a failed response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Device→server messages ---

type HelloMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

type AuthMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
}

type ResponseMessage struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *ErrorInfo      `json:"error,omitempty"`
}

type EventMessage struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type PushTokenMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type VoipTokenMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// --- Server→device messages ---

// ServerMessage is implemented by every message the server can enqueue on a
// device's outbound queue. The marker keeps the queues type-safe.
type ServerMessage interface {
	deviceBound()
}

type PairingCodeMessage struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type AuthRequiredMessage struct {
	Type string `json:"type"`
}

type AuthResultMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CommandMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params"`
}

func (PairingCodeMessage) deviceBound()  {}
func (AuthRequiredMessage) deviceBound() {}
func (AuthResultMessage) deviceBound()   {}
func (CommandMessage) deviceBound()      {}

func NewPairingCode(code string) PairingCodeMessage {
	return PairingCodeMessage{Type: TypePairingCode, Code: code}
}

func NewAuthRequired() AuthRequiredMessage {
	return AuthRequiredMessage{Type: TypeAuthRequired}
}

func NewAuthResult(success bool, token, errMsg string) AuthResultMessage {
	return AuthResultMessage{Type: TypeAuthResult, Success: success, Token: token, Error: errMsg}
}

func NewCommand(id, command string, params json.RawMessage) CommandMessage {
	if params == nil {
		params = json.RawMessage("null")
	}
	return CommandMessage{Type: TypeCommand, ID: id, Command: command, Params: params}
}

// ParseDeviceMessage — discriminated union decode of one inbound text frame.
func ParseDeviceMessage(data []byte) (any, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid message JSON: %v", err)}
	}

	if raw.Type == "" {
		return nil, &MessageError{Code: "MISSING_FIELD", Field: "type", Message: "message missing required \"type\" field"}
	}

	switch raw.Type {

	case TypeHello:
		var msg HelloMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid hello JSON: %v", err)}
		}
		if msg.DeviceID == "" {
			return nil, &MessageError{Code: "MISSING_FIELD", Field: "device_id", Message: "hello missing required \"device_id\" field"}
		}
		return &msg, nil

	case TypeAuth:
		var msg AuthMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid auth JSON: %v", err)}
		}
		if msg.DeviceID == "" {
			return nil, &MessageError{Code: "MISSING_FIELD", Field: "device_id", Message: "auth missing required \"device_id\" field"}
		}
		return &msg, nil

	case TypeResponse:
		var msg ResponseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid response JSON: %v", err)}
		}
		if msg.ID == "" {
			return nil, &MessageError{Code: "MISSING_FIELD", Field: "id", Message: "response missing required \"id\" field"}
		}
		return &msg, nil

	case TypeEvent:
		var msg EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid event JSON: %v", err)}
		}
		if msg.Event == "" {
			return nil, &MessageError{Code: "MISSING_FIELD", Field: "event", Message: "event missing required \"event\" field"}
		}
		return &msg, nil

	case TypePushToken:
		var msg PushTokenMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid push_token JSON: %v", err)}
		}
		if msg.Token == "" {
			return nil, &MessageError{Code: "MISSING_FIELD", Field: "token", Message: "push_token missing required \"token\" field"}
		}
		return &msg, nil

	case TypeVoipToken:
		var msg VoipTokenMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid voip_token JSON: %v", err)}
		}
		if msg.Token == "" {
			return nil, &MessageError{Code: "MISSING_FIELD", Field: "token", Message: "voip_token missing required \"token\" field"}
		}
		return &msg, nil

	default:
		return nil, &MessageError{Code: "UNKNOWN_TYPE", Message: fmt.Sprintf("unknown message type: %q", raw.Type)}
	}
}

// ParseServerMessage decodes one server→device frame. Used by the device
// side of tests and by diagnostic tooling.
func ParseServerMessage(data []byte) (ServerMessage, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid message JSON: %v", err)}
	}

	switch raw.Type {
	case TypePairingCode:
		var msg PairingCodeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid pairing_code JSON: %v", err)}
		}
		return msg, nil
	case TypeAuthRequired:
		var msg AuthRequiredMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid auth_required JSON: %v", err)}
		}
		return msg, nil
	case TypeAuthResult:
		var msg AuthResultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid auth_result JSON: %v", err)}
		}
		return msg, nil
	case TypeCommand:
		var msg CommandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, &MessageError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid command JSON: %v", err)}
		}
		return msg, nil
	default:
		return nil, &MessageError{Code: "UNKNOWN_TYPE", Message: fmt.Sprintf("unknown message type: %q", raw.Type)}
	}
}
