package protocol

import "encoding/json"

// Device is a paired device as persisted in the registry.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	PairedAt  int64  `json:"paired_at"`
	PushToken string `json:"push_token,omitempty"`
	VoipToken string `json:"voip_token,omitempty"`
}

// CommandRequest is the POST /api/command body.
type CommandRequest struct {
	Command  string          `json:"command"`
	Params   json.RawMessage `json:"params,omitempty"`
	DeviceID string          `json:"device_id,omitempty"`
}

// CommandResponse is returned from POST /api/command and carried on reply
// slots internally. ErrorCode "USER_DECLINED" is reserved for refusal on
// the device.
type CommandResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// DeviceInfo is one GET /api/devices list item.
type DeviceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	PairedAt int64  `json:"paired_at"`
}

// ServerStatus is the GET /api/status response.
type ServerStatus struct {
	Version       string `json:"version"`
	UptimeSecs    int64  `json:"uptime_secs"`
	DevicesOnline int    `json:"devices_online"`
	DevicesTotal  int    `json:"devices_total"`
}

// PairRequest is the POST /api/devices/pair body.
type PairRequest struct {
	Code string `json:"code"`
}

// PairResponse is the POST /api/devices/pair response.
type PairResponse struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// ClientEvent is a lifecycle event streamed to subscribed client sockets.
type ClientEvent struct {
	Event    string          `json:"event"`
	DeviceID string          `json:"device_id"`
	Data     json.RawMessage `json:"data,omitempty"`
}
