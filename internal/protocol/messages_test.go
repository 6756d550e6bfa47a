package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceMessage_Hello(t *testing.T) {
	msg, err := ParseDeviceMessage([]byte(`{"type":"hello","device_id":"d1","name":"Phone"}`))
	require.NoError(t, err)

	hello, ok := msg.(*HelloMessage)
	require.True(t, ok, "expected *HelloMessage")
	assert.Equal(t, "d1", hello.DeviceID)
	assert.Equal(t, "Phone", hello.Name)
}

func TestParseDeviceMessage_HelloMissingDeviceID(t *testing.T) {
	_, err := ParseDeviceMessage([]byte(`{"type":"hello","name":"Phone"}`))
	require.Error(t, err)

	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, "MISSING_FIELD", msgErr.Code)
	assert.Equal(t, "device_id", msgErr.Field)
}

func TestParseDeviceMessage_Auth(t *testing.T) {
	msg, err := ParseDeviceMessage([]byte(`{"type":"auth","device_id":"d1","token":"tok"}`))
	require.NoError(t, err)

	auth, ok := msg.(*AuthMessage)
	require.True(t, ok, "expected *AuthMessage")
	assert.Equal(t, "d1", auth.DeviceID)
	assert.Equal(t, "tok", auth.Token)
}

func TestParseDeviceMessage_ResponseWithError(t *testing.T) {
	raw := `{"type":"response","id":"c1","status":"error","error":{"code":"USER_DECLINED","message":"declined"}}`
	msg, err := ParseDeviceMessage([]byte(raw))
	require.NoError(t, err)

	resp, ok := msg.(*ResponseMessage)
	require.True(t, ok, "expected *ResponseMessage")
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "USER_DECLINED", resp.Error.Code)
}

func TestParseDeviceMessage_ResponseMissingID(t *testing.T) {
	_, err := ParseDeviceMessage([]byte(`{"type":"response","status":"ok"}`))
	require.Error(t, err)

	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, "id", msgErr.Field)
}

func TestParseDeviceMessage_Event(t *testing.T) {
	msg, err := ParseDeviceMessage([]byte(`{"type":"event","event":"battery.low","data":{"level":5}}`))
	require.NoError(t, err)

	ev, ok := msg.(*EventMessage)
	require.True(t, ok, "expected *EventMessage")
	assert.Equal(t, "battery.low", ev.Event)
	assert.JSONEq(t, `{"level":5}`, string(ev.Data))
}

func TestParseDeviceMessage_Tokens(t *testing.T) {
	msg, err := ParseDeviceMessage([]byte(`{"type":"push_token","token":"abc"}`))
	require.NoError(t, err)
	push, ok := msg.(*PushTokenMessage)
	require.True(t, ok)
	assert.Equal(t, "abc", push.Token)

	msg, err = ParseDeviceMessage([]byte(`{"type":"voip_token","token":"def"}`))
	require.NoError(t, err)
	voip, ok := msg.(*VoipTokenMessage)
	require.True(t, ok)
	assert.Equal(t, "def", voip.Token)
}

func TestParseDeviceMessage_Invalid(t *testing.T) {
	cases := []struct {
		name string
		data string
		code string
	}{
		{"garbage", `not json`, "INVALID_JSON"},
		{"no type", `{"device_id":"d1"}`, "MISSING_FIELD"},
		{"unknown type", `{"type":"teleport"}`, "UNKNOWN_TYPE"},
		{"empty token", `{"type":"push_token","token":""}`, "MISSING_FIELD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDeviceMessage([]byte(tc.data))
			require.Error(t, err)
			var msgErr *MessageError
			require.ErrorAs(t, err, &msgErr)
			assert.Equal(t, tc.code, msgErr.Code)
		})
	}
}

func TestNewCommand_NilParams(t *testing.T) {
	cmd := NewCommand("c1", "alarm.stop", nil)
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"command","id":"c1","command":"alarm.stop","params":null}`, string(data))
}

func TestNewAuthResult_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(NewAuthResult(true, "", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"auth_result","success":true}`, string(data))

	data, err = json.Marshal(NewAuthResult(false, "", "invalid token"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"auth_result","success":false,"error":"invalid token"}`, string(data))
}

func TestParseServerMessage(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`{"type":"pairing_code","code":"123456"}`))
	require.NoError(t, err)
	code, ok := msg.(PairingCodeMessage)
	require.True(t, ok, "expected PairingCodeMessage")
	assert.Equal(t, "123456", code.Code)

	msg, err = ParseServerMessage([]byte(`{"type":"command","id":"c1","command":"location.get","params":{"accuracy":"precise"}}`))
	require.NoError(t, err)
	cmd, ok := msg.(CommandMessage)
	require.True(t, ok, "expected CommandMessage")
	assert.Equal(t, "location.get", cmd.Command)

	_, err = ParseServerMessage([]byte(`{"type":"hello"}`))
	require.Error(t, err)
}
