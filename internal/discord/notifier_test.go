package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/omcli/internal/protocol"
)

func TestNewNotifier_Validation(t *testing.T) {
	_, err := NewNotifier(NotifierConfig{ChannelID: "c1"})
	assert.Error(t, err, "bot token required")

	_, err = NewNotifier(NotifierConfig{BotToken: "tok"})
	assert.Error(t, err, "channel id required")

	n, err := NewNotifier(NotifierConfig{BotToken: "tok", ChannelID: "c1"})
	require.NoError(t, err)
	require.NotNil(t, n)
}

func TestFormatEvent(t *testing.T) {
	cases := []struct {
		event    string
		contains string
	}{
		{"device.connected", "connected"},
		{"device.paired", "paired"},
		{"device.disconnected", "disconnected"},
	}
	for _, tc := range cases {
		msg := formatEvent(protocol.ClientEvent{Event: tc.event, DeviceID: "d1"})
		assert.Contains(t, msg, "d1")
		assert.Contains(t, msg, tc.contains)
	}
}

func TestFormatEvent_IgnoresDeviceEvents(t *testing.T) {
	msg := formatEvent(protocol.ClientEvent{Event: "battery.low", DeviceID: "d1"})
	assert.Empty(t, msg, "only lifecycle events are announced")
}
