// Package apns is the narrow push dispatcher: it packs a command into an
// alert or VoIP notification and hands it to Apple. Everything above it
// talks to the Pusher-shaped surface, never to apns2 directly.
package apns

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/rvald/omcli/internal/config"
)

// Client wraps a token-authenticated APNs HTTP/2 client.
type Client struct {
	client   *apns2.Client
	bundleID string
}

// New loads the .p8 signing key and builds the client. Construction fails
// if the key cannot be loaded; this is fatal at startup when APNs is
// configured.
func New(cfg config.APNsConfig) (*Client, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load APNs key %s: %w", cfg.KeyPath, err)
	}

	tok := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tok)
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	slog.Info("APNs client initialized", "sandbox", cfg.Sandbox, "bundle", cfg.BundleID)

	return &Client{client: client, bundleID: cfg.BundleID}, nil
}

// alarmPayload builds the alert-style payload carrying the command under
// the omcli custom key.
func alarmPayload(command string, params json.RawMessage) *payload.Payload {
	return payload.NewPayload().
		AlertBody("Alarm triggered").
		ContentAvailable().
		Category("alarm").
		Custom("omcli", commandEnvelope(command, params))
}

// voipPayload carries the push type and params; no visible alert.
func voipPayload(pushType string, params json.RawMessage) *payload.Payload {
	return payload.NewPayload().
		ContentAvailable().
		Custom("omcli", commandEnvelope(pushType, params))
}

// notifyPayload is a plain user-visible notification (relay push front).
func notifyPayload(title, body, sound string) *payload.Payload {
	return payload.NewPayload().
		AlertTitle(title).
		AlertBody(body).
		Sound(sound)
}

func commandEnvelope(command string, params json.RawMessage) map[string]any {
	if params == nil {
		params = json.RawMessage("null")
	}
	return map[string]any{"command": command, "params": params}
}

// SendAlarmPush delivers a command to an offline device as a high-priority
// alert push.
func (c *Client) SendAlarmPush(ctx context.Context, pushToken, command string, params json.RawMessage) error {
	n := &apns2.Notification{
		DeviceToken: pushToken,
		Topic:       c.bundleID,
		PushType:    apns2.PushTypeAlert,
		Priority:    apns2.PriorityHigh,
		Payload:     alarmPayload(command, params),
	}
	return c.send(ctx, n, "alarm")
}

// SendVoipPush delivers a VoIP push on the <bundle>.voip topic.
func (c *Client) SendVoipPush(ctx context.Context, voipToken, pushType string, params json.RawMessage) error {
	n := &apns2.Notification{
		DeviceToken: voipToken,
		Topic:       c.bundleID + ".voip",
		PushType:    apns2.PushTypeVOIP,
		Priority:    apns2.PriorityHigh,
		Payload:     voipPayload(pushType, params),
	}
	return c.send(ctx, n, "voip")
}

// SendNotifyPush delivers a plain notification (title/body/sound).
func (c *Client) SendNotifyPush(ctx context.Context, pushToken, title, body, sound string) error {
	n := &apns2.Notification{
		DeviceToken: pushToken,
		Topic:       c.bundleID,
		PushType:    apns2.PushTypeAlert,
		Priority:    apns2.PriorityHigh,
		Payload:     notifyPayload(title, body, sound),
	}
	return c.send(ctx, n, "notify")
}

func (c *Client) send(ctx context.Context, n *apns2.Notification, kind string) error {
	resp, err := c.client.PushWithContext(ctx, n)
	if err != nil {
		slog.Warn("APNs push failed", "kind", kind, "error", err)
		return fmt.Errorf("APNs push failed: %w", err)
	}
	if !resp.Sent() {
		slog.Warn("APNs rejected push", "kind", kind, "status", resp.StatusCode, "reason", resp.Reason)
		return fmt.Errorf("APNs rejected push: %s (status %d)", resp.Reason, resp.StatusCode)
	}
	slog.Info("APNs push sent", "kind", kind, "apns_id", resp.ApnsID)
	return nil
}
