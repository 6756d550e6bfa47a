package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rvald/omcli/internal/protocol"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleCommand is POST /api/command: resolve the target device, dispatch
// over its live socket (waiting on the reply slot), or fall back to APNs.
func (b *Broker) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req protocol.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		http.Error(w, "Invalid command request", http.StatusBadRequest)
		return
	}

	deviceID, errStatus, errMsg := b.selectDevice(req.DeviceID)
	if errStatus != 0 {
		http.Error(w, errMsg, errStatus)
		return
	}

	if b.conns.IsAuthenticated(deviceID) {
		b.dispatchLive(w, r.Context(), deviceID, req)
		return
	}
	b.dispatchPush(w, r.Context(), deviceID, req)
}

// selectDevice resolves the target: an explicit id wins; otherwise the
// unique authenticated connection; otherwise the registry's only device
// (push fallback). Ambiguity is the caller's problem.
func (b *Broker) selectDevice(explicit string) (deviceID string, errStatus int, errMsg string) {
	if explicit != "" {
		return explicit, 0, ""
	}

	authed := b.conns.AuthenticatedIDs()
	switch len(authed) {
	case 1:
		return authed[0], 0, ""
	case 0:
		devices := b.registry.List()
		if len(devices) == 1 {
			return devices[0].ID, 0, ""
		}
		return "", http.StatusNotFound, "No devices connected"
	default:
		return "", http.StatusBadRequest, "Multiple devices connected, specify --device"
	}
}

// dispatchLive takes the live path: register a reply slot, enqueue the
// command, park until the device answers or the 30s timeout fires. No map
// lock is held while waiting.
func (b *Broker) dispatchLive(w http.ResponseWriter, ctx context.Context, deviceID string, req protocol.CommandRequest) {
	conn, ok := b.conns.Get(deviceID)
	if !ok {
		http.Error(w, fmt.Sprintf("Device %s not connected", deviceID), http.StatusNotFound)
		return
	}

	cmdID := uuid.NewString()
	slot := b.pending.Register(cmdID)
	defer b.pending.Drop(cmdID)

	if err := conn.Enqueue(protocol.NewCommand(cmdID, req.Command, req.Params)); err != nil {
		commandsTotal.WithLabelValues("error").Inc()
		http.Error(w, "Failed to send to device", http.StatusInternalServerError)
		return
	}

	timer := time.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-slot:
		if !ok {
			commandsTotal.WithLabelValues("error").Inc()
			http.Error(w, "Response channel closed", http.StatusInternalServerError)
			return
		}
		commandsTotal.WithLabelValues(resp.Status).Inc()
		writeJSON(w, http.StatusOK, resp)
	case <-timer.C:
		commandsTotal.WithLabelValues("timeout").Inc()
		http.Error(w, "Device did not respond in time", http.StatusGatewayTimeout)
	case <-ctx.Done():
		commandsTotal.WithLabelValues("error").Inc()
	}
}

// dispatchPush takes the fire-and-forget push path for offline devices.
// The synthetic response carries delivered_via so callers that need real
// data can tell it apart.
func (b *Broker) dispatchPush(w http.ResponseWriter, ctx context.Context, deviceID string, req protocol.CommandRequest) {
	if b.push == nil {
		http.Error(w, fmt.Sprintf("Device %s not connected and APNs not configured", deviceID), http.StatusNotFound)
		return
	}

	device, ok := b.registry.Get(deviceID)
	if !ok {
		http.Error(w, fmt.Sprintf("Device %s not found", deviceID), http.StatusNotFound)
		return
	}
	if device.PushToken == "" {
		http.Error(w, fmt.Sprintf("Device %s not connected and has no push token registered", deviceID), http.StatusBadRequest)
		return
	}

	if err := b.push.SendAlarmPush(ctx, device.PushToken, req.Command, req.Params); err != nil {
		pushesTotal.WithLabelValues("error").Inc()
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	pushesTotal.WithLabelValues("ok").Inc()
	commandsTotal.WithLabelValues("push").Inc()

	writeJSON(w, http.StatusOK, protocol.CommandResponse{
		ID:     uuid.NewString(),
		Status: "ok",
		Data:   json.RawMessage(`{"delivered_via":"apns"}`),
	})
}

// handlePair is POST /api/devices/pair: consume the 6-digit code, mint the
// device's bearer token, persist the record, and flip the live connection
// to authenticated.
func (b *Broker) handlePair(w http.ResponseWriter, r *http.Request) {
	var req protocol.PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, "Invalid pair request", http.StatusBadRequest)
		return
	}

	pending, ok := b.pairings.Take(req.Code)
	if !ok {
		http.Error(w, "Invalid pairing code", http.StatusNotFound)
		return
	}

	token := uuid.NewString()
	b.registry.Put(protocol.Device{
		ID:       pending.DeviceID,
		Name:     pending.Name,
		Token:    token,
		PairedAt: time.Now().Unix(),
	})

	if conn := b.conns.SetAuthenticated(pending.DeviceID); conn != nil {
		if err := conn.Enqueue(protocol.NewAuthResult(true, token, "")); err != nil {
			slog.Warn("could not deliver auth result", "device", pending.DeviceID, "error", err)
		}
	}

	slog.Info("device paired", "device", pending.DeviceID, "name", pending.Name)
	b.publish("device.paired", pending.DeviceID, nil)

	writeJSON(w, http.StatusOK, protocol.PairResponse{
		DeviceID: pending.DeviceID,
		Name:     pending.Name,
	})
}

// handleDevices is GET /api/devices. Online status is computed from the
// connection table at read time.
func (b *Broker) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices := b.registry.List()
	list := make([]protocol.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		list = append(list, protocol.DeviceInfo{
			ID:       d.ID,
			Name:     d.Name,
			Online:   b.conns.IsAuthenticated(d.ID),
			PairedAt: d.PairedAt,
		})
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDeleteDevice is DELETE /api/devices/{id}.
func (b *Broker) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !b.registry.Delete(id) {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}
	if conn := b.conns.Remove(id); conn != nil {
		conn.Close()
	}
	slog.Info("device deleted", "device", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus is GET /api/status.
func (b *Broker) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.ServerStatus{
		Version:       b.version,
		UptimeSecs:    b.uptime(),
		DevicesOnline: len(b.conns.AuthenticatedIDs()),
		DevicesTotal:  b.registry.Count(),
	})
}
