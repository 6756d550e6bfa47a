package server

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// PendingTTL is how long a pairing code stays redeemable. Codes also vanish
// when the device socket that requested them closes.
const PendingTTL = 5 * time.Minute

// PendingPairing links an outstanding 6-digit code to the device waiting
// on it.
type PendingPairing struct {
	DeviceID string
	Name     string

	createdAt time.Time
}

// PairingLedger is the short-lived map from pairing code to pending device.
type PairingLedger struct {
	mu    sync.Mutex
	codes map[string]PendingPairing

	now  func() time.Time
	draw func() (string, error)
}

func NewPairingLedger() *PairingLedger {
	return &PairingLedger{
		codes: make(map[string]PendingPairing),
		now:   time.Now,
		draw:  randomCode,
	}
}

// NewCode registers a fresh pairing code for the device, redrawing on
// collision with an outstanding code. A device has at most one outstanding
// code; issuing a new one invalidates the old.
func (l *PairingLedger) NewCode(deviceID, name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()
	for code, p := range l.codes {
		if p.DeviceID == deviceID {
			delete(l.codes, code)
		}
	}

	for {
		code, err := l.draw()
		if err != nil {
			return "", fmt.Errorf("draw pairing code: %w", err)
		}
		if _, taken := l.codes[code]; taken {
			continue
		}
		l.codes[code] = PendingPairing{
			DeviceID:  deviceID,
			Name:      name,
			createdAt: l.now(),
		}
		return code, nil
	}
}

// Take atomically consumes a code. Exactly one of two concurrent callers
// for the same code succeeds.
func (l *PairingLedger) Take(code string) (PendingPairing, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.codes[code]
	if !ok {
		return PendingPairing{}, false
	}
	delete(l.codes, code)
	if l.now().Sub(p.createdAt) > PendingTTL {
		return PendingPairing{}, false
	}
	return p, true
}

// RemoveDevice drops every outstanding code belonging to the device. Called
// when its socket closes or is replaced.
func (l *PairingLedger) RemoveDevice(deviceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for code, p := range l.codes {
		if p.DeviceID == deviceID {
			delete(l.codes, code)
		}
	}
}

// Len returns the number of outstanding codes.
func (l *PairingLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.codes)
}

func (l *PairingLedger) pruneLocked() {
	now := l.now()
	for code, p := range l.codes {
		if now.Sub(p.createdAt) > PendingTTL {
			delete(l.codes, code)
		}
	}
}

// randomCode draws a 6-digit decimal code uniformly in [100000, 999999].
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
