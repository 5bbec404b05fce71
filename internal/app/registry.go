// Package app provides the core service implementing the HTTP API
// dependencies: event reconciliation, round lifecycle, judge locking,
// presence and finalization.
package app

import (
	"sort"
	"sync"
	"time"

	"github.com/fightcard/ringside/internal/domain/model"
)

// deviceKey identifies a session: devices are scoped to a bout.
type deviceKey struct {
	boutID   string
	deviceID string
}

// deviceRegistry tracks which physical devices are attached to each bout,
// their assigned role and their liveness. Presence is a rolling heartbeat:
// a device is active only while its last heartbeat is inside the staleness
// window, and stale devices are excluded from round-advance consensus.
type deviceRegistry struct {
	mu         sync.RWMutex
	sessions   map[deviceKey]*model.DeviceSession
	staleAfter time.Duration
	now        func() time.Time
}

func newDeviceRegistry(staleAfter time.Duration, now func() time.Time) *deviceRegistry {
	return &deviceRegistry{
		sessions:   make(map[deviceKey]*model.DeviceSession),
		staleAfter: staleAfter,
		now:        now,
	}
}

// register creates or refreshes a session. Re-registering an existing
// device refreshes its heartbeat and name but keeps its role.
func (r *deviceRegistry) register(boutID, deviceID, accountID, deviceName string, role model.DeviceRole) *model.DeviceSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey{boutID: boutID, deviceID: deviceID}
	if s, ok := r.sessions[key]; ok {
		s.LastSeenAt = r.now()
		s.DeviceName = deviceName
		if role != model.RoleUnassigned {
			s.Role = role
		}
		return cloneSession(s)
	}

	s := &model.DeviceSession{
		DeviceID:   deviceID,
		BoutID:     boutID,
		AccountID:  accountID,
		DeviceName: deviceName,
		Role:       role,
		LastSeenAt: r.now(),
	}
	r.sessions[key] = s
	return cloneSession(s)
}

// heartbeat refreshes liveness. Returns false for unknown devices.
func (r *deviceRegistry) heartbeat(boutID, deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[deviceKey{boutID: boutID, deviceID: deviceID}]
	if !ok {
		return false
	}
	s.LastSeenAt = r.now()
	return true
}

// disconnect removes a session explicitly.
func (r *deviceRegistry) disconnect(boutID, deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey{boutID: boutID, deviceID: deviceID}
	if _, ok := r.sessions[key]; !ok {
		return false
	}
	delete(r.sessions, key)
	return true
}

// get returns a copy of one session.
func (r *deviceRegistry) get(boutID, deviceID string) (model.DeviceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[deviceKey{boutID: boutID, deviceID: deviceID}]
	if !ok {
		return model.DeviceSession{}, false
	}
	return *cloneSession(s), true
}

// setReady flags a device as having requested the next round.
func (r *deviceRegistry) setReady(boutID, deviceID string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[deviceKey{boutID: boutID, deviceID: deviceID}]; ok {
		s.ReadyForNextRound = ready
	}
}

// clearReady resets the ready flag for every device on a bout, done when a
// round advances.
func (r *deviceRegistry) clearReady(boutID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, s := range r.sessions {
		if key.boutID == boutID {
			s.ReadyForNextRound = false
		}
	}
}

// sessions returns copies of all sessions for a bout, ordered by device id
// for stable output.
func (r *deviceRegistry) boutSessions(boutID string) []model.DeviceSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DeviceSession, 0, 4)
	for key, s := range r.sessions {
		if key.boutID == boutID {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// activeDevices returns ids of devices inside the staleness window.
func (r *deviceRegistry) activeDevices(boutID string) []string {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, 4)
	for key, s := range r.sessions {
		if key.boutID == boutID && s.Active(now, r.staleAfter) {
			out = append(out, key.deviceID)
		}
	}
	sort.Strings(out)
	return out
}

// staleDevices returns ids of registered devices outside the window.
func (r *deviceRegistry) staleDevices(boutID string) []string {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, 4)
	for key, s := range r.sessions {
		if key.boutID == boutID && !s.Active(now, r.staleAfter) {
			out = append(out, key.deviceID)
		}
	}
	sort.Strings(out)
	return out
}

func cloneSession(s *model.DeviceSession) *model.DeviceSession {
	c := *s
	return &c
}
