package app

import (
	"context"
	"time"

	broadcast "github.com/fightcard/ringside/internal/adapters/mq/queue"
	"github.com/fightcard/ringside/internal/domain/audit"
	"github.com/fightcard/ringside/internal/domain/model"
	"github.com/fightcard/ringside/pkg/metrics"
)

// RoundsView is the scoreboard projection: every computed round plus the
// running totals. Identical payload for polling clients and websocket
// snapshots.
type RoundsView struct {
	BoutID      string             `json:"bout_id"`
	Fighter1    string             `json:"fighter1"`
	Fighter2    string             `json:"fighter2"`
	Rounds      []model.RoundScore `json:"rounds"`
	RunningRed  int                `json:"running_red"`
	RunningBlue int                `json:"running_blue"`
}

// DeviceStatus is the per-device slice of a SyncStatus.
type DeviceStatus struct {
	DeviceID          string           `json:"device_id"`
	DeviceName        string           `json:"device_name"`
	Role              model.DeviceRole `json:"role"`
	LastSeenAt        time.Time        `json:"last_seen_at"`
	Active            bool             `json:"active"`
	ReadyForNextRound bool             `json:"ready_for_next_round"`
}

// SyncStatus reports every registered device for a bout and whether each
// is inside the heartbeat window.
type SyncStatus struct {
	BoutID       string         `json:"bout_id"`
	CurrentRound int            `json:"current_round"`
	Devices      []DeviceStatus `json:"devices"`
	ActiveCount  int            `json:"active_count"`
	StaleCount   int            `json:"stale_count"`
}

// RoundStatusView reports one round's lifecycle state together with the
// judge locks already placed on it.
type RoundStatusView struct {
	BoutID     string            `json:"bout_id"`
	Round      int               `json:"round"`
	State      model.RoundState  `json:"state"`
	Score      *model.RoundScore `json:"score,omitempty"`
	JudgeLocks []model.JudgeLock `json:"judge_locks"`
	Ready      []string          `json:"ready_devices"`
	Waiting    []string          `json:"waiting_devices"`
}

// Rounds returns the scoreboard projection for a bout.
func (s *Service) Rounds(ctx context.Context, boutID string) (RoundsView, error) {
	bout, err := s.bouts.GetBout(ctx, boutID)
	if err != nil {
		return RoundsView{}, err
	}
	st := s.state(boutID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return s.roundsViewLocked(ctx, bout), nil
}

// roundsViewLocked builds the projection. Caller holds the bout mutex.
func (s *Service) roundsViewLocked(ctx context.Context, bout model.Bout) RoundsView {
	scores := s.bouts.RoundScores(ctx, bout.BoutID)
	view := RoundsView{
		BoutID:   bout.BoutID,
		Fighter1: bout.Fighter1,
		Fighter2: bout.Fighter2,
		Rounds:   sortedRounds(scores),
	}
	for _, sc := range view.Rounds {
		view.RunningRed += sc.FighterAPoints
		view.RunningBlue += sc.FighterBPoints
	}
	return view
}

// Status reports device presence for a bout.
func (s *Service) Status(ctx context.Context, boutID string) (SyncStatus, error) {
	bout, err := s.bouts.GetBout(ctx, boutID)
	if err != nil {
		return SyncStatus{}, err
	}

	now := s.now()
	status := SyncStatus{
		BoutID:       boutID,
		CurrentRound: bout.CurrentRound,
		Devices:      make([]DeviceStatus, 0, 4),
	}
	for _, sess := range s.registry.boutSessions(boutID) {
		active := sess.Active(now, s.stalenessWindow)
		if active {
			status.ActiveCount++
		} else {
			status.StaleCount++
		}
		status.Devices = append(status.Devices, DeviceStatus{
			DeviceID:          sess.DeviceID,
			DeviceName:        sess.DeviceName,
			Role:              sess.Role,
			LastSeenAt:        sess.LastSeenAt,
			Active:            active,
			ReadyForNextRound: sess.ReadyForNextRound,
		})
	}
	return status, nil
}

// RoundStatus reports a round's lifecycle state and barrier progress.
func (s *Service) RoundStatus(ctx context.Context, boutID string, round int) (RoundStatusView, error) {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return RoundStatusView{}, err
	}

	st := s.state(boutID)
	st.mu.Lock()
	defer st.mu.Unlock()

	view := RoundStatusView{
		BoutID:     boutID,
		Round:      round,
		State:      st.roundState(round),
		JudgeLocks: s.bouts.JudgeLocks(ctx, boutID, round),
		Ready:      make([]string, 0, 4),
		Waiting:    make([]string, 0, 4),
	}
	if sc, err := s.bouts.GetRoundScore(ctx, boutID, round); err == nil {
		view.Score = &sc
	}

	bar := st.barriers[round]
	for _, sess := range s.registry.boutSessions(boutID) {
		voted := false
		if bar != nil {
			_, voted = bar.votes[sess.DeviceID]
		}
		if voted {
			view.Ready = append(view.Ready, sess.DeviceID)
		} else {
			view.Waiting = append(view.Waiting, sess.DeviceID)
		}
	}
	return view, nil
}

// RegisterDevice attaches (or refreshes) an operator device on a bout.
func (s *Service) RegisterDevice(ctx context.Context, boutID, deviceID, accountID, deviceName string, role model.DeviceRole) (model.DeviceSession, error) {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return model.DeviceSession{}, err
	}
	if deviceID == "" {
		return model.DeviceSession{}, model.ErrValidation
	}
	if role != model.RoleUnassigned && !role.Valid() {
		return model.DeviceSession{}, model.ErrValidation
	}

	sess := s.registry.register(boutID, deviceID, accountID, deviceName, role)
	metrics.UpdateRegisteredDevices(len(s.registry.boutSessions(boutID)))
	metrics.UpdateActiveDevices(len(s.registry.activeDevices(boutID)))
	s.auditLog.Append(ctx, audit.ActionDeviceRegistered, audit.ResourceDevice, deviceID, accountID, deviceName, map[string]string{
		"bout_id": boutID,
		"role":    string(sess.Role),
	})
	return *sess, nil
}

// Heartbeat refreshes a device's liveness window.
func (s *Service) Heartbeat(ctx context.Context, boutID, deviceID string) error {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return err
	}
	if !s.registry.heartbeat(boutID, deviceID) {
		return ErrDeviceNotRegistered
	}
	metrics.UpdateActiveDevices(len(s.registry.activeDevices(boutID)))
	return nil
}

// DisconnectDevice removes a device from the bout. A disconnected device
// no longer counts toward round-advance consensus.
func (s *Service) DisconnectDevice(ctx context.Context, boutID, deviceID string) error {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return err
	}
	if !s.registry.disconnect(boutID, deviceID) {
		return ErrDeviceNotRegistered
	}
	metrics.UpdateRegisteredDevices(len(s.registry.boutSessions(boutID)))
	metrics.UpdateActiveDevices(len(s.registry.activeDevices(boutID)))
	s.auditLog.Append(ctx, audit.ActionDeviceDropped, audit.ResourceDevice, deviceID, "", "", map[string]string{
		"bout_id": boutID,
	})
	return nil
}

// SnapshotMessages builds the catch-up frames a websocket subscriber
// receives on connect: the current scoreboard, then sync status.
func (s *Service) SnapshotMessages(ctx context.Context, boutID string) []broadcast.Message {
	out := make([]broadcast.Message, 0, 2)
	if view, err := s.Rounds(ctx, boutID); err == nil {
		out = append(out, broadcast.Message{BoutID: boutID, Kind: "score_update", Payload: view})
	}
	if status, err := s.Status(ctx, boutID); err == nil {
		out = append(out, broadcast.Message{BoutID: boutID, Kind: "sync_status", Payload: status})
	}
	return out
}
