package app_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fightcard/ringside/internal/adapters/mq/queue"
	repository "github.com/fightcard/ringside/internal/adapters/repository"
	"github.com/fightcard/ringside/internal/app"
	"github.com/fightcard/ringside/internal/domain/audit"
	"github.com/fightcard/ringside/internal/domain/model"
	"github.com/fightcard/ringside/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeClock is a controllable time source shared with the service.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSink captures fan-out messages for assertions.
type recordingSink struct {
	mu       sync.Mutex
	messages []queue.Message
}

func (r *recordingSink) Publish(ctx context.Context, m queue.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

func (r *recordingSink) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Kind)
	}
	return out
}

func startService(t *testing.T, clock *fakeClock, extra ...app.Option) *app.Service {
	t.Helper()
	opts := append([]app.Option{
		app.WithClock(clock.Now),
		app.WithBarrierTimeout(200 * time.Millisecond),
	}, extra...)
	svc := app.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func createBout(svc *app.Service, rounds int, judges ...string) (model.Bout, error) {
	js := make([]model.Judge, 0, len(judges))
	for _, id := range judges {
		js = append(js, model.Judge{JudgeID: id, JudgeName: "Judge " + id})
	}
	return svc.CreateBout(context.Background(), "bout-1", "Red Corner", "Blue Corner", rounds, js)
}

func submit(svc *app.Service, id string, round int, side model.Side, typ model.EventType, tier model.Tier) (bool, error) {
	return svc.SubmitEvent(context.Background(), model.Event{
		EventID:       id,
		BoutID:        "bout-1",
		Round:         round,
		Side:          side,
		Type:          typ,
		Tier:          tier,
		OffsetSeconds: 10,
	})
}

func TestSubmitEvent(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with one bout", t, func() {
		clock := newFakeClock()
		svc := startService(t, clock)
		_, err := createBout(svc, 3)
		So(err, ShouldBeNil)

		Convey("When the same event is submitted twice", func() {
			dup1, err1 := submit(svc, "evt-1", 1, model.SideA, model.EventJab, "")
			dup2, err2 := submit(svc, "evt-1", 1, model.SideA, model.EventJab, "")

			Convey("Then the second submission is absorbed silently", func() {
				So(err1, ShouldBeNil)
				So(dup1, ShouldBeFalse)
				So(err2, ShouldBeNil)
				So(dup2, ShouldBeTrue)

				events, err := svc.GetEvents(ctx, "bout-1", 1)
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
			})
		})

		Convey("When an invalid event is submitted", func() {
			_, err := svc.SubmitEvent(ctx, model.Event{EventID: "evt-x", BoutID: "bout-1", Round: 1, Side: "C", Type: model.EventJab})

			Convey("Then it is rejected as a validation error", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the round is beyond the bout", func() {
			_, err := submit(svc, "evt-9", 9, model.SideA, model.EventJab, "")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, app.ErrRoundOutOfRange), ShouldBeTrue)
			})
		})

		Convey("When an event is submitted for an unknown bout", func() {
			_, err := svc.SubmitEvent(ctx, model.Event{EventID: "evt-2", BoutID: "ghost", Round: 1, Side: model.SideA, Type: model.EventJab, OffsetSeconds: 1})

			Convey("Then it reports bout not found", func() {
				So(errors.Is(err, repository.ErrBoutNotFound), ShouldBeTrue)
			})
		})

		Convey("When an accepted event is deleted", func() {
			_, err := submit(svc, "evt-1", 1, model.SideA, model.EventKnockdown, "")
			So(err, ShouldBeNil)

			tomb, err := svc.DeleteEvent(ctx, "bout-1", 1, "evt-1", "sup-1", "Supervisor")

			Convey("Then the merged view hides it behind the tombstone", func() {
				So(err, ShouldBeNil)
				So(tomb.Type, ShouldEqual, model.EventTombstone)

				events, err := svc.GetEvents(ctx, "bout-1", 1)
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
			})

			Convey("Then the deletion is audited", func() {
				entries := svc.Audit().List(ctx, audit.Filter{ActionType: audit.ActionEventTombstoned})
				So(entries, ShouldHaveLength, 1)
				So(entries[0].ResourceID, ShouldEqual, "evt-1")
			})
		})

		Convey("When deleting an event that never existed", func() {
			_, err := svc.DeleteEvent(ctx, "bout-1", 1, "ghost", "sup-1", "")

			Convey("Then it reports event not found", func() {
				So(errors.Is(err, app.ErrEventNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestComputeRound(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bout with round one events", t, func() {
		clock := newFakeClock()
		svc := startService(t, clock)
		_, err := createBout(svc, 3)
		So(err, ShouldBeNil)

		_, _ = submit(svc, "evt-1", 1, model.SideA, model.EventTakedown, "")
		_, _ = submit(svc, "evt-2", 1, model.SideA, model.EventHeadStrike, model.TierSignificant)
		_, _ = submit(svc, "evt-3", 1, model.SideB, model.EventJab, "")

		Convey("When the round is computed twice", func() {
			first, cached1, err1 := svc.ComputeRound(ctx, "bout-1", 1, false)
			second, cached2, err2 := svc.ComputeRound(ctx, "bout-1", 1, false)

			Convey("Then the second call returns the cached canonical score", func() {
				So(err1, ShouldBeNil)
				So(cached1, ShouldBeFalse)
				So(err2, ShouldBeNil)
				So(cached2, ShouldBeTrue)
				So(second, ShouldResemble, first)
				So(first.Winner, ShouldEqual, model.WinnerA)
				So(first.PolicyVersion, ShouldEqual, scoring.DefaultPolicyVersion)
				So(first.ComputedAt.Equal(clock.Now()), ShouldBeTrue)
			})
		})

		Convey("When new evidence arrives and the round is recomputed", func() {
			_, _, err := svc.ComputeRound(ctx, "bout-1", 1, false)
			So(err, ShouldBeNil)

			_, _ = submit(svc, "evt-4", 1, model.SideB, model.EventKnockdown, model.TierNearFinish)
			recomputed, cached, err := svc.ComputeRound(ctx, "bout-1", 1, true)

			Convey("Then the new score replaces the old one", func() {
				So(err, ShouldBeNil)
				So(cached, ShouldBeFalse)
				So(recomputed.Winner, ShouldEqual, model.WinnerB)
			})

			Convey("Then the previous card survives in the audit log", func() {
				entries := svc.Audit().List(ctx, audit.Filter{ActionType: audit.ActionRoundRecomputed})
				So(entries, ShouldHaveLength, 1)
				So(entries[0].ActionData["previous_card"], ShouldEqual, "10-9")
			})
		})

		Convey("When a round with no events is computed", func() {
			_, _, err := svc.ComputeRound(ctx, "bout-1", 2, false)

			Convey("Then it reports insufficient data", func() {
				So(errors.Is(err, scoring.ErrInsufficientData), ShouldBeTrue)
			})
		})

		Convey("When the round number is out of range", func() {
			_, _, err := svc.ComputeRound(ctx, "bout-1", 7, false)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, app.ErrRoundOutOfRange), ShouldBeTrue)
			})
		})
	})
}

func TestJudgeLocks(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bout with three judges", t, func() {
		clock := newFakeClock()
		svc := startService(t, clock)
		_, err := createBout(svc, 3, "j1", "j2", "j3")
		So(err, ShouldBeNil)

		lock := func(judge string) (bool, error) {
			return svc.LockJudgeScore(ctx, model.JudgeLock{
				BoutID: "bout-1", Round: 1, JudgeID: judge,
				FighterAScore: 10, FighterBScore: 9, Card: "10-9",
			})
		}

		Convey("When judges lock one at a time", func() {
			all1, err1 := lock("j1")
			all2, err2 := lock("j2")
			all3, err3 := lock("j3")

			Convey("Then only the final lock completes the round", func() {
				So(err1, ShouldBeNil)
				So(all1, ShouldBeFalse)
				So(err2, ShouldBeNil)
				So(all2, ShouldBeFalse)
				So(err3, ShouldBeNil)
				So(all3, ShouldBeTrue)

				status, err := svc.RoundStatus(ctx, "bout-1", 1)
				So(err, ShouldBeNil)
				So(status.State, ShouldEqual, model.RoundLockedFull)
				So(status.JudgeLocks, ShouldHaveLength, 3)
			})
		})

		Convey("When a judge tries to lock twice", func() {
			_, err := lock("j1")
			So(err, ShouldBeNil)
			_, err = lock("j1")

			Convey("Then the second lock hits the immutability error", func() {
				So(errors.Is(err, repository.ErrLockExists), ShouldBeTrue)
			})
		})

		Convey("When an unregistered judge locks", func() {
			_, err := lock("intruder")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, app.ErrJudgeNotRegistered), ShouldBeTrue)
			})
		})

		Convey("When a supervisor unlocks a locked score", func() {
			_, err := lock("j1")
			So(err, ShouldBeNil)
			So(svc.UnlockJudgeScore(ctx, "bout-1", 1, "j1", "sup-1"), ShouldBeNil)

			Convey("Then the judge can lock again", func() {
				_, err := lock("j1")
				So(err, ShouldBeNil)
			})

			Convey("Then both actions are audited", func() {
				So(svc.Audit().List(ctx, audit.Filter{ActionType: audit.ActionJudgeLocked}), ShouldHaveLength, 1)
				unlocks := svc.Audit().List(ctx, audit.Filter{ActionType: audit.ActionJudgeUnlocked})
				So(unlocks, ShouldHaveLength, 1)
				So(unlocks[0].UserID, ShouldEqual, "sup-1")
			})
		})

		Convey("When the locks are listed", func() {
			_, _ = lock("j1")
			scores, err := svc.JudgeScores(ctx, "bout-1")

			Convey("Then they come back grouped by round", func() {
				So(err, ShouldBeNil)
				So(scores[1], ShouldHaveLength, 1)
				So(scores[1][0].JudgeID, ShouldEqual, "j1")
			})
		})
	})
}

func TestRoundAdvanceBarrier(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bout with two registered devices and events", t, func() {
		clock := newFakeClock()
		sink := &recordingSink{}
		svc := startService(t, clock, app.WithSink(sink))
		_, err := createBout(svc, 3)
		So(err, ShouldBeNil)

		for _, dev := range []string{"dev-1", "dev-2"} {
			_, err := svc.RegisterDevice(ctx, "bout-1", dev, "acct", dev, model.RoleRedStriking)
			So(err, ShouldBeNil)
		}
		_, _ = submit(svc, "evt-1", 1, model.SideA, model.EventJab, "")

		Convey("When both devices request the next round", func() {
			results := make(chan app.AdvanceResult, 1)
			errs := make(chan error, 1)
			go func() {
				r, err := svc.RequestNextRound(ctx, "bout-1", "dev-1")
				results <- r
				errs <- err
			}()

			// Let the first device park at the barrier before the second votes.
			time.Sleep(20 * time.Millisecond)
			second, err := svc.RequestNextRound(ctx, "bout-1", "dev-2")

			Convey("Then both are released with the identical result", func() {
				So(err, ShouldBeNil)
				first := <-results
				So(<-errs, ShouldBeNil)
				So(first, ShouldResemble, second)
				So(first.Round, ShouldEqual, 1)
				So(first.NextRound, ShouldEqual, 2)
				So(first.Overridden, ShouldBeFalse)

				bout, err := svc.GetBout(ctx, "bout-1")
				So(err, ShouldBeNil)
				So(bout.CurrentRound, ShouldEqual, 2)
			})
		})

		Convey("When only one device votes", func() {
			_, err := svc.RequestNextRound(ctx, "bout-1", "dev-1")

			Convey("Then the wait times out naming the stale device", func() {
				So(errors.Is(err, app.ErrStaleDevice), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "dev-2")
			})
		})

		Convey("When the other device went silent past the staleness window", func() {
			clock.Advance(3 * time.Minute)
			_, err := svc.RegisterDevice(ctx, "bout-1", "dev-1", "acct", "dev-1", model.RoleUnassigned)
			So(err, ShouldBeNil)

			result, err := svc.RequestNextRound(ctx, "bout-1", "dev-1")

			Convey("Then the active device alone satisfies consensus", func() {
				So(err, ShouldBeNil)
				So(result.NextRound, ShouldEqual, 2)
			})
		})

		Convey("When a supervisor forces the advance past a blocked waiter", func() {
			waiterResults := make(chan app.AdvanceResult, 1)
			go func() {
				r, _ := svc.RequestNextRound(ctx, "bout-1", "dev-1")
				waiterResults <- r
			}()
			time.Sleep(20 * time.Millisecond)

			result, err := svc.ForceAdvance(ctx, "bout-1", "sup-1")

			Convey("Then the round advances with the override recorded", func() {
				So(err, ShouldBeNil)
				So(result.Overridden, ShouldBeTrue)
				So(result.NextRound, ShouldEqual, 2)

				entries := svc.Audit().List(ctx, audit.Filter{ActionType: audit.ActionBarrierOverride})
				So(entries, ShouldHaveLength, 1)
				So(entries[0].ActionData["skipped_devices"], ShouldContainSubstring, "dev-2")
			})

			Convey("Then the blocked waiter is released with the overridden result", func() {
				So(err, ShouldBeNil)
				So(<-waiterResults, ShouldResemble, result)
			})
		})

		Convey("When a device that never registered votes", func() {
			_, err := svc.RequestNextRound(ctx, "bout-1", "ghost")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, app.ErrDeviceNotRegistered), ShouldBeTrue)
			})
		})
	})
}

func TestFinalizeFight(t *testing.T) {
	ctx := context.Background()

	Convey("Given a three round bout", t, func() {
		clock := newFakeClock()
		svc := startService(t, clock)
		_, err := createBout(svc, 3)
		So(err, ShouldBeNil)

		scoreRound := func(round int, winner model.Side) {
			id := "evt-" + strconv.Itoa(round)
			_, err := submit(svc, id, round, winner, model.EventKnockdown, "")
			So(err, ShouldBeNil)
			_, _, err = svc.ComputeRound(ctx, "bout-1", round, false)
			So(err, ShouldBeNil)
		}

		Convey("When finalizing before every round is scored", func() {
			scoreRound(1, model.SideA)
			_, err := svc.FinalizeFight(ctx, "bout-1")

			Convey("Then it reports the missing rounds", func() {
				So(errors.Is(err, app.ErrIncompleteRounds), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "2")
				So(err.Error(), ShouldContainSubstring, "3")
			})
		})

		Convey("When every round is scored", func() {
			scoreRound(1, model.SideA)
			scoreRound(2, model.SideA)
			scoreRound(3, model.SideB)

			result, err := svc.FinalizeFight(ctx, "bout-1")

			Convey("Then the totals and winner follow the cards", func() {
				So(err, ShouldBeNil)
				So(result.FinalRed, ShouldEqual, 29)
				So(result.FinalBlue, ShouldEqual, 28)
				So(result.Winner, ShouldEqual, model.WinnerA)
				So(result.WinnerName, ShouldEqual, "Red Corner")

				bout, err := svc.GetBout(ctx, "bout-1")
				So(err, ShouldBeNil)
				So(bout.Status, ShouldEqual, model.BoutCompleted)
			})

			Convey("Then finalize is idempotent", func() {
				again, err := svc.FinalizeFight(ctx, "bout-1")
				So(err, ShouldBeNil)
				So(again, ShouldResemble, result)
			})

			Convey("Then no device can advance a completed bout", func() {
				_, err := svc.RegisterDevice(ctx, "bout-1", "dev-1", "acct", "dev-1", model.RoleUnassigned)
				So(err, ShouldBeNil)
				_, err = svc.RequestNextRound(ctx, "bout-1", "dev-1")
				So(errors.Is(err, app.ErrBoutCompleted), ShouldBeTrue)
			})
		})
	})
}

func TestViewsAndPresence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bout with devices and scores", t, func() {
		clock := newFakeClock()
		sink := &recordingSink{}
		svc := startService(t, clock, app.WithSink(sink))
		_, err := createBout(svc, 3)
		So(err, ShouldBeNil)

		_, err = svc.RegisterDevice(ctx, "bout-1", "dev-1", "acct", "Red tablet", model.RoleRedStriking)
		So(err, ShouldBeNil)
		_, err = svc.RegisterDevice(ctx, "bout-1", "dev-2", "acct", "Blue tablet", model.RoleBlueStriking)
		So(err, ShouldBeNil)

		Convey("When one device stops heartbeating", func() {
			clock.Advance(3 * time.Minute)
			So(svc.Heartbeat(ctx, "bout-1", "dev-1"), ShouldBeNil)

			status, err := svc.Status(ctx, "bout-1")

			Convey("Then the status separates active from stale", func() {
				So(err, ShouldBeNil)
				So(status.ActiveCount, ShouldEqual, 1)
				So(status.StaleCount, ShouldEqual, 1)
				So(status.Devices, ShouldHaveLength, 2)
			})
		})

		Convey("When a device disconnects", func() {
			So(svc.DisconnectDevice(ctx, "bout-1", "dev-2"), ShouldBeNil)

			status, err := svc.Status(ctx, "bout-1")

			Convey("Then it disappears from the roster", func() {
				So(err, ShouldBeNil)
				So(status.Devices, ShouldHaveLength, 1)
				So(status.Devices[0].DeviceID, ShouldEqual, "dev-1")
			})

			Convey("Then heartbeats for it fail", func() {
				So(errors.Is(svc.Heartbeat(ctx, "bout-1", "dev-2"), app.ErrDeviceNotRegistered), ShouldBeTrue)
			})
		})

		Convey("When rounds are computed", func() {
			for round := 1; round <= 2; round++ {
				_, err := submit(svc, "evt-"+strconv.Itoa(round), round, model.SideA, model.EventKnockdown, "")
				So(err, ShouldBeNil)
				_, _, err = svc.ComputeRound(ctx, "bout-1", round, false)
				So(err, ShouldBeNil)
			}

			view, err := svc.Rounds(ctx, "bout-1")

			Convey("Then the scoreboard carries running totals", func() {
				So(err, ShouldBeNil)
				So(view.Rounds, ShouldHaveLength, 2)
				So(view.RunningRed, ShouldEqual, 20)
				So(view.RunningBlue, ShouldEqual, 18)
				So(view.Fighter1, ShouldEqual, "Red Corner")
			})

			Convey("Then websocket snapshots mirror the polling payloads", func() {
				msgs := svc.SnapshotMessages(ctx, "bout-1")
				So(msgs, ShouldHaveLength, 2)
				So(msgs[0].Kind, ShouldEqual, "score_update")
				So(msgs[0].Payload.(app.RoundsView), ShouldResemble, view)
				So(msgs[1].Kind, ShouldEqual, "sync_status")
			})

			Convey("Then the computes were broadcast", func() {
				So(sink.kinds(), ShouldContain, "round_computed")
			})
		})
	})
}
