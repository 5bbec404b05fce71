package app

import (
	"sync"
	"testing"
	"time"

	"github.com/fightcard/ringside/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDeviceRegistry(t *testing.T) {
	base := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	convey.Convey("Given a registry with a controllable clock", t, func() {
		var mu sync.Mutex
		now := base
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}
		reg := newDeviceRegistry(2*time.Minute, clock)

		convey.Convey("When a device registers", func() {
			sess := reg.register("bout-1", "dev-1", "acct", "Red tablet", model.RoleRedStriking)

			convey.So(sess.Role, convey.ShouldEqual, model.RoleRedStriking)
			convey.So(sess.LastSeenAt.Equal(base), convey.ShouldBeTrue)

			convey.Convey("Then re-registering refreshes the heartbeat but keeps the role", func() {
				advance(time.Minute)
				again := reg.register("bout-1", "dev-1", "acct", "Renamed tablet", model.RoleUnassigned)

				convey.So(again.Role, convey.ShouldEqual, model.RoleRedStriking)
				convey.So(again.DeviceName, convey.ShouldEqual, "Renamed tablet")
				convey.So(again.LastSeenAt.After(base), convey.ShouldBeTrue)
			})

			convey.Convey("Then an explicit role on re-registration reassigns it", func() {
				again := reg.register("bout-1", "dev-1", "acct", "Red tablet", model.RoleRedGrappling)
				convey.So(again.Role, convey.ShouldEqual, model.RoleRedGrappling)
			})

			convey.Convey("Then the returned session is a copy", func() {
				sess.Role = model.RoleBlueStriking
				stored, ok := reg.get("bout-1", "dev-1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(stored.Role, convey.ShouldEqual, model.RoleRedStriking)
			})
		})

		convey.Convey("When devices drift past the staleness window", func() {
			reg.register("bout-1", "dev-1", "acct", "d1", model.RoleUnassigned)
			reg.register("bout-1", "dev-2", "acct", "d2", model.RoleUnassigned)
			advance(3 * time.Minute)
			reg.heartbeat("bout-1", "dev-1")

			convey.Convey("Then only the heartbeating device stays active", func() {
				convey.So(reg.activeDevices("bout-1"), convey.ShouldResemble, []string{"dev-1"})
				convey.So(reg.staleDevices("bout-1"), convey.ShouldResemble, []string{"dev-2"})
			})
		})

		convey.Convey("When the ready flags are cycled", func() {
			reg.register("bout-1", "dev-1", "acct", "d1", model.RoleUnassigned)
			reg.register("bout-1", "dev-2", "acct", "d2", model.RoleUnassigned)
			reg.setReady("bout-1", "dev-1", true)

			sessions := reg.boutSessions("bout-1")
			convey.So(sessions[0].ReadyForNextRound, convey.ShouldBeTrue)
			convey.So(sessions[1].ReadyForNextRound, convey.ShouldBeFalse)

			convey.Convey("Then an advance clears every flag", func() {
				reg.clearReady("bout-1")
				for _, s := range reg.boutSessions("bout-1") {
					convey.So(s.ReadyForNextRound, convey.ShouldBeFalse)
				}
			})
		})

		convey.Convey("When a device disconnects", func() {
			reg.register("bout-1", "dev-1", "acct", "d1", model.RoleUnassigned)
			convey.So(reg.disconnect("bout-1", "dev-1"), convey.ShouldBeTrue)
			convey.So(reg.disconnect("bout-1", "dev-1"), convey.ShouldBeFalse)
			convey.So(reg.heartbeat("bout-1", "dev-1"), convey.ShouldBeFalse)
		})

		convey.Convey("When bouts share the registry", func() {
			reg.register("bout-1", "dev-1", "acct", "d1", model.RoleUnassigned)
			reg.register("bout-2", "dev-1", "acct", "d1", model.RoleUnassigned)

			convey.Convey("Then sessions stay scoped to their bout", func() {
				convey.So(reg.boutSessions("bout-1"), convey.ShouldHaveLength, 1)
				convey.So(reg.boutSessions("bout-2"), convey.ShouldHaveLength, 1)
				convey.So(reg.activeDevices("bout-1"), convey.ShouldResemble, []string{"dev-1"})
			})
		})
	})
}
