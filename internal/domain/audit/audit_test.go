package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/fightcard/ringside/internal/domain/audit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogAppendAndRead(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty audit log", t, func() {
		log := audit.NewLog()

		Convey("When an action is appended", func() {
			e := log.Append(ctx, audit.ActionJudgeLocked, audit.ResourceJudge, "bout-1/round/2", "judge-7", "Ada", map[string]string{
				"card": "10-9",
			})

			Convey("Then the entry is signed, stamped and retrievable", func() {
				So(e.ID, ShouldNotBeEmpty)
				So(e.Signature, ShouldNotBeEmpty)
				So(e.Immutable, ShouldBeTrue)
				So(e.Timestamp.Location(), ShouldEqual, time.UTC)

				got, err := log.Get(ctx, e.ID)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, e)
			})

			Convey("Then its signature verifies", func() {
				valid, err := log.VerifySignature(ctx, e.ID)
				So(err, ShouldBeNil)
				So(valid, ShouldBeTrue)
			})
		})

		Convey("When an unknown id is requested", func() {
			_, err := log.Get(ctx, "nope")

			Convey("Then it reports not found", func() {
				So(err, ShouldEqual, audit.ErrEntryNotFound)
			})
		})
	})
}

func TestLogImmutability(t *testing.T) {
	ctx := context.Background()

	Convey("Given a log with one entry", t, func() {
		log := audit.NewLog()
		e := log.Append(ctx, audit.ActionEventAccepted, audit.ResourceEvent, "evt-1", "dev-1", "", nil)

		Convey("When an update is attempted", func() {
			err := log.Update(ctx, e.ID, audit.Entry{})

			Convey("Then it fails with the immutability error", func() {
				So(err, ShouldEqual, audit.ErrImmutableResource)
			})
		})

		Convey("When a delete is attempted", func() {
			err := log.Delete(ctx, e.ID)

			Convey("Then it fails with the immutability error", func() {
				So(err, ShouldEqual, audit.ErrImmutableResource)
				So(log.Len(), ShouldEqual, 1)
			})
		})
	})
}

func TestLogFilterAndExport(t *testing.T) {
	ctx := context.Background()

	Convey("Given a log with mixed entries", t, func() {
		log := audit.NewLog()
		log.Append(ctx, audit.ActionJudgeLocked, audit.ResourceJudge, "bout-1/round/1", "judge-1", "", nil)
		log.Append(ctx, audit.ActionJudgeLocked, audit.ResourceJudge, "bout-1/round/1", "judge-2", "", nil)
		log.Append(ctx, audit.ActionRoundComputed, audit.ResourceRound, "bout-1/round/1", "", "", nil)

		Convey("When filtering by user", func() {
			got := log.List(ctx, audit.Filter{UserID: "judge-1"})

			Convey("Then only that judge's entries match", func() {
				So(got, ShouldHaveLength, 1)
				So(got[0].UserID, ShouldEqual, "judge-1")
			})
		})

		Convey("When filtering by action type", func() {
			got := log.List(ctx, audit.Filter{ActionType: audit.ActionJudgeLocked})

			Convey("Then both lock entries match in order", func() {
				So(got, ShouldHaveLength, 2)
				So(got[0].UserID, ShouldEqual, "judge-1")
				So(got[1].UserID, ShouldEqual, "judge-2")
			})
		})

		Convey("When exporting", func() {
			export := log.ExportAll(ctx)

			Convey("Then every record and the count are present", func() {
				So(export.RecordCount, ShouldEqual, 3)
				So(export.Records, ShouldHaveLength, 3)
			})
		})
	})
}

func TestLogSigningKey(t *testing.T) {
	ctx := context.Background()

	Convey("Given two logs with different signing keys", t, func() {
		fixed := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
		clock := func() time.Time { return fixed }
		a := audit.NewLog(audit.WithClock(clock))
		b := audit.NewLog(audit.WithSigningKey([]byte("other-key")), audit.WithClock(clock))

		Convey("When the same action is appended to both", func() {
			ea := a.Append(ctx, audit.ActionBarrierOverride, audit.ResourceRound, "bout-1/round/3", "sup-1", "", map[string]string{"skipped_devices": "dev-2"})
			eb := b.Append(ctx, audit.ActionBarrierOverride, audit.ResourceRound, "bout-1/round/3", "sup-1", "", map[string]string{"skipped_devices": "dev-2"})

			Convey("Then the signatures differ", func() {
				So(ea.Signature, ShouldNotEqual, eb.Signature)
			})

			Convey("Then each verifies against its own log", func() {
				va, err := a.VerifySignature(ctx, ea.ID)
				So(err, ShouldBeNil)
				So(va, ShouldBeTrue)
				vb, err := b.VerifySignature(ctx, eb.ID)
				So(err, ShouldBeNil)
				So(vb, ShouldBeTrue)
			})
		})
	})
}
