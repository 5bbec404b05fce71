package repository_test

import (
	"context"
	"strconv"
	"testing"

	repository "github.com/fightcard/ringside/internal/adapters/repository"
	"github.com/fightcard/ringside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func logEvent(id string, round int, offset float64) model.Event {
	return model.Event{
		EventID:       id,
		BoutID:        "bout-1",
		Round:         round,
		Side:          model.SideA,
		Type:          model.EventJab,
		OffsetSeconds: offset,
	}
}

func TestTreapLogOrdering(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty event log", t, func() {
		log := repository.NewTreapLog(ctx)

		Convey("When events arrive out of timeline order", func() {
			for _, e := range []model.Event{
				logEvent("e-late", 1, 250),
				logEvent("e-early", 1, 10),
				logEvent("e-mid", 1, 120),
			} {
				_, err := log.Append(ctx, e)
				So(err, ShouldBeNil)
			}

			Convey("Then reads return the round timeline, not arrival order", func() {
				events := log.Events(ctx, "bout-1", 1)
				So(events, ShouldHaveLength, 3)
				So(events[0].EventID, ShouldEqual, "e-early")
				So(events[1].EventID, ShouldEqual, "e-mid")
				So(events[2].EventID, ShouldEqual, "e-late")
			})
		})

		Convey("When two events share an offset", func() {
			first, err := log.Append(ctx, logEvent("e-1", 1, 60))
			So(err, ShouldBeNil)
			second, err := log.Append(ctx, logEvent("e-2", 1, 60))
			So(err, ShouldBeNil)

			Convey("Then arrival order breaks the tie deterministically", func() {
				So(second.Seq, ShouldBeGreaterThan, first.Seq)
				events := log.Events(ctx, "bout-1", 1)
				So(events[0].EventID, ShouldEqual, "e-1")
				So(events[1].EventID, ShouldEqual, "e-2")
			})
		})

		Convey("When an offline replay lands after the round moved on", func() {
			_, err := log.Append(ctx, logEvent("live-1", 1, 30))
			So(err, ShouldBeNil)
			_, err = log.Append(ctx, logEvent("live-2", 1, 200))
			So(err, ShouldBeNil)
			_, err = log.Append(ctx, logEvent("replayed", 1, 90))
			So(err, ShouldBeNil)

			Convey("Then the replayed event sits at its recorded position", func() {
				events := log.Events(ctx, "bout-1", 1)
				So(events[1].EventID, ShouldEqual, "replayed")
			})
		})

		Convey("When the same event id is appended twice", func() {
			_, err := log.Append(ctx, logEvent("dup", 1, 5))
			So(err, ShouldBeNil)
			_, err = log.Append(ctx, logEvent("dup", 1, 5))

			Convey("Then the second append is rejected", func() {
				So(err, ShouldEqual, repository.ErrEventExists)
				So(log.Count(ctx, "bout-1", 1), ShouldEqual, 1)
			})
		})

		Convey("When rounds are interleaved", func() {
			_, _ = log.Append(ctx, logEvent("r1", 1, 10))
			_, _ = log.Append(ctx, logEvent("r2", 2, 10))

			Convey("Then each round has its own timeline", func() {
				So(log.Count(ctx, "bout-1", 1), ShouldEqual, 1)
				So(log.Count(ctx, "bout-1", 2), ShouldEqual, 1)
				So(log.Events(ctx, "bout-1", 2)[0].EventID, ShouldEqual, "r2")
			})
		})
	})
}

func TestTreapLogMerged(t *testing.T) {
	ctx := context.Background()

	Convey("Given a log with a tombstoned event", t, func() {
		log := repository.NewTreapLog(ctx)
		_, _ = log.Append(ctx, logEvent("keep", 1, 10))
		_, _ = log.Append(ctx, logEvent("gone", 1, 20))

		tomb := logEvent("tomb-1", 1, 20)
		tomb.Type = model.EventTombstone
		tomb.Metadata = map[string]string{model.MetaTombstonedEventID: "gone"}
		_, _ = log.Append(ctx, tomb)

		Convey("When the merged view is read", func() {
			merged := log.Merged(ctx, "bout-1", 1)

			Convey("Then the tombstone and its target are filtered", func() {
				So(merged, ShouldHaveLength, 1)
				So(merged[0].EventID, ShouldEqual, "keep")
			})

			Convey("Then the raw view still holds every record", func() {
				So(log.Events(ctx, "bout-1", 1), ShouldHaveLength, 3)
				_, ok := log.Get(ctx, "bout-1", 1, "gone")
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestTreapLogScale(t *testing.T) {
	ctx := context.Background()

	Convey("Given many appends in adversarial order", t, func() {
		log := repository.NewTreapLog(ctx)
		const n = 2000
		for i := n - 1; i >= 0; i-- {
			_, err := log.Append(ctx, logEvent("e-"+strconv.Itoa(i), 1, float64(i)))
			So(err, ShouldBeNil)
		}

		Convey("When the timeline is read back", func() {
			events := log.Events(ctx, "bout-1", 1)

			Convey("Then it is complete and sorted by offset", func() {
				So(events, ShouldHaveLength, n)
				for i := 1; i < n; i++ {
					So(events[i].OffsetSeconds, ShouldBeGreaterThanOrEqualTo, events[i-1].OffsetSeconds)
				}
			})
		})
	})
}
