package dedupe_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/fightcard/ringside/internal/domain/dedupe"
	"github.com/fightcard/ringside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKey(t *testing.T) {
	Convey("Given event coordinates", t, func() {
		Convey("When building keys", func() {
			Convey("Then the triple is encoded unambiguously", func() {
				So(dedupe.Key("bout-1", 2, "evt-9"), ShouldEqual, "bout-1/2/evt-9")
				So(dedupe.KeyFor(&model.Event{BoutID: "bout-1", Round: 2, EventID: "evt-9"}), ShouldEqual, "bout-1/2/evt-9")
			})

			Convey("Then the same client id in different rounds is distinct", func() {
				So(dedupe.Key("bout-1", 1, "evt-9"), ShouldNotEqual, dedupe.Key("bout-1", 2, "evt-9"))
			})
		})
	})
}

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "k1")
			second := d.SeenAndRecord(ctx, "k1")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(ctx, "k1")
			d.Unrecord(ctx, "k1")

			Convey("Then it can be recorded again", func() {
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording a key that was never seen", func() {
			d.Unrecord(ctx, "ghost")

			Convey("Then the size is unchanged", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more keys than the cap are recorded", func() {
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, "k"+strconv.Itoa(i))
			}

			Convey("Then the oldest keys were evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "k0"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
			})
		})
	})
}
