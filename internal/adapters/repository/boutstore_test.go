package repository_test

import (
	"context"
	"testing"

	repository "github.com/fightcard/ringside/internal/adapters/repository"
	"github.com/fightcard/ringside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBoutStoreLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty bout store", t, func() {
		store := repository.NewBoutStore()
		bout := model.Bout{BoutID: "bout-1", Fighter1: "Red", Fighter2: "Blue", TotalRounds: 3, CurrentRound: 1, Status: model.BoutActive}

		Convey("When a bout is created", func() {
			err := store.CreateBout(ctx, bout)

			Convey("Then it can be read back", func() {
				So(err, ShouldBeNil)
				got, err := store.GetBout(ctx, "bout-1")
				So(err, ShouldBeNil)
				So(got.Fighter1, ShouldEqual, "Red")
				So(store.BoutCount(ctx), ShouldEqual, 1)
			})

			Convey("Then a second create with the same id fails", func() {
				So(store.CreateBout(ctx, bout), ShouldEqual, repository.ErrBoutExists)
			})

			Convey("Then updates go through the store lock", func() {
				updated, err := store.UpdateBout(ctx, "bout-1", func(b *model.Bout) {
					b.CurrentRound = 2
				})
				So(err, ShouldBeNil)
				So(updated.CurrentRound, ShouldEqual, 2)
			})
		})

		Convey("When an unknown bout is requested", func() {
			_, err := store.GetBout(ctx, "nope")

			Convey("Then it reports not found", func() {
				So(err, ShouldEqual, repository.ErrBoutNotFound)
			})
		})
	})
}

func TestBoutStoreRoundScores(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bout store", t, func() {
		store := repository.NewBoutStore()
		score := model.RoundScore{BoutID: "bout-1", Round: 1, FighterAPoints: 10, FighterBPoints: 9, Card: "10-9"}

		Convey("When a round score is stored twice", func() {
			_, had := store.PutRoundScore(ctx, score)
			So(had, ShouldBeFalse)

			recomputed := score
			recomputed.Card = "10-8"
			prev, had := store.PutRoundScore(ctx, recomputed)

			Convey("Then the overwrite surfaces the prior value", func() {
				So(had, ShouldBeTrue)
				So(prev.Card, ShouldEqual, "10-9")

				got, err := store.GetRoundScore(ctx, "bout-1", 1)
				So(err, ShouldBeNil)
				So(got.Card, ShouldEqual, "10-8")
			})
		})

		Convey("When no score exists", func() {
			_, err := store.GetRoundScore(ctx, "bout-1", 2)

			Convey("Then it reports not found", func() {
				So(err, ShouldEqual, repository.ErrScoreNotFound)
			})
		})
	})
}

func TestBoutStoreJudgeLocks(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bout store", t, func() {
		store := repository.NewBoutStore()
		lock := model.JudgeLock{BoutID: "bout-1", Round: 1, JudgeID: "judge-1", FighterAScore: 10, FighterBScore: 9}

		Convey("When a judge locks a round twice", func() {
			So(store.PutJudgeLock(ctx, lock), ShouldBeNil)
			err := store.PutJudgeLock(ctx, lock)

			Convey("Then the second lock is rejected as immutable", func() {
				So(err, ShouldEqual, repository.ErrLockExists)
				So(store.JudgeLocks(ctx, "bout-1", 1), ShouldHaveLength, 1)
			})
		})

		Convey("When a lock is removed and re-placed", func() {
			So(store.PutJudgeLock(ctx, lock), ShouldBeNil)
			So(store.RemoveJudgeLock(ctx, "bout-1", 1, "judge-1"), ShouldBeNil)

			relocked := lock
			relocked.FighterBScore = 8
			err := store.PutJudgeLock(ctx, relocked)

			Convey("Then the new lock lands", func() {
				So(err, ShouldBeNil)
				locks := store.JudgeLocks(ctx, "bout-1", 1)
				So(locks, ShouldHaveLength, 1)
				So(locks[0].FighterBScore, ShouldEqual, 8)
			})
		})

		Convey("When removing a lock that does not exist", func() {
			err := store.RemoveJudgeLock(ctx, "bout-1", 1, "judge-9")

			Convey("Then it reports not found", func() {
				So(err, ShouldEqual, repository.ErrLockNotFound)
			})
		})

		Convey("When locks span rounds", func() {
			So(store.PutJudgeLock(ctx, lock), ShouldBeNil)
			r2 := lock
			r2.Round = 2
			So(store.PutJudgeLock(ctx, r2), ShouldBeNil)

			Convey("Then AllJudgeLocks groups them by round", func() {
				all := store.AllJudgeLocks(ctx, "bout-1")
				So(all, ShouldHaveLength, 2)
				So(all[1], ShouldHaveLength, 1)
				So(all[2], ShouldHaveLength, 1)
			})
		})

		Convey("When several judges lock the same round", func() {
			for _, id := range []string{"judge-3", "judge-1", "judge-2"} {
				l := lock
				l.JudgeID = id
				So(store.PutJudgeLock(ctx, l), ShouldBeNil)
			}

			Convey("Then the listing is ordered by judge id on every read", func() {
				first := store.JudgeLocks(ctx, "bout-1", 1)
				So(first, ShouldHaveLength, 3)
				So(first[0].JudgeID, ShouldEqual, "judge-1")
				So(first[1].JudgeID, ShouldEqual, "judge-2")
				So(first[2].JudgeID, ShouldEqual, "judge-3")
				So(store.JudgeLocks(ctx, "bout-1", 1), ShouldResemble, first)
				So(store.AllJudgeLocks(ctx, "bout-1")[1], ShouldResemble, first)
			})
		})
	})
}

func TestBoutStoreResults(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bout store", t, func() {
		store := repository.NewBoutStore()

		Convey("When a result is stored twice", func() {
			first := store.PutResult(ctx, model.FightResult{BoutID: "bout-1", Winner: model.WinnerA, FinalRed: 30, FinalBlue: 27})
			second := store.PutResult(ctx, model.FightResult{BoutID: "bout-1", Winner: model.WinnerB})

			Convey("Then the first write wins", func() {
				So(first.Winner, ShouldEqual, model.WinnerA)
				So(second.Winner, ShouldEqual, model.WinnerA)

				got, ok := store.GetResult(ctx, "bout-1")
				So(ok, ShouldBeTrue)
				So(got.FinalRed, ShouldEqual, 30)
			})
		})
	})
}
