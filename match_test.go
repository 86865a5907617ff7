package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMatchTracker(t *testing.T) {
	cfg := NewConfig()

	Convey("Given a fresh tracker", t, func() {
		tr := NewMatchTracker(cfg)

		Convey("The round counter starts at one", func() {
			So(tr.Round(), ShouldEqual, 1)
			So(tr.PlayPoints(), ShouldEqual, 1)
		})

		Convey("Advancing the round grows the play-point pool", func() {
			tr.AdvanceRound()
			So(tr.Round(), ShouldEqual, 2)
			So(tr.PlayPoints(), ShouldEqual, 2)
		})

		Convey("The play-point pool caps at ten", func() {
			for i := 0; i < 14; i++ {
				tr.AdvanceRound()
			}
			So(tr.PlayPoints(), ShouldEqual, 10)
		})
	})

	Convey("The extra-cost bonus is one-shot per match phase", t, func() {
		tr := NewMatchTracker(cfg)

		So(tr.TryExtraCost(cfg.LateRoundStart), ShouldBeTrue)
		So(tr.TryExtraCost(cfg.LateRoundStart), ShouldBeFalse)

		Convey("A second claim opens after the late boundary", func() {
			for tr.Round() < cfg.LateRoundStart {
				tr.AdvanceRound()
			}
			So(tr.TryExtraCost(cfg.LateRoundStart), ShouldBeTrue)
			So(tr.TryExtraCost(cfg.LateRoundStart), ShouldBeFalse)
		})
	})

	Convey("Evolve points only go down", t, func() {
		tr := NewMatchTracker(cfg)

		So(tr.EvolvePoints(), ShouldEqual, cfg.EvolvePoints)
		So(tr.SpendEvolve(EvolveNormal), ShouldBeTrue)
		So(tr.SpendEvolve(EvolveNormal), ShouldBeTrue)
		So(tr.SpendEvolve(EvolveNormal), ShouldBeFalse)
		So(tr.EvolvePoints(), ShouldEqual, 0)

		Convey("Super points are a separate pool", func() {
			So(tr.SuperEvolvePoints(), ShouldEqual, cfg.SuperEvolvePoints)
			So(tr.SpendEvolve(EvolveSuper), ShouldBeTrue)
		})

		Convey("EvolveNone spends nothing", func() {
			So(tr.SpendEvolve(EvolveNone), ShouldBeFalse)
		})
	})

	Convey("Play strikes accumulate within one turn", t, func() {
		tr := NewMatchTracker(cfg)

		So(tr.NoteFailedPlay("brick"), ShouldEqual, 1)
		So(tr.PlaySkipped("brick", 3), ShouldBeFalse)
		tr.NoteFailedPlay("brick")
		tr.NoteFailedPlay("brick")
		So(tr.PlaySkipped("brick", 3), ShouldBeTrue)

		Convey("A round change forgives the strikes", func() {
			tr.AdvanceRound()
			So(tr.PlaySkipped("brick", 3), ShouldBeFalse)
		})
	})

	Convey("Benching retires a card without three failures", t, func() {
		tr := NewMatchTracker(cfg)

		tr.BenchPlay("execution", 3)
		So(tr.PlaySkipped("execution", 3), ShouldBeTrue)

		Convey("The bench expires with the turn", func() {
			tr.AdvanceRound()
			So(tr.PlaySkipped("execution", 3), ShouldBeFalse)
		})

		Convey("Benching never lowers an existing strike count", func() {
			tr.NoteFailedPlay("brick")
			tr.NoteFailedPlay("brick")
			tr.NoteFailedPlay("brick")
			tr.NoteFailedPlay("brick")
			tr.BenchPlay("brick", 3)
			So(tr.PlaySkipped("brick", 4), ShouldBeTrue)
		})
	})

	Convey("Direct strikes reset every round", t, func() {
		tr := NewMatchTracker(cfg)

		tr.RecordStrike("twinblade")
		So(tr.StrikesThisRound("twinblade"), ShouldEqual, 1)
		tr.AdvanceRound()
		So(tr.StrikesThisRound("twinblade"), ShouldEqual, 0)
	})

	Convey("The stall clock reacts to progress", t, func() {
		tr := NewMatchTracker(cfg)

		So(tr.Stalled(time.Hour), ShouldBeFalse)
		time.Sleep(2 * time.Millisecond)
		So(tr.Stalled(time.Millisecond), ShouldBeTrue)
		tr.Touch()
		So(tr.Stalled(time.Hour), ShouldBeFalse)
	})

	Convey("The summary reflects the tracker", t, func() {
		tr := NewMatchTracker(cfg)
		tr.AdvanceRound()
		tr.AdvanceRound()

		s := tr.Summary()
		So(s.RunID, ShouldNotBeEmpty)
		So(s.Rounds, ShouldEqual, 3)
		So(s.EndedAt.IsZero(), ShouldBeFalse)
	})
}

func TestAppendSummary(t *testing.T) {
	Convey("Summaries append as JSON lines", t, func() {
		path := filepath.Join(t.TempDir(), "matches.json")

		first := MatchSummary{RunID: "run-1", Rounds: 9, EndedAt: time.Now()}
		second := MatchSummary{RunID: "run-2", Rounds: 12, EndedAt: time.Now()}
		So(AppendSummary(path, first), ShouldBeNil)
		So(AppendSummary(path, second), ShouldBeNil)

		f, err := os.Open(path)
		So(err, ShouldBeNil)
		defer f.Close()

		var got []MatchSummary
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var s MatchSummary
			So(json.Unmarshal(scanner.Bytes(), &s), ShouldBeNil)
			got = append(got, s)
		}
		So(got, ShouldHaveLength, 2)
		So(got[0].RunID, ShouldEqual, "run-1")
		So(got[1].Rounds, ShouldEqual, 12)
	})
}
