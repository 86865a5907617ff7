package main

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeInput records dispatched events and always reports success.
type fakeInput struct {
	clicks []Point
	drags  [][2]Point
}

func (f *fakeInput) Click(x, y int) bool {
	f.clicks = append(f.clicks, Point{X: x, Y: y})
	return true
}

func (f *fakeInput) Drag(x1, y1, x2, y2 int, _ time.Duration) bool {
	f.drags = append(f.drags, [2]Point{{X: x1, Y: y1}, {X: x2, Y: y2}})
	return true
}

func (f *fakeInput) PressKey(string) bool { return true }

func specialTestConfig() *Config {
	cfg := NewConfig()
	cfg.StabilizeMS = 0
	return cfg
}

func TestSpecialRegistry(t *testing.T) {
	Convey("Given the default registry", t, func() {
		reg := DefaultSpecialRegistry()

		Convey("Named cards resolve to their handlers", func() {
			So(reg.Find("execution"), ShouldHaveSameTypeAs, &TargetedRemovalHandler{})
			So(reg.Find("alyaska_war_consul"), ShouldHaveSameTypeAs, &FollowerBuffHandler{})
		})

		Convey("Ordinary cards resolve to nothing", func() {
			So(reg.Find("fairy"), ShouldBeNil)
		})

		Convey("Unnamed cards resolve to nothing", func() {
			So(reg.Find(""), ShouldBeNil)
		})
	})

	Convey("Registration order decides dispatch", t, func() {
		first := &TargetedRemovalHandler{Names: map[string]bool{"dual": true}}
		second := &FollowerBuffHandler{Names: map[string]bool{"dual": true}}
		reg := NewSpecialRegistry(first, second)
		So(reg.Find("dual"), ShouldEqual, first)
	})
}

func TestTargetedRemovalHandler(t *testing.T) {
	handler := &TargetedRemovalHandler{Names: map[string]bool{"execution": true}}
	card := HandCard{Name: "execution", Cost: 3, Anchor: Point{X: 400, Y: 640}}

	Convey("With no enemy on board the play is declined", t, func() {
		in := &fakeInput{}
		ctx := &SpecialContext{Cfg: specialTestConfig(), In: in, Board: BoardState{}}

		res := handler.Execute(ctx, card)

		So(res.Played, ShouldBeFalse)
		Convey("And no cost is consumed", func() {
			So(res.CostConsumed, ShouldBeFalse)
		})
		Convey("And nothing was dispatched", func() {
			So(in.clicks, ShouldBeEmpty)
			So(in.drags, ShouldBeEmpty)
		})
		Convey("And the card is struck from the hand for the turn", func() {
			So(res.StrikeFromHand, ShouldBeTrue)
		})
	})

	Convey("With enemies the strongest readable one is targeted", t, func() {
		in := &fakeInput{}
		board := BoardState{Enemies: []Follower{
			{Health: 2, Anchor: Point{X: 300, Y: 200}},
			{Health: 6, Anchor: Point{X: 500, Y: 200}},
		}}
		ctx := &SpecialContext{Cfg: specialTestConfig(), In: in, Board: board}

		res := handler.Execute(ctx, card)

		So(res.Played, ShouldBeTrue)
		So(res.CostConsumed, ShouldBeTrue)
		So(in.drags, ShouldHaveLength, 1)
		So(in.drags[0][0], ShouldResemble, card.Anchor)
		So(in.clicks, ShouldHaveLength, 1)
		So(in.clicks[0], ShouldResemble, Point{X: 500, Y: 200})
	})
}

func TestFollowerBuffHandler(t *testing.T) {
	handler := &FollowerBuffHandler{Names: map[string]bool{"consul": true}}
	card := HandCard{Name: "consul", Cost: 2, Anchor: Point{X: 420, Y: 640}}

	Convey("With no friendly follower the play is declined without cost", t, func() {
		in := &fakeInput{}
		ctx := &SpecialContext{Cfg: specialTestConfig(), In: in, Board: BoardState{}}

		res := handler.Execute(ctx, card)
		So(res.Played, ShouldBeFalse)
		So(res.CostConsumed, ShouldBeFalse)
		So(in.drags, ShouldBeEmpty)

		Convey("But the card stays eligible, a target may still appear", func() {
			So(res.StrikeFromHand, ShouldBeFalse)
		})
	})

	Convey("With followers the leftmost one is buffed", t, func() {
		in := &fakeInput{}
		board := BoardState{OurFollowers: []Follower{
			{Name: "fairy", Anchor: Point{X: 250, Y: 420}},
			{Name: "golem", Anchor: Point{X: 450, Y: 420}},
		}}
		ctx := &SpecialContext{Cfg: specialTestConfig(), In: in, Board: board}

		res := handler.Execute(ctx, card)
		So(res.Played, ShouldBeTrue)
		So(res.CostConsumed, ShouldBeTrue)
		So(in.clicks[len(in.clicks)-1], ShouldResemble, Point{X: 250, Y: 420})
	})
}

func TestStrongestEnemy(t *testing.T) {
	Convey("Unknown health ranks below any readable health", t, func() {
		enemies := []Follower{
			{Health: statUnknown, Anchor: Point{X: 300}},
			{Health: 1, Anchor: Point{X: 500}},
		}
		target, ok := strongestEnemy(enemies)
		So(ok, ShouldBeTrue)
		So(target.Anchor.X, ShouldEqual, 500)
	})

	Convey("A lone unknown-health enemy is still a target", t, func() {
		enemies := []Follower{{Health: statUnknown, Anchor: Point{X: 300}}}
		_, ok := strongestEnemy(enemies)
		So(ok, ShouldBeTrue)
	})
}
