package main

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestChooseDiscards(t *testing.T) {
	Convey("Given the curve3 replace strategy", t, func() {
		Convey("A hand already on curve is kept whole", func() {
			hand := []HandCard{
				{Name: "a", Cost: 1},
				{Name: "b", Cost: 2},
				{Name: "c", Cost: 3},
			}
			discards, tier := chooseDiscards(hand, "curve3")
			So(discards, ShouldBeEmpty)
			So(tier, ShouldEqual, "curve3")
		})

		Convey("Only the cards above the curve go back", func() {
			hand := []HandCard{
				{Name: "big", Cost: 5},
				{Name: "a", Cost: 1},
				{Name: "b", Cost: 2},
				{Name: "c", Cost: 3},
			}
			discards, _ := chooseDiscards(hand, "curve3")
			So(discards, ShouldHaveLength, 1)
			So(discards[0].Name, ShouldEqual, "big")
		})

		Convey("Unreadable costs are never thrown back", func() {
			hand := []HandCard{
				{Name: "mystery", Cost: statUnknown},
				{Name: "big", Cost: 7},
			}
			discards, _ := chooseDiscards(hand, "curve3")
			So(discards, ShouldHaveLength, 1)
			So(discards[0].Name, ShouldEqual, "big")
		})
	})

	Convey("Given a hand the strict tier would empty", t, func() {
		hand := []HandCard{
			{Name: "x", Cost: 4},
			{Name: "y", Cost: 5},
		}

		Convey("The next looser tier takes over", func() {
			discards, tier := chooseDiscards(hand, "curve3")
			So(tier, ShouldEqual, "curve4")
			So(discards, ShouldHaveLength, 1)
			So(discards[0].Name, ShouldEqual, "y")
		})

		Convey("An all-expensive hand falls through to keeping everything", func() {
			all := []HandCard{
				{Name: "x", Cost: 8},
				{Name: "y", Cost: 9},
			}
			discards, tier := chooseDiscards(all, "curve2")
			So(discards, ShouldBeEmpty)
			So(tier, ShouldEqual, "keepall")
		})
	})

	Convey("Every strategy value yields a decision", t, func() {
		hand := []HandCard{{Name: "a", Cost: 6}}
		for _, strategy := range []string{"curve2", "curve3", "curve4", "keepall", "bogus"} {
			discards, tier := chooseDiscards(hand, strategy)
			So(tier, ShouldNotBeEmpty)
			So(len(discards), ShouldBeLessThan, len(hand)+1)
		}
	})
}

func TestChoosePlay(t *testing.T) {
	noSkips := func(HandCard) bool { return false }

	Convey("Given a hand and play points", t, func() {
		hand := []HandCard{
			{Name: "cheap", Cost: 1},
			{Name: "mid", Cost: 3},
			{Name: "big", Cost: 6},
		}

		Convey("The most expensive affordable card goes first", func() {
			card, ok := choosePlay(hand, 4, nil, noSkips)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "mid")
		})

		Convey("Priority cards jump the cost order", func() {
			pri := []CardPriority{{Name: "cheap", Priority: 1}}
			card, ok := choosePlay(hand, 4, pri, noSkips)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "cheap")
		})

		Convey("An unaffordable priority card is ignored", func() {
			pri := []CardPriority{{Name: "big", Priority: 1}}
			card, ok := choosePlay(hand, 4, pri, noSkips)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "mid")
		})

		Convey("Zero-cost cards outrank plain cost order", func() {
			free := append(hand, HandCard{Name: "free", Cost: 0})
			card, ok := choosePlay(free, 4, nil, noSkips)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "free")
		})

		Convey("Benched cards never come back", func() {
			skip := func(c HandCard) bool { return c.Name == "mid" }
			card, ok := choosePlay(hand, 4, nil, skip)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "cheap")
		})

		Convey("Benched unnamed cards stay benched too", func() {
			unnamed := []HandCard{
				{Cost: 2, Anchor: Point{X: 400, Y: 640}},
				{Name: "cheap", Cost: 1},
			}
			skip := func(c HandCard) bool { return cardKey(c) == cardKey(unnamed[0]) }
			card, ok := choosePlay(unnamed, 4, nil, skip)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "cheap")
		})

		Convey("Equal priority breaks ties toward the costlier card", func() {
			pri := []CardPriority{
				{Name: "cheap", Priority: 1},
				{Name: "mid", Priority: 1},
			}
			card, ok := choosePlay(hand, 4, pri, noSkips)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "mid")
		})

		Convey("A lower priority number still beats a higher cost", func() {
			pri := []CardPriority{
				{Name: "mid", Priority: 2},
				{Name: "cheap", Priority: 1},
			}
			card, ok := choosePlay(hand, 4, pri, noSkips)
			So(ok, ShouldBeTrue)
			So(card.Name, ShouldEqual, "cheap")
		})

		Convey("Unknown cost is never treated as affordable", func() {
			mystery := []HandCard{{Name: "mystery", Cost: statUnknown}}
			_, ok := choosePlay(mystery, 10, nil, noSkips)
			So(ok, ShouldBeFalse)
		})

		Convey("Nothing affordable means no play", func() {
			_, ok := choosePlay(hand, 0, nil, noSkips)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestChooseShieldAttack(t *testing.T) {
	Convey("Given attackers and one shield with readable health", t, func() {
		attackers := []Follower{
			{Name: "small", Attack: 3, Anchor: Point{X: 100}},
			{Name: "exact", Attack: 5, Anchor: Point{X: 200}},
			{Name: "big", Attack: 8, Anchor: Point{X: 300}},
		}

		Convey("Exact lethal wins over overkill", func() {
			a, _, ok := chooseShieldAttack(attackers, []Shield{{Health: 5}})
			So(ok, ShouldBeTrue)
			So(a.Name, ShouldEqual, "exact")
		})

		Convey("Least overkill wins when nothing is exact", func() {
			a, _, ok := chooseShieldAttack(attackers, []Shield{{Health: 4}})
			So(ok, ShouldBeTrue)
			So(a.Name, ShouldEqual, "exact")
		})

		Convey("The biggest chip is taken when nobody can finish", func() {
			a, _, ok := chooseShieldAttack(attackers, []Shield{{Health: 9}})
			So(ok, ShouldBeTrue)
			So(a.Name, ShouldEqual, "big")
		})

		Convey("Unknown shield health falls back to the biggest attacker", func() {
			a, _, ok := chooseShieldAttack(attackers, []Shield{{Health: statUnknown}})
			So(ok, ShouldBeTrue)
			So(a.Name, ShouldEqual, "big")
		})

		Convey("No attackers or no shields means no pick", func() {
			_, _, ok := chooseShieldAttack(nil, []Shield{{Health: 3}})
			So(ok, ShouldBeFalse)
			_, _, ok = chooseShieldAttack(attackers, nil)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Shield healths 3, 5 and 2 against an attack-5 breaker", t, func() {
		attackers := []Follower{{Name: "hitter", Attack: 5}}
		shields := []Shield{
			{Health: 3, Anchor: Point{X: 100}},
			{Health: 5, Anchor: Point{X: 200}},
			{Health: 2, Anchor: Point{X: 300}},
		}

		Convey("The exact-lethal shield is broken before the overkill ones", func() {
			a, s, ok := chooseShieldAttack(attackers, shields)
			So(ok, ShouldBeTrue)
			So(a.Name, ShouldEqual, "hitter")
			So(s.Health, ShouldEqual, 5)
		})
	})

	Convey("Pairing spans attackers and shields together", t, func() {
		attackers := []Follower{
			{Name: "four", Attack: 4, Anchor: Point{X: 100}},
			{Name: "seven", Attack: 7, Anchor: Point{X: 200}},
		}
		shields := []Shield{
			{Health: 6, Anchor: Point{X: 400}},
			{Health: 4, Anchor: Point{X: 500}},
		}

		Convey("The exact pair wins even when neither is listed first", func() {
			a, s, ok := chooseShieldAttack(attackers, shields)
			So(ok, ShouldBeTrue)
			So(a.Name, ShouldEqual, "four")
			So(s.Health, ShouldEqual, 4)
		})
	})
}

func TestEvolveOrder(t *testing.T) {
	Convey("Given followers and no evolve priority list", t, func() {
		followers := []Follower{
			{Name: "late", Class: ClassNormal, Anchor: Point{X: 300}},
			{Name: "runner", Class: ClassRush, Anchor: Point{X: 200}},
			{Name: "bolt", Class: ClassStorm, Anchor: Point{X: 400}},
		}

		Convey("Everyone is still a candidate, storm first", func() {
			order := evolveOrder(followers, nil)
			So(order, ShouldHaveLength, 3)
			So(order[0].Name, ShouldEqual, "bolt")
			So(order[1].Name, ShouldEqual, "runner")
			So(order[2].Name, ShouldEqual, "late")
		})
	})

	Convey("Given an evolve priority list", t, func() {
		followers := []Follower{
			{Name: "bolt", Class: ClassStorm, Anchor: Point{X: 100}},
			{Name: "wanted", Class: ClassNormal, Anchor: Point{X: 200}},
			{Name: "also", Class: ClassRush, Anchor: Point{X: 300}},
		}
		priorities := []CardPriority{
			{Name: "also", Priority: 2},
			{Name: "wanted", Priority: 1},
		}

		Convey("Listed followers lead by priority number, the rest follow", func() {
			order := evolveOrder(followers, priorities)
			So(order[0].Name, ShouldEqual, "wanted")
			So(order[1].Name, ShouldEqual, "also")
			So(order[2].Name, ShouldEqual, "bolt")
		})

		Convey("Equal priority numbers order by combat class then position", func() {
			tied := []CardPriority{
				{Name: "wanted", Priority: 1},
				{Name: "bolt", Priority: 1},
			}
			order := evolveOrder(followers, tied)
			So(order[0].Name, ShouldEqual, "bolt")
			So(order[1].Name, ShouldEqual, "wanted")
		})
	})
}

func TestChooseTrade(t *testing.T) {
	Convey("Given a rush follower and enemies", t, func() {
		rush := Follower{Name: "rusher", Attack: 4, Class: ClassRush}

		Convey("The biggest killable enemy is traded into", func() {
			enemies := []Follower{
				{Health: 2, Anchor: Point{X: 100}},
				{Health: 4, Anchor: Point{X: 200}},
				{Health: 7, Anchor: Point{X: 300}},
			}
			target, ok := chooseTrade(rush, enemies)
			So(ok, ShouldBeTrue)
			So(target.Health, ShouldEqual, 4)
		})

		Convey("When nothing dies, the weakest is chipped", func() {
			enemies := []Follower{
				{Health: 9, Anchor: Point{X: 100}},
				{Health: 6, Anchor: Point{X: 200}},
			}
			target, ok := chooseTrade(rush, enemies)
			So(ok, ShouldBeTrue)
			So(target.Health, ShouldEqual, 6)
		})

		Convey("An empty enemy board yields no trade", func() {
			_, ok := chooseTrade(rush, nil)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestAllowedStrikes(t *testing.T) {
	Convey("Given the storm exception table", t, func() {
		exceptions := []StormException{
			{Name: "twinblade", MinRound: 6, Strikes: 2},
		}

		Convey("Ordinary followers get one strike", func() {
			So(allowedStrikes("grunt", 8, exceptions), ShouldEqual, 1)
		})

		Convey("Exceptions stay dormant before their round", func() {
			So(allowedStrikes("twinblade", 5, exceptions), ShouldEqual, 1)
		})

		Convey("Exceptions widen the ceiling from their round on", func() {
			So(allowedStrikes("twinblade", 6, exceptions), ShouldEqual, 2)
		})
	})
}

func TestStillInHand(t *testing.T) {
	Convey("Given a rescanned hand", t, func() {
		hand := []HandCard{
			{Name: "fairy", Anchor: Point{X: 320, Y: 640}},
			{Name: "", Anchor: Point{X: 480, Y: 640}},
		}

		Convey("A named card is found by name", func() {
			So(stillInHand(hand, HandCard{Name: "fairy", Anchor: Point{X: 900}}), ShouldBeTrue)
		})

		Convey("An unnamed card is found by anchor proximity", func() {
			So(stillInHand(hand, HandCard{Anchor: Point{X: 490, Y: 645}}), ShouldBeTrue)
		})

		Convey("A played card is gone", func() {
			So(stillInHand(hand, HandCard{Name: "dragon", Anchor: Point{X: 900, Y: 200}}), ShouldBeFalse)
		})
	})
}
