package level_test

import (
	"testing"

	"focusquest/internal/level"
)

func TestExpForLevelCurve(t *testing.T) {
	cases := []struct {
		level int
		want  int
	}{
		{1, 100},
		{2, 150},
		{3, 225},
		{4, 337},
		{5, 506},
	}
	for _, c := range cases {
		if got := level.ExpForLevel(c.level); got != c.want {
			t.Errorf("ExpForLevel(%d) = %d, want %d", c.level, got, c.want)
		}
	}
}

func TestAwardSingleLevelUp(t *testing.T) {
	r := level.Award(90, 100, 1, 20)
	if r.CurrentExp != 10 || r.MaxExp != 150 || r.Level != 2 || !r.LeveledUp {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestAwardCascade(t *testing.T) {
	// 400 exp at level 1: consumes 100 then 150, leaving 150 toward 225.
	r := level.Award(0, 100, 1, 400)
	if r.Level != 3 {
		t.Fatalf("level = %d, want 3", r.Level)
	}
	if r.CurrentExp != 150 || r.MaxExp != 225 {
		t.Fatalf("exp = %d/%d, want 150/225", r.CurrentExp, r.MaxExp)
	}
	if !r.LeveledUp {
		t.Fatal("expected LeveledUp")
	}
}

func TestAwardZeroIsNoOp(t *testing.T) {
	r := level.Award(42, 150, 2, 0)
	if r.CurrentExp != 42 || r.MaxExp != 150 || r.Level != 2 || r.LeveledUp {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestAwardInvariant(t *testing.T) {
	for amount := 0; amount < 2000; amount += 37 {
		r := level.Award(0, 100, 1, amount)
		if r.CurrentExp >= r.MaxExp {
			t.Fatalf("amount %d: current %d >= max %d", amount, r.CurrentExp, r.MaxExp)
		}
		if r.Level < 1 {
			t.Fatalf("amount %d: level %d", amount, r.Level)
		}
	}
}

func TestTotalExpToLevel(t *testing.T) {
	if got := level.TotalExpToLevel(1); got != 0 {
		t.Errorf("TotalExpToLevel(1) = %d, want 0", got)
	}
	if got := level.TotalExpToLevel(0); got != 0 {
		t.Errorf("TotalExpToLevel(0) = %d, want 0", got)
	}
	if got := level.TotalExpToLevel(3); got != 250 {
		t.Errorf("TotalExpToLevel(3) = %d, want 250", got)
	}
	if got := level.TotalExpToLevel(4); got != 475 {
		t.Errorf("TotalExpToLevel(4) = %d, want 475", got)
	}
}

func TestTotalExpEarnedMonotonic(t *testing.T) {
	for lvl := 1; lvl <= 6; lvl++ {
		prev := -1
		max := level.ExpForLevel(lvl)
		for exp := 0; exp < max; exp += 25 {
			earned := level.TotalExpEarned(lvl, exp)
			if earned != level.TotalExpToLevel(lvl)+exp {
				t.Fatalf("level %d exp %d: earned %d", lvl, exp, earned)
			}
			if earned <= prev {
				t.Fatalf("level %d exp %d: not increasing", lvl, exp)
			}
			prev = earned
		}
	}
}

func TestProgressTowardPastTarget(t *testing.T) {
	for _, max := range []int{1, 100, 99999} {
		p := level.ProgressToward(5, 0, max, 3)
		if p.Percentage != 100 || p.RemainingExp != 0 {
			t.Fatalf("max %d: got %+v", max, p)
		}
	}
}

func TestProgressTowardFutureLevel(t *testing.T) {
	// Level 1, 50/100 exp, target 3: earned 50 of 250 required.
	p := level.ProgressToward(1, 50, 100, 3)
	if p.RemainingExp != 200 {
		t.Fatalf("remaining = %d, want 200", p.RemainingExp)
	}
	if p.Percentage < 19.9 || p.Percentage > 20.1 {
		t.Fatalf("percentage = %f, want 20", p.Percentage)
	}
}
