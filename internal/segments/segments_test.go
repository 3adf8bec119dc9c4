package segments

import (
	"math"
	"testing"
)

func TestCoalesceMergesAdjacentUnits(t *testing.T) {
	list := FromTimestamps([]float64{5, 6, 7})
	if len(list) != 1 {
		t.Fatalf("expected one merged segment, got %d: %+v", len(list), list)
	}
	if list[0].Start != 5 || list[0].End != 8 {
		t.Fatalf("expected [5, 8), got [%v, %v)", list[0].Start, list[0].End)
	}
}

func TestCoalesceOutputIsSortedDisjointNonAdjacent(t *testing.T) {
	list := SegmentList{
		{Start: 30, End: 31},
		{Start: 10, End: 12},
		{Start: 11, End: 15},
		{Start: 15, End: 16},
		{Start: 40, End: 45},
	}.Coalesce()

	for i := 1; i < len(list); i++ {
		if list[i].Start <= list[i-1].End {
			t.Fatalf("segments %d and %d not disjoint/non-adjacent: %+v", i-1, i, list)
		}
		if list[i].Start < list[i-1].Start {
			t.Fatalf("segments not sorted: %+v", list)
		}
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 merged segments, got %d: %+v", len(list), list)
	}
	if list[0] != (Segment{Start: 10, End: 16}) {
		t.Fatalf("unexpected first segment: %+v", list[0])
	}
}

func TestPadSingleTimestamp(t *testing.T) {
	active := FromTimestamps([]float64{100}).Pad(2, 3)
	if len(active) != 1 {
		t.Fatalf("expected one segment, got %d", len(active))
	}
	if active[0].Start != 98 || active[0].End != 104 {
		t.Fatalf("expected [98, 104), got [%v, %v)", active[0].Start, active[0].End)
	}
}

func TestPadDoesNotRecoalesce(t *testing.T) {
	list := SegmentList{{Start: 0, End: 1}, {Start: 4, End: 5}}.Coalesce()
	padded := list.Pad(0, 10)
	if len(padded) != 2 {
		t.Fatalf("padding must not re-merge segments, got %+v", padded)
	}
	if padded[0].End <= padded[1].Start {
		t.Fatalf("test fixture should produce overlapping padded segments, got %+v", padded)
	}
}

func TestFromTimestampsEmpty(t *testing.T) {
	if list := FromTimestamps(nil); len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestFromTimestampsUnsortedInput(t *testing.T) {
	list := FromTimestamps([]float64{20, 5, 6})
	if len(list) != 2 {
		t.Fatalf("expected 2 segments, got %+v", list)
	}
	if list[0].Start != 5 || list[0].End != 7 {
		t.Fatalf("unexpected first segment: %+v", list[0])
	}
}

func TestLivetime(t *testing.T) {
	list := SegmentList{{Start: 0, End: 10}, {Start: 20, End: 25}}
	if lt := list.Livetime(); math.Abs(lt-15) > 1e-12 {
		t.Fatalf("expected livetime 15, got %v", lt)
	}
}

func TestNewSpanRejectsInvertedSpan(t *testing.T) {
	if _, err := NewSpan(100, 100); err == nil {
		t.Fatalf("expected error for zero-length span")
	}
	if _, err := NewSpan(200, 100); err == nil {
		t.Fatalf("expected error for inverted span")
	}
}

func TestFlagName(t *testing.T) {
	name := FlagName("L1", "L1:GDS-CALIB_STRAIN", "0.5")
	if name != "L1:DCH-GDS_CALIB_STRAIN_0_5:1" {
		t.Fatalf("unexpected flag name: %s", name)
	}
	name = FlagName("H1", "H1:ASC-Y_TR_B_NSUM_OUT_DQ", "100")
	if name != "H1:DCH-ASC_Y_TR_B_NSUM_OUT_DQ_100:1" {
		t.Fatalf("unexpected flag name: %s", name)
	}
}

func TestNewFlagKnownIsSpan(t *testing.T) {
	span, err := NewSpan(1000, 2000)
	if err != nil {
		t.Fatalf("span: %v", err)
	}
	flag := NewFlag("L1:DCH-X_10:1", "L1", span, nil)
	if len(flag.Known) != 1 || flag.Known[0] != (Segment{Start: 1000, End: 2000}) {
		t.Fatalf("known should be the full span, got %+v", flag.Known)
	}
	if len(flag.Active) != 0 {
		t.Fatalf("expected empty active list")
	}
}

func TestCollectionPreservesInsertionOrder(t *testing.T) {
	c := NewCollection()
	span, _ := NewSpan(0, 10)
	c.Add(20, NewFlag("a", "L1", span, nil))
	c.Add(10, NewFlag("b", "L1", span, nil))
	c.Add(15, NewFlag("c", "L1", span, nil))

	got := c.Thresholds()
	want := []float64{20, 10, 15}
	if len(got) != len(want) {
		t.Fatalf("expected %d thresholds, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("threshold order not preserved: %v", got)
		}
	}
}

func TestCollectionRepeatedThresholdKeepsPosition(t *testing.T) {
	c := NewCollection()
	span, _ := NewSpan(0, 10)
	c.Add(10, NewFlag("first", "L1", span, nil))
	c.Add(20, NewFlag("second", "L1", span, nil))
	c.Add(10, NewFlag("replacement", "L1", span, nil))

	if c.Len() != 2 {
		t.Fatalf("expected 2 flags, got %d", c.Len())
	}
	order := c.Thresholds()
	if order[0] != 10 || order[1] != 20 {
		t.Fatalf("unexpected order: %v", order)
	}
	flag, _ := c.Get(10)
	if flag.Name != "replacement" {
		t.Fatalf("expected newer flag to win, got %s", flag.Name)
	}
}
