package memory

import (
	"math"
	"testing"
)

func TestMatchRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "btc breakout", "btc breakout", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "btc", "", 0.0},
		{"disjoint", "abc", "xyz", 0.0},
		// difflib.SequenceMatcher(None, "abcd", "bcde").ratio() == 0.75
		{"difflib reference", "abcd", "bcde", 0.75},
		// Matching block "abcd" of 4: 2*4/(4+6)
		{"substring", "abcd", "xabcdy", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchRatio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("matchRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMatchRatioSymmetricEnough(t *testing.T) {
	// Ratcliff/Obershelp is not perfectly symmetric, but for ranking both
	// directions must land in [0,1] and close variants must outscore
	// distant ones.
	near := matchRatio("btc breakout above resistance", "btc breakout near resistance")
	far := matchRatio("btc breakout above resistance", "eth range-bound consolidation")
	if near <= far {
		t.Errorf("near=%v should exceed far=%v", near, far)
	}
	for _, v := range []float64{near, far} {
		if v < 0 || v > 1 {
			t.Errorf("ratio %v outside [0,1]", v)
		}
	}
}
