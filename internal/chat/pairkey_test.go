package chat

import "testing"

func TestPairKeyCommutative(t *testing.T) {
	pairs := [][2]int64{
		{1, 2},
		{2, 1},
		{7, 7},
		{0, 42},
		{1 << 40, 3},
	}

	for _, p := range pairs {
		if got, want := PairKey(p[0], p[1]), PairKey(p[1], p[0]); got != want {
			t.Fatalf("PairKey(%d,%d) = %s, PairKey(%d,%d) = %s; want equal", p[0], p[1], got, p[1], p[0], want)
		}
	}
}

func TestPairKeyDistinctPairs(t *testing.T) {
	seen := make(map[string][2]int64)

	for a := int64(1); a <= 50; a++ {
		for b := a + 1; b <= 50; b++ {
			key := PairKey(a, b)
			if prev, ok := seen[key]; ok {
				t.Fatalf("collision: (%d,%d) and (%d,%d) both derive %s", a, b, prev[0], prev[1], key)
			}
			seen[key] = [2]int64{a, b}
		}
	}
}

func TestPairKeyFixedFormat(t *testing.T) {
	key := PairKey(1, 2)
	if len(key) != 64 {
		t.Fatalf("expected 64-char hex key, got %d chars: %s", len(key), key)
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("unexpected character %q in key %s", r, key)
		}
	}
}
