package engine

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct{ v, align, want uint64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{0x100001, 0x1000, 0x101000},
		{5, 1, 5},
		{5, 0, 5},
	}
	for _, c := range cases {
		if got := AlignUp(c.v, c.align); got != c.want {
			t.Errorf("AlignUp(0x%x, 0x%x) = 0x%x, want 0x%x", c.v, c.align, got, c.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, v := range []uint64{1, 2, 4, 0x1000, 1 << 40} {
		if !IsPowerOfTwo(v) {
			t.Errorf("IsPowerOfTwo(0x%x) = false", v)
		}
	}
	for _, v := range []uint64{0, 3, 6, 0x1001} {
		if IsPowerOfTwo(v) {
			t.Errorf("IsPowerOfTwo(0x%x) = true", v)
		}
	}
}

func TestParseAddr(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1M", 0x100000},
		{"32K", 0x8000},
		{"0x200000", 0x200000},
		{"4096", 4096},
		{"2G", 0x80000000},
		{"0x10K", 0x4000},
	}
	for _, c := range cases {
		got, err := ParseAddr(c.in)
		if err != nil {
			t.Errorf("ParseAddr(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseAddr(%q) = 0x%x, want 0x%x", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "0x", "12q", "M"} {
		if _, err := ParseAddr(bad); err == nil {
			t.Errorf("ParseAddr(%q) did not fail", bad)
		}
	}
}

func TestSuggest(t *testing.T) {
	got := Suggest("_strat", []string{"_start", "kmain", "_star"}, 2)
	if len(got) == 0 || got[0] != "_start" && got[0] != "_star" {
		t.Errorf("Suggest returned %v, want _start or _star first", got)
	}
	if s := Suggest("zzzzzzzz", []string{"_start"}, 1); len(s) != 0 {
		t.Errorf("Suggest matched wildly different name: %v", s)
	}
}
