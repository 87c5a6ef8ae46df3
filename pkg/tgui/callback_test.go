package tgui

import "testing"

func TestDataSplitRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		plugin, action, payload string
		want                    string
	}{
		{"quiz", "ans", "qz_12345678:2", "quiz:ans:qz_12345678:2"},
		{"bcast", "yes", "", "bcast:yes"},
		{" quiz ", "ans", "x", "quiz:ans:x"},
	}
	for _, c := range cases {
		got := Data(c.plugin, c.action, c.payload)
		if got != c.want {
			t.Fatalf("Data(%q,%q,%q) = %q, want %q", c.plugin, c.action, c.payload, got, c.want)
		}
		p, a, pl := Split(got)
		if p != "quiz" && p != "bcast" {
			t.Fatalf("Split(%q) plugin = %q", got, p)
		}
		if a != c.action {
			t.Fatalf("Split(%q) action = %q, want %q", got, a, c.action)
		}
		if pl != c.payload {
			t.Fatalf("Split(%q) payload = %q, want %q", got, pl, c.payload)
		}
	}
}

func TestSplitDegenerate(t *testing.T) {
	t.Parallel()
	p, a, pl := Split("loneword")
	if p != "loneword" || a != "" || pl != "" {
		t.Fatalf("Split(loneword) = (%q,%q,%q)", p, a, pl)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hell…"},
		{"héllö wörld", 5, "héllö…"},
		{"x", 0, ""},
	}
	for _, c := range cases {
		if got := TruncRunes(c.in, c.n); got != c.want {
			t.Fatalf("TruncRunes(%q,%d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}
