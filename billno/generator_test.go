package billno

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/xraph/stockledger/id"
)

func TestTypeID(t *testing.T) {
	n := TypeID{}.Next()
	if !strings.HasPrefix(n, "bill_") {
		t.Fatalf("got %q, want bill_ prefix", n)
	}
	if _, err := id.ParseBillID(n); err != nil {
		t.Errorf("ParseBillID(%q): %v", n, err)
	}
}

func TestTimestamped(t *testing.T) {
	fixed := time.UnixMilli(1738763400123)
	g := &Timestamped{Prefix: "INV", Clock: func() time.Time { return fixed }}

	n := g.Next()
	if !regexp.MustCompile(`^INV-1738763400123-[0-9a-f]{8}$`).MatchString(n) {
		t.Errorf("unexpected format %q", n)
	}
	if n == g.Next() {
		t.Error("two numbers in the same millisecond collided")
	}
}

func TestTimestampedDefaults(t *testing.T) {
	n := (&Timestamped{}).Next()
	if !strings.HasPrefix(n, "BILL-") {
		t.Errorf("got %q, want BILL- prefix", n)
	}
	if !strings.HasPrefix(NewTimestamped().Next(), "BILL-") {
		t.Error("NewTimestamped: missing BILL- prefix")
	}
}

func TestGeneratorsAreUnique(t *testing.T) {
	gens := map[string]Generator{
		"typeid":      TypeID{},
		"timestamped": NewTimestamped(),
	}
	for name, g := range gens {
		t.Run(name, func(t *testing.T) {
			seen := make(map[string]bool, 500)
			for range 500 {
				n := g.Next()
				if seen[n] {
					t.Fatalf("duplicate %q", n)
				}
				seen[n] = true
			}
		})
	}
}

func TestSequenceAndFunc(t *testing.T) {
	s := NewSequence("A", "B")
	got := []string{s.Next(), s.Next(), s.Next()}
	want := []string{"A", "B", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	if NewSequence().Next() != "" {
		t.Error("empty sequence should yield empty string")
	}

	var f Generator = Func(func() string { return "X" })
	if f.Next() != "X" {
		t.Error("Func adapter mismatch")
	}
}
