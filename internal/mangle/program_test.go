package mangle

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"incplan/internal/types"
)

func TestSplitFragments(t *testing.T) {
	src := `fact(1).
#program step(t).
at($t).
#program delay(a, s, d).
#external delay($a, $s, $d).
#program base.
more(2).
`
	frags, err := splitFragments("x.lp", src)
	if err != nil {
		t.Fatalf("splitFragments() error = %v", err)
	}

	var keys []string
	for _, f := range frags {
		keys = append(keys, f.key())
	}
	want := []string{"base/0", "step/1", "delay/3", "base/0"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("fragment keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "s", "d"}, frags[2].params); diff != "" {
		t.Errorf("delay params mismatch (-want +got):\n%s", diff)
	}
}

func TestFragmentInstantiate(t *testing.T) {
	f := fragment{name: "delay", params: []string{"a", "s", "d"}, text: "#external delay($a, $s, $d).\nseen($s).\n"}
	text, err := f.instantiate([]types.Term{types.Int(2), types.Int(5), types.Int(3)})
	if err != nil {
		t.Fatalf("instantiate() error = %v", err)
	}
	if text != "#external delay(2, 5, 3).\nseen(5).\n" {
		t.Errorf("instantiate() = %q", text)
	}
	if got := externalDecls(text); len(got) != 1 || got[0] != "delay(2, 5, 3)" {
		t.Errorf("externalDecls() = %v", got)
	}

	if _, err := f.instantiate([]types.Term{types.Int(1)}); err == nil {
		t.Error("expected arity mismatch error")
	}
}

func TestDeclaredPredicates(t *testing.T) {
	got := declaredPredicates("Decl query(T).\n  Decl delay(A, S, D) descr [mode(\"-\", \"-\", \"-\")].\nfoo(1).\n")
	if diff := cmp.Diff([]string{"query", "delay"}, got); diff != "" {
		t.Errorf("declaredPredicates() mismatch (-want +got):\n%s", diff)
	}
	if got := synthesizedDecl("delay", 3); got != "Decl delay(X0, X1, X2).\n" {
		t.Errorf("synthesizedDecl() = %q", got)
	}
}
