package elmvalue

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/doeshing/litvis-go/internal/domain"
)

func num(n float64, text string) domain.Value {
	return domain.Value{Kind: domain.ValueNumber, Number: n, Text: text}
}

func ctor(name string, args ...domain.Value) domain.Value {
	return domain.Value{Kind: domain.ValueConstructor, Name: name, Items: args}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Value
	}{
		{"42", num(42, "42")},
		{"-1.5e-3", num(-0.0015, "-1.5e-3")},
		{`"a \"b\"\n\u{1F600}"`, domain.Value{Kind: domain.ValueString, Text: "a \"b\"\n\U0001F600"}},
		{`'x'`, domain.Value{Kind: domain.ValueChar, Text: "x"}},
		{"True", domain.Value{Kind: domain.ValueBool, Bool: true}},
		{"()", domain.Value{Kind: domain.ValueUnit}},
		{"(1,\"a\")", domain.Value{Kind: domain.ValueTuple, Items: []domain.Value{num(1, "1"), {Kind: domain.ValueString, Text: "a"}}}},
		{"[]", domain.Value{Kind: domain.ValueList, Items: []domain.Value{}}},
		{"[1, 2]", domain.Value{Kind: domain.ValueList, Items: []domain.Value{num(1, "1"), num(2, "2")}}},
		{"{ a = 1, b = Nothing }", domain.Value{Kind: domain.ValueRecord, Fields: []domain.Field{
			{Name: "a", Value: num(1, "1")},
			{Name: "b", Value: ctor("Nothing")},
		}}},
		{"Just (Ok -2)", ctor("Just", ctor("Ok", num(-2, "-2")))},
		{"Node Leaf 1 Leaf", ctor("Node", ctor("Leaf"), num(1, "1"), ctor("Leaf"))},
		{"Dict.fromList [(1,\"a\")]", ctor("Dict.fromList", domain.Value{Kind: domain.ValueList, Items: []domain.Value{
			{Kind: domain.ValueTuple, Items: []domain.Value{num(1, "1"), {Kind: domain.ValueString, Text: "a"}}},
		}})},
		{"<function>", domain.Value{Kind: domain.ValueOpaque, Name: "function"}},
		{"-Infinity", num(math.Inf(-1), "-Infinity")},
		{"Infinity", num(math.Inf(1), "Infinity")},
		{"NaN", num(math.NaN(), "NaN")},
		{"(1,-Infinity)", domain.Value{Kind: domain.ValueTuple, Items: []domain.Value{num(1, "1"), num(math.Inf(-1), "-Infinity")}}},
	}
	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateNaNs()); diff != "" {
				t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	p := NewParser()
	for _, in := range []string{"", "[1,", `"open`, "{ a 1 }", "1 2", "'ab'", "<fun", "-Just"} {
		if _, err := p.Parse(in); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", in)
		}
	}
}

func TestValueRendersBack(t *testing.T) {
	v, err := NewParser().Parse("Just { a = [1,2], b = (\"x\",True) }")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v.String(), `Just { a = [1,2], b = ("x",True) }`; got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(raw), `{"args":[{"a":[1,2],"b":["x",true]}],"constructor":"Just"}`; got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}

func TestNonFiniteNumbersRenderAsElm(t *testing.T) {
	v, err := NewParser().Parse("[Infinity,-Infinity,NaN]")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v.String(), "[Infinity,-Infinity,NaN]"; got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if got, want := string(raw), `["Infinity","-Infinity","NaN"]`; got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}

type countingParser struct {
	calls int
}

func (c *countingParser) Parse(text string) (domain.Value, error) {
	c.calls++
	if text == "bad" {
		return domain.Value{}, errors.New("bad value")
	}
	return domain.Value{Kind: domain.ValueString, Text: text}, nil
}

func TestCachedParserMemoizes(t *testing.T) {
	inner := &countingParser{}
	cached, err := NewCachedParser(inner, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := cached.Parse("a"); err != nil {
			t.Fatal(err)
		}
		if _, err := cached.Parse("bad"); err == nil {
			t.Fatal("expected cached failure")
		}
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
	cached.Parse("c")
	if cached.Len() != 2 {
		t.Fatalf("Len() = %d, want bounded at 2", cached.Len())
	}
}
