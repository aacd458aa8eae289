package event

import "testing"

func TestMessageExtractPlainText(t *testing.T) {
	m := NewMessage("hello ", At("123"), "world")
	if got := m.ExtractPlainText(); got != "hello world" {
		t.Fatalf("ExtractPlainText() = %q", got)
	}
}

func TestMessageConcat(t *testing.T) {
	a := NewMessage("a")
	b := NewMessage("b")
	c := Concat(a, b)
	if len(c) != 2 || c.ExtractPlainText() != "ab" {
		t.Fatalf("Concat() = %+v", c)
	}
}

func TestMessageAppendWrapsStrings(t *testing.T) {
	m := NewMessage().Append("x", Image("http://e"), "y")
	if len(m) != 3 || m[1].Type != SegImage {
		t.Fatalf("Append() = %+v", m)
	}
}
