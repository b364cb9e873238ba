package wordextract

import (
	"reflect"
	"testing"
)

func TestExtractWords_PunctuationAndHyphens(t *testing.T) {
	e := New()

	// "hello-WORLD" is one unbroken run of letters/hyphens, so it extracts
	// as the single compound word "hello-world" rather than splitting into
	// two words that would duplicate the earlier "hello"/"world" tokens.
	got := e.ExtractWords("Hello, world—hello-WORLD! co-op.")
	want := []string{"hello", "world", "hello-world", "co-op"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractWords() = %v, want %v", got, want)
	}
}

func TestExtractWords_Dedup(t *testing.T) {
	e := New()
	got := e.ExtractWords("alpha beta ALPHA Beta gamma.")
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractWords() = %v, want %v", got, want)
	}
}

func TestExtractWords_TrailingRunNotFlushed(t *testing.T) {
	e := New()
	// No terminating non-word rune after "trailing", so it is dropped —
	// this mirrors the reference implementation's behaviour exactly.
	got := e.ExtractWords("leading word trailing")
	want := []string{"leading", "word"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractWords() = %v, want %v", got, want)
	}
}

func TestExtractWords_EmptyInput(t *testing.T) {
	e := New()
	got := e.ExtractWords("")
	if len(got) != 0 {
		t.Errorf("ExtractWords(\"\") = %v, want empty", got)
	}
}

func TestExtractWords_LeadingTrailingHyphensStripped(t *testing.T) {
	e := New()
	got := e.ExtractWords("--wow-- done.")
	want := []string{"wow", "done"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractWords() = %v, want %v", got, want)
	}
}
