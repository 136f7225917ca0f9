package contract

import (
	"strings"
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	t.Run("removes fence with language tag", func(t *testing.T) {
		in := "Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!"
		got := StripCodeFences(in)
		if got != `{"a": 1}` {
			t.Errorf("got %q", got)
		}
	})

	t.Run("passes through unfenced text", func(t *testing.T) {
		in := `{"a": 1}`
		if got := StripCodeFences(in); got != in {
			t.Errorf("got %q, want unchanged", got)
		}
	})
}

func TestExtractBalancedObject(t *testing.T) {
	t.Run("finds largest balanced object", func(t *testing.T) {
		in := `The answer is {"a": {"b": 2}} as requested.`
		got := ExtractBalancedObject(in)
		if got != `{"a": {"b": 2}}` {
			t.Errorf("got %q", got)
		}
	})

	t.Run("ignores braces inside strings", func(t *testing.T) {
		in := `{"text": "curly } brace"}`
		if got := ExtractBalancedObject(in); got != in {
			t.Errorf("got %q, want unchanged", got)
		}
	})

	t.Run("returns input when no object", func(t *testing.T) {
		in := "no json here"
		if got := ExtractBalancedObject(in); got != in {
			t.Errorf("got %q, want unchanged", got)
		}
	})
}

func TestNormalizeSmartQuotes(t *testing.T) {
	in := "{“key”: ‘value’}"
	got := NormalizeSmartQuotes(in)
	if got != `{"key": 'value'}` {
		t.Errorf("got %q", got)
	}
}

func TestStripTrailingCommas(t *testing.T) {
	t.Run("strips before close brace and bracket", func(t *testing.T) {
		in := `{"a": [1, 2,], "b": 3,}`
		got := StripTrailingCommas(in)
		if got != `{"a": [1, 2], "b": 3}` {
			t.Errorf("got %q", got)
		}
	})

	t.Run("keeps commas inside strings", func(t *testing.T) {
		in := `{"a": "x,}"}`
		if got := StripTrailingCommas(in); got != in {
			t.Errorf("got %q, want unchanged", got)
		}
	})
}

func TestFixSwallowedKeyQuotes(t *testing.T) {
	in := `{"title: "My Episode"}`
	got := FixSwallowedKeyQuotes(in)
	if got != `{"title": "My Episode"}` {
		t.Errorf("got %q", got)
	}
}

func TestRepairPipeline(t *testing.T) {
	in := "Sure! Here is the JSON:\n```json\n{“title: “Hello”, \"tags\": [1, 2,],}\n```"
	got := Repair(in)
	if !strings.HasPrefix(got, "{") || !strings.HasSuffix(got, "}") {
		t.Fatalf("repair did not produce an object: %q", got)
	}
	if strings.Contains(got, "“") || strings.Contains(got, ",]") || strings.Contains(got, ",}") {
		t.Errorf("repair left artifacts: %q", got)
	}
}
