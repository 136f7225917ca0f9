package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/papercast-ai/papercast/internal/types"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

func validOutlineJSON(segments int) string {
	out := Outline{Title: "Test Episode"}
	for i := 0; i < segments; i++ {
		out.Segments = append(out.Segments, OutlineSegment{
			Type:            "core",
			Title:           fmt.Sprintf("Segment %d", i),
			DurationTargetS: 120,
			KeyPoints:       []string{"a point"},
		})
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func TestDecodeOutline(t *testing.T) {
	c := newTestCodec(t)

	t.Run("accepts valid outline", func(t *testing.T) {
		out, err := c.DecodeOutline(validOutlineJSON(5))
		if err != nil {
			t.Fatalf("DecodeOutline() error = %v", err)
		}
		if len(out.Segments) != 5 {
			t.Errorf("got %d segments, want 5", len(out.Segments))
		}
	})

	t.Run("accepts fenced outline", func(t *testing.T) {
		fenced := "```json\n" + validOutlineJSON(4) + "\n```"
		if _, err := c.DecodeOutline(fenced); err != nil {
			t.Fatalf("DecodeOutline() error = %v", err)
		}
	})

	t.Run("rejects too few segments", func(t *testing.T) {
		_, err := c.DecodeOutline(validOutlineJSON(2))
		if !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})

	t.Run("rejects too many segments", func(t *testing.T) {
		_, err := c.DecodeOutline(validOutlineJSON(13))
		if !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})

	t.Run("rejects nonpositive duration", func(t *testing.T) {
		raw := `{"title": "T", "segments": [
			{"type": "core", "title": "a", "duration_target_s": 0, "key_points": ["x"]},
			{"type": "core", "title": "b", "duration_target_s": 60, "key_points": ["x"]},
			{"type": "core", "title": "c", "duration_target_s": 60, "key_points": ["x"]}]}`
		_, err := c.DecodeOutline(raw)
		if !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})

	t.Run("rejects prose without json", func(t *testing.T) {
		_, err := c.DecodeOutline("I could not generate an outline, sorry.")
		if !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})
}

func TestDecodeSegment(t *testing.T) {
	c := newTestCodec(t)
	hosts := []types.Speaker{types.SpeakerHost1, types.SpeakerHost2}

	t.Run("accepts valid script", func(t *testing.T) {
		raw := `{"script": [{"speaker": "host1", "text": "hi"}, {"speaker": "host2", "text": "hello"}]}`
		seg, err := c.DecodeSegment(ResponseSegment, raw, hosts)
		if err != nil {
			t.Fatalf("DecodeSegment() error = %v", err)
		}
		if len(seg.Script) != 2 {
			t.Errorf("got %d turns, want 2", len(seg.Script))
		}
	})

	t.Run("rejects undeclared speaker", func(t *testing.T) {
		raw := `{"script": [{"speaker": "host3", "text": "hi"}]}`
		_, err := c.DecodeSegment(ResponseSegment, raw, hosts)
		if !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})

	t.Run("rejects empty script", func(t *testing.T) {
		_, err := c.DecodeSegment(ResponseSegment, `{"script": []}`, hosts)
		if !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})
}

func TestDecodeFactCheck(t *testing.T) {
	c := newTestCodec(t)

	t.Run("accepts valid response", func(t *testing.T) {
		raw := `{"accuracy": 0.8, "needs_rewrite": false, "feedback": "fine"}`
		fc, err := c.DecodeFactCheck(raw)
		if err != nil {
			t.Fatalf("DecodeFactCheck() error = %v", err)
		}
		if fc.Accuracy != 0.8 {
			t.Errorf("accuracy = %v, want 0.8", fc.Accuracy)
		}
	})

	t.Run("rejects accuracy out of range", func(t *testing.T) {
		raw := `{"accuracy": 1.5, "needs_rewrite": false, "feedback": ""}`
		if _, err := c.DecodeFactCheck(raw); !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})
}

func TestDeriveVerdicts(t *testing.T) {
	t.Run("uniform from accuracy at threshold", func(t *testing.T) {
		fc := &FactCheck{Accuracy: 0.75}
		verdicts := fc.DeriveVerdicts(3, 0.75)
		for i, v := range verdicts {
			if !v.IsVerified {
				t.Errorf("line %d not verified at threshold boundary", i)
			}
		}
		if fc.RewriteNeeded(3, 0.75) {
			t.Error("threshold accuracy should not need rewrite")
		}
	})

	t.Run("uniform failure below threshold", func(t *testing.T) {
		fc := &FactCheck{Accuracy: 0.6}
		for _, v := range fc.DeriveVerdicts(2, 0.75) {
			if v.IsVerified {
				t.Error("lines below threshold should be unverified")
			}
		}
		if !fc.RewriteNeeded(2, 0.75) {
			t.Error("below-threshold accuracy should need rewrite")
		}
	})

	t.Run("per-line overrides win", func(t *testing.T) {
		fc := &FactCheck{
			Accuracy: 0.9,
			PerLine:  []LineVerdict{{LineIndex: 1, IsVerified: false}},
		}
		verdicts := fc.DeriveVerdicts(3, 0.75)
		if !verdicts[0].IsVerified || verdicts[1].IsVerified || !verdicts[2].IsVerified {
			t.Errorf("verdicts = %+v", verdicts)
		}
		if !fc.RewriteNeeded(3, 0.75) {
			t.Error("a failed line should force a rewrite")
		}
	})
}

// A valid structured response must be a fixed point of parse -> serialize ->
// parse.
func TestCodecFixedPoint(t *testing.T) {
	c := newTestCodec(t)
	raw := validOutlineJSON(4)

	first, err := c.DecodeOutline(raw)
	if err != nil {
		t.Fatalf("first decode error = %v", err)
	}
	b, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	second, err := c.DecodeOutline(string(b))
	if err != nil {
		t.Fatalf("second decode error = %v", err)
	}
	b2, _ := json.Marshal(second)
	if string(b) != string(b2) {
		t.Errorf("codec not a fixed point:\n%s\n%s", b, b2)
	}
}
