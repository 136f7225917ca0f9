package style

import (
	"reflect"
	"strings"
	"testing"

	"github.com/papercast-ai/papercast/internal/types"
)

func TestLookup(t *testing.T) {
	t.Run("finds every catalog style", func(t *testing.T) {
		for _, id := range IDs() {
			s, err := Lookup(id)
			if err != nil {
				t.Fatalf("Lookup(%s) error = %v", id, err)
			}
			if s.ID != id {
				t.Errorf("style %s reports ID %s", id, s.ID)
			}
			if len(s.Hosts) != 2 {
				t.Errorf("style %s has %d hosts, want 2", id, len(s.Hosts))
			}
		}
	})

	t.Run("rejects unknown style", func(t *testing.T) {
		if _, err := Lookup("freeform_jazz"); err == nil {
			t.Error("expected error for unknown style")
		}
	})

	t.Run("debate declares agreement and opposition", func(t *testing.T) {
		s, _ := Lookup("debate_format")
		if s.Flow.AgreementRate != 0.15 {
			t.Errorf("agreement = %v, want 0.15", s.Flow.AgreementRate)
		}
		if got := s.Flow.OppositionRate(); got != 0.85 {
			t.Errorf("opposition = %v, want 0.85", got)
		}
	})
}

func TestClassifyContent(t *testing.T) {
	cases := []struct {
		text string
		want ContentType
	}{
		{"This is a revolutionary breakthrough, truly unprecedented", ContentExciting},
		{"The algorithm uses gradient descent on the training dataset", ContentTechnical},
		{"Critics raised ethical concerns and bias in the debate", ContentControversial},
		{"The theorem follows from a stochastic derivation", ContentComplex},
		{"The weather was pleasant on Tuesday", ContentGeneral},
	}
	for _, tc := range cases {
		if got := ClassifyContent(tc.text); got != tc.want {
			t.Errorf("ClassifyContent(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestClassifyEmotion(t *testing.T) {
	cases := []struct {
		text string
		want ContentEmotion
	}{
		{"A major success and improvement, very effective", EmotionPositive},
		{"The failure exposed a problem and a limitation and made everything worse", EmotionNegative},
		{"The study presents data and a method", EmotionNeutralC},
	}
	for _, tc := range cases {
		if got := ClassifyEmotion(tc.text); got != tc.want {
			t.Errorf("ClassifyEmotion(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestAssignSpeaker(t *testing.T) {
	s, _ := Lookup("npr_calm")

	t.Run("question goes to questioner", func(t *testing.T) {
		got := s.AssignSpeaker("What does this mean for listeners?", types.SpeakerHost1)
		if got != s.QuestionerRole {
			t.Errorf("got %s, want %s", got, s.QuestionerRole)
		}
	})

	t.Run("strong explanation goes to explainer", func(t *testing.T) {
		got := s.AssignSpeaker("The methodology relies on a novel sampling scheme.", types.SpeakerHost1)
		if got != s.ExplainerRole {
			t.Errorf("got %s, want %s", got, s.ExplainerRole)
		}
	})

	t.Run("critical content goes to critical role", func(t *testing.T) {
		got := s.AssignSpeaker("A notable limitation remains unaddressed.", types.SpeakerHost1)
		if got != s.CriticalRole {
			t.Errorf("got %s, want %s", got, s.CriticalRole)
		}
	})

	t.Run("neutral content alternates", func(t *testing.T) {
		got := s.AssignSpeaker("And then they moved on.", types.SpeakerHost1)
		if got != types.SpeakerHost2 {
			t.Errorf("got %s, want host2", got)
		}
	})
}

func TestSplitAtSentence(t *testing.T) {
	first, second := SplitAtSentence("One sentence here. Another sentence there. A third one too.")
	if first == "" || second == "" {
		t.Fatalf("expected a split, got %q / %q", first, second)
	}
	if !strings.HasSuffix(first, ".") {
		t.Errorf("first part should end at a sentence boundary: %q", first)
	}

	_, second = SplitAtSentence("no boundary in this text at all")
	if second != "" {
		t.Errorf("expected no split, got %q", second)
	}
}

func TestEnhance(t *testing.T) {
	t.Run("expands abbreviations", func(t *testing.T) {
		got := CleanForSpeech("The AI model exposes an API")
		if !strings.Contains(got, "A.I.") || !strings.Contains(got, "A.P.I.") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("does not rewrite inside words", func(t *testing.T) {
		got := CleanForSpeech("TRAIN the model")
		if strings.Contains(got, "TRA.I.N") {
			t.Errorf("rewrote inside a word: %q", got)
		}
	})

	t.Run("normalizes percents", func(t *testing.T) {
		got := CleanForSpeech("improved by 40% overall")
		if !strings.Contains(got, "40 percent") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("adds breathing pause to long lines", func(t *testing.T) {
		long := strings.Repeat("word ", 25) + "middle, " + strings.Repeat("tail ", 10)
		got := AddBreathingPause(long)
		if !strings.Contains(got, ", ...") {
			t.Errorf("expected a breathing pause: %q", got)
		}
	})

	t.Run("leaves short lines alone", func(t *testing.T) {
		in := "short line, nothing to do"
		if got := AddBreathingPause(in); got != in {
			t.Errorf("got %q, want unchanged", got)
		}
	})
}

func TestArrangeSegment(t *testing.T) {
	e := NewEngine(nil)

	lines := []types.ScriptLine{
		{Speaker: types.SpeakerHost1, Text: "What did the authors discover?", Emotion: types.EmotionCurious},
		{Speaker: types.SpeakerHost2, Text: "The methodology shows a clear result.", Emotion: types.EmotionNeutral},
		{Speaker: types.SpeakerHost1, Text: "They kept going after that.", Emotion: types.EmotionNeutral},
	}

	t.Run("marks lines arranged", func(t *testing.T) {
		out, err := e.ArrangeSegment(lines, "npr_calm")
		if err != nil {
			t.Fatalf("ArrangeSegment() error = %v", err)
		}
		if len(out) < len(lines) {
			t.Fatalf("arrangement dropped lines: %d -> %d", len(lines), len(out))
		}
		for i, l := range out {
			if !l.Arranged {
				t.Errorf("line %d not marked arranged", i)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		once, err := e.ArrangeSegment(lines, "tech_energetic")
		if err != nil {
			t.Fatalf("first arrange error = %v", err)
		}
		twice, err := e.ArrangeSegment(once, "tech_energetic")
		if err != nil {
			t.Fatalf("second arrange error = %v", err)
		}
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("arrangement not idempotent:\n%+v\n%+v", once, twice)
		}
	})

	t.Run("splits long units with a transition", func(t *testing.T) {
		long := strings.Repeat("carefully measured words flow through this sentence without pause ", 7) +
			"and it ends here. Then a second thought follows with even more to say about everything."
		out, err := e.ArrangeSegment([]types.ScriptLine{
			{Speaker: types.SpeakerHost1, Text: long, Emotion: types.EmotionNeutral},
		}, "classroom")
		if err != nil {
			t.Fatalf("ArrangeSegment() error = %v", err)
		}
		if len(out) < 3 {
			t.Fatalf("expected split + transition, got %d lines", len(out))
		}
		if out[0].Speaker == out[2].Speaker {
			t.Error("split halves should go to different hosts")
		}
	})

	t.Run("unknown style fails", func(t *testing.T) {
		if _, err := e.ArrangeSegment(lines, "nope"); err == nil {
			t.Error("expected error for unknown style")
		}
	})
}

func TestStructuralSegments(t *testing.T) {
	s, _ := Lookup("layperson")

	intro := s.IntroSegment("Attention Is All You Need", 0)
	if intro.Plan.Type != types.SegmentTypeIntro {
		t.Errorf("intro type = %s", intro.Plan.Type)
	}
	if intro.FactcheckScore != 1.0 || !intro.VerificationPassed {
		t.Error("structural segments must be pinned verified")
	}
	found := false
	for _, l := range intro.Lines {
		if strings.Contains(l.Text, "Attention Is All You Need") {
			found = true
		}
		if !l.IsVerified || !l.Arranged {
			t.Error("structural lines must be verified and arranged")
		}
	}
	if !found {
		t.Error("intro should mention the topic")
	}

	outro := s.OutroSegment("topic", 5)
	if outro.Plan.Type != types.SegmentTypeOutro || outro.Plan.Index != 5 {
		t.Errorf("outro plan = %+v", outro.Plan)
	}

	ad := s.AdBreakSegment("topic", 3)
	if ad.Plan.Type != types.SegmentTypeAdBreak {
		t.Errorf("ad type = %s", ad.Plan.Type)
	}
}

func TestPatterns(t *testing.T) {
	patterns := Patterns()
	if len(patterns) == 0 {
		t.Fatal("no style patterns")
	}
	seen := map[types.StyleSection]bool{}
	for _, p := range patterns {
		if p.Text == "" || p.StyleID == "" {
			t.Errorf("incomplete pattern %+v", p)
		}
		seen[p.Section] = true
	}
	for _, section := range []types.StyleSection{
		types.StyleSectionOpening, types.StyleSectionReaction, types.StyleSectionTransition,
	} {
		if !seen[section] {
			t.Errorf("no patterns for section %s", section)
		}
	}
}
