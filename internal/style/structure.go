package style

import (
	"strings"

	"github.com/papercast-ai/papercast/internal/types"
)

// StructureTemplates are the style's intro, ad-break, and outro scripts.
// "{topic}" in any line is replaced with the episode topic at emission time.
type StructureTemplates struct {
	IntroWelcome string
	IntroHosts   string
	IntroTease   string

	AdLeadIn  string
	AdLeadOut string

	OutroSummary string
	OutroSignOff string
}

var structures = map[string]StructureTemplates{
	"layperson": {
		IntroWelcome: "Welcome to the show! Today we're talking about something that sounds complicated but really isn't: {topic}.",
		IntroHosts:   "I'm Sarah, and as always, I'm joined by my co-host Alex.",
		IntroTease:   "Stick around, because by the end of this episode you'll actually get what the fuss is about.",
		AdLeadIn:     "We'll be right back after this quick break.",
		AdLeadOut:    "And we're back! So, where were we...",
		OutroSummary: "So that's {topic} in plain language. Not so scary after all.",
		OutroSignOff: "Thanks for listening, and we'll catch you next time!",
	},
	"classroom": {
		IntroWelcome: "Welcome, everyone. Today's lesson covers {topic}.",
		IntroHosts:   "I'm Dr. Sarah, your instructor, and I'm joined by Dr. Alex, our teaching assistant.",
		IntroTease:   "By the end of this session you'll understand the key concepts and why they matter.",
		AdLeadIn:     "Let's take a short break. When we return, we'll build on what we've covered.",
		AdLeadOut:    "Welcome back. Let's pick up where we left off.",
		OutroSummary: "Let's recap what we learned about {topic} today.",
		OutroSignOff: "That concludes today's session. Keep asking questions.",
	},
	"tech_interview": {
		IntroWelcome: "Welcome to the deep dive. Today's topic: {topic}.",
		IntroHosts:   "I'm Sarah, your host, and I'm here with Alex, our technical expert.",
		IntroTease:   "We're going under the hood on the methodology, the results, and what's actually novel.",
		AdLeadIn:     "Quick break, then we get into the benchmarks.",
		AdLeadOut:    "Back to the deep dive.",
		OutroSummary: "That wraps our technical tour of {topic}.",
		OutroSignOff: "Until next time, keep reading the appendix.",
	},
	"journal_club": {
		IntroWelcome: "Welcome to journal club. This week's paper: {topic}.",
		IntroHosts:   "I'm Dr. Sarah, and I'm joined by Dr. Alex for today's peer review discussion.",
		IntroTease:   "We'll weigh the methods, the statistics, and whether the conclusions hold up.",
		AdLeadIn:     "A brief pause before we turn to the results section.",
		AdLeadOut:    "Resuming our review.",
		OutroSummary: "Our overall read on {topic}: promising, with the caveats we discussed.",
		OutroSignOff: "See you at the next journal club.",
	},
	"npr_calm": {
		IntroWelcome: "Today, a study that asks a deceptively simple question about {topic}.",
		IntroHosts:   "Today, I'm joined by researcher Alex Chen to explore a study that's been making waves in the scientific community.",
		IntroTease:   "It's a story about an idea, and what happened when researchers put it to the test.",
		AdLeadIn:     "We'll continue in a moment.",
		AdLeadOut:    "Returning to our story.",
		OutroSummary: "And so {topic} leaves us with something to sit with.",
		OutroSignOff: "Thanks for spending this time with us.",
	},
	"news_flash": {
		IntroWelcome: "Breaking research news: {topic}.",
		IntroHosts:   "I'm Sarah Martinez, and with me is tech analyst Alex Rodriguez.",
		IntroTease:   "The headlines, the numbers, and what it means. In the next few minutes.",
		AdLeadIn:     "Sixty seconds. Don't go anywhere.",
		AdLeadOut:    "Back with more.",
		OutroSummary: "Recapping tonight's top story: {topic}.",
		OutroSignOff: "That's the flash. We're out.",
	},
	"tech_energetic": {
		IntroWelcome: "Yo, welcome back! Today's episode is a banger: {topic}.",
		IntroHosts:   "I'm Sarah, your resident AI geek, and I'm here with Alex, our machine learning wizard.",
		IntroTease:   "We are going to absolutely geek out over this one.",
		AdLeadIn:     "Hold that thought, quick break!",
		AdLeadOut:    "Okay okay okay, we're back!",
		OutroSummary: "And THAT is why {topic} is such a big deal.",
		OutroSignOff: "Smash that subscribe, see you next week!",
	},
	"investigative": {
		IntroWelcome: "Tonight we investigate the claims behind {topic}.",
		IntroHosts:   "I'm investigative journalist Sarah Kim, and I'm joined by fact-checker Alex Thompson.",
		IntroTease:   "What the paper says, what the evidence shows, and where the two diverge.",
		AdLeadIn:     "When we come back: the part they buried in the appendix.",
		AdLeadOut:    "Continuing our investigation.",
		OutroSummary: "What we verified about {topic}, and what remains open.",
		OutroSignOff: "We follow the evidence. Good night.",
	},
	"debate_format": {
		IntroWelcome: "Welcome to the debate. Tonight's motion concerns {topic}.",
		IntroHosts:   "I'm Sarah, and I'm here with Alex, and as usual, we probably won't agree on everything.",
		IntroTease:   "Two readings of the same paper. You decide who wins.",
		AdLeadIn:     "A short ceasefire. Back in a moment.",
		AdLeadOut:    "Round two. Fight on.",
		OutroSummary: "Closing arguments on {topic} are in.",
		OutroSignOff: "Agree with one of us in the comments. Good night.",
	},
}

// substituteTopic fills the {topic} placeholder.
func substituteTopic(template, topic string) string {
	return strings.ReplaceAll(template, "{topic}", topic)
}

// IntroSegment emits the structural opening segment for a style. Structural
// segments bypass fact-checking; their score is pinned to 1.
func (s *Style) IntroSegment(topic string, index int) types.SegmentDraft {
	t := s.Structure
	lines := []types.ScriptLine{
		{Speaker: types.SpeakerHost1, Text: substituteTopic(t.IntroWelcome, topic), Emotion: types.EmotionExcited, IsVerified: true, Arranged: true},
		{Speaker: types.SpeakerHost1, Text: substituteTopic(t.IntroHosts, topic), Emotion: types.EmotionNeutral, IsVerified: true, Arranged: true},
		{Speaker: types.SpeakerHost2, Text: substituteTopic(t.IntroTease, topic), Emotion: types.EmotionCurious, IsVerified: true, Arranged: true},
	}
	return structuralDraft(types.SegmentTypeIntro, "Introduction", index, lines)
}

// AdBreakSegment emits the structural mid-episode break.
func (s *Style) AdBreakSegment(topic string, index int) types.SegmentDraft {
	t := s.Structure
	lines := []types.ScriptLine{
		{Speaker: types.SpeakerHost1, Text: substituteTopic(t.AdLeadIn, topic), Emotion: types.EmotionNeutral, IsVerified: true, Arranged: true},
		{Speaker: types.SpeakerNarrator, Text: "This episode is brought to you by our sponsors.", Emotion: types.EmotionNeutral, IsVerified: true, Arranged: true},
		{Speaker: types.SpeakerHost1, Text: substituteTopic(t.AdLeadOut, topic), Emotion: types.EmotionNeutral, IsVerified: true, Arranged: true},
	}
	return structuralDraft(types.SegmentTypeAdBreak, "Break", index, lines)
}

// OutroSegment emits the structural closing segment.
func (s *Style) OutroSegment(topic string, index int) types.SegmentDraft {
	t := s.Structure
	lines := []types.ScriptLine{
		{Speaker: types.SpeakerHost2, Text: substituteTopic(t.OutroSummary, topic), Emotion: types.EmotionThoughtful, IsVerified: true, Arranged: true},
		{Speaker: types.SpeakerHost1, Text: substituteTopic(t.OutroSignOff, topic), Emotion: types.EmotionNeutral, IsVerified: true, Arranged: true},
	}
	return structuralDraft(types.SegmentTypeOutro, "Outro", index, lines)
}

func structuralDraft(segType types.SegmentType, title string, index int, lines []types.ScriptLine) types.SegmentDraft {
	return types.SegmentDraft{
		Plan: types.SegmentPlan{
			Index:           index,
			Type:            segType,
			Title:           title,
			DurationTargetS: 30,
			KeyPoints:       []string{title},
		},
		Lines:              lines,
		FactcheckScore:     1.0,
		IsComplete:         true,
		VerificationPassed: true,
	}
}
