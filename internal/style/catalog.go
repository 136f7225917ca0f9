// Package style holds the podcast style system: the closed style catalog,
// content classification, speaker assignment, speech enhancement, and the
// structural intro/ad-break/outro segments.
package style

import (
	"fmt"
	"sort"

	"github.com/papercast-ai/papercast/internal/types"
)

// HostProfile describes one host's persona within a style.
type HostProfile struct {
	Role                string
	Personality         string
	SpeechRate          int // words per minute
	VoiceEnergy         string
	Reactions           []string
	QuestionPatterns    []string
	ExplanationPatterns []string
	Transitions         []string
}

// ConversationFlow weights the conversational devices a style uses.
type ConversationFlow struct {
	InterruptionRate float64
	AgreementRate    float64
	FollowUpRate     float64
	ReactionRate     float64
	Pace             string
	TransitionStyle  string
}

// OppositionRate returns the debate-style counterweight to agreement.
func (f ConversationFlow) OppositionRate() float64 {
	return 1 - f.AgreementRate
}

// Style is one entry in the closed style catalog.
type Style struct {
	ID          string
	Name        string
	Description string

	Hosts map[types.Speaker]HostProfile
	Flow  ConversationFlow

	// Content-driven speaker overrides.
	QuestionerRole types.Speaker
	ExplainerRole  types.Speaker
	CriticalRole   types.Speaker

	Structure StructureTemplates
}

// HostSpeakers returns the declared dialogue speakers, host1 before host2.
func (s *Style) HostSpeakers() []types.Speaker {
	out := make([]types.Speaker, 0, len(s.Hosts))
	for sp := range s.Hosts {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultStyleID is used when a job does not specify a style.
const DefaultStyleID = "npr_calm"

// Lookup returns the style for id.
func Lookup(id string) (*Style, error) {
	s, ok := catalog[id]
	if !ok {
		return nil, fmt.Errorf("unknown style %q", id)
	}
	return s, nil
}

// IDs returns all catalog style IDs, sorted.
func IDs() []string {
	out := make([]string, 0, len(catalog))
	for id := range catalog {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var catalog = map[string]*Style{
	"layperson": {
		ID:          "layperson",
		Name:        "Layperson-Friendly",
		Description: "Friendly, accessible discussion making complex topics approachable for everyone",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "curious_everyman",
				Personality: "asks the questions regular people would ask, seeks clarity",
				SpeechRate:  130,
				VoiceEnergy: "warm-curious",
				Reactions: []string{
					"Okay, but what does that actually mean?",
					"So basically...",
					"Wait, let me make sure I understand...",
					"That's pretty cool, but...",
				},
				QuestionPatterns: []string{
					"Can you put that in everyday terms?",
					"What would this look like in real life?",
					"Why should I care about this?",
				},
				Transitions: []string{
					"You know what I'm wondering...",
					"Speaking of everyday life...",
				},
			},
			types.SpeakerHost2: {
				Role:        "friendly_explainer",
				Personality: "patient teacher, uses analogies, makes complex simple",
				SpeechRate:  125,
				VoiceEnergy: "warm-encouraging",
				Reactions: []string{
					"Good question! Let me put it this way...",
					"Think about it like this...",
					"Here's why that's exciting...",
				},
				ExplanationPatterns: []string{
					"The researchers found...",
					"What this means for you is...",
					"Imagine if...",
				},
				Transitions: []string{
					"Now, I know that sounds complicated, but...",
					"Here's why this matters to you...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.1,
			AgreementRate:    0.35,
			FollowUpRate:     0.5,
			ReactionRate:     0.3,
			Pace:             "relaxed",
			TransitionStyle:  "gentle",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost1,
		Structure:      structures["layperson"],
	},

	"classroom": {
		ID:          "classroom",
		Name:        "Classroom Teaching",
		Description: "Patient, pedagogical discussion building understanding step-by-step",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "curious_student",
				Personality: "asks for clarification, checks understanding, seeks examples",
				SpeechRate:  135,
				VoiceEnergy: "engaged-learning",
				Reactions: []string{
					"Can you explain that in simpler terms?",
					"So if I understand correctly...",
					"Can you give us a concrete example?",
				},
				QuestionPatterns: []string{
					"What does that mean exactly?",
					"Can you walk us through that step-by-step?",
				},
				Transitions: []string{
					"Building on that...",
					"Now I'm curious about...",
				},
			},
			types.SpeakerHost2: {
				Role:        "patient_teacher",
				Personality: "systematic explainer, uses examples, checks for understanding",
				SpeechRate:  140,
				VoiceEnergy: "steady-supportive",
				Reactions: []string{
					"That's right, and here's why that matters...",
					"Great question. Let me break it down...",
					"Think of it this way...",
				},
				ExplanationPatterns: []string{
					"The research demonstrates...",
					"Step by step, here's what happens...",
				},
				Transitions: []string{
					"Now that we understand that, let's move on...",
					"This connects to what we learned earlier...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.05,
			AgreementRate:    0.25,
			FollowUpRate:     0.6,
			ReactionRate:     0.15,
			Pace:             "measured",
			TransitionStyle:  "pedagogical",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost1,
		Structure:      structures["classroom"],
	},

	"tech_interview": {
		ID:          "tech_interview",
		Name:        "Tech Deep Dive",
		Description: "In-depth technical discussion with expert insights",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "technical_interviewer",
				Personality: "probing questioner, seeks technical depth",
				SpeechRate:  145,
				VoiceEnergy: "focused",
				Reactions: []string{
					"Let's dig deeper into that...",
					"What's the technical implementation here?",
					"What are the limitations?",
				},
				QuestionPatterns: []string{
					"Can you explain the algorithm behind this?",
					"How did they validate these results?",
				},
				Transitions: []string{
					"From a technical standpoint...",
					"Looking at the implementation...",
				},
			},
			types.SpeakerHost2: {
				Role:        "technical_expert",
				Personality: "detailed explainer, methodology-focused",
				SpeechRate:  140,
				VoiceEnergy: "measured",
				Reactions: []string{
					"The key insight here is...",
					"What we're seeing in the data is...",
					"The breakthrough comes from...",
				},
				ExplanationPatterns: []string{
					"The paper demonstrates that...",
					"What's novel about their approach is...",
				},
				Transitions: []string{
					"The technical details show...",
					"The methodology reveals...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.08,
			AgreementRate:    0.2,
			FollowUpRate:     0.6,
			ReactionRate:     0.1,
			Pace:             "measured",
			TransitionStyle:  "structured",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost1,
		Structure:      structures["tech_interview"],
	},

	"journal_club": {
		ID:          "journal_club",
		Name:        "Journal Club",
		Description: "Scholarly peer-review discussion weighing methods and evidence",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "methods_reviewer",
				Personality: "scrutinizes methodology, raises statistical concerns",
				SpeechRate:  140,
				VoiceEnergy: "analytical",
				Reactions: []string{
					"The sample size gives me pause...",
					"I'd want to see the confidence intervals...",
					"How does this replicate?",
				},
				QuestionPatterns: []string{
					"What controls did they run?",
					"Is the effect robust across conditions?",
				},
				Transitions: []string{
					"Turning to the methods section...",
					"On the statistical side...",
				},
			},
			types.SpeakerHost2: {
				Role:        "findings_presenter",
				Personality: "presents the work faithfully, contextualizes in the literature",
				SpeechRate:  138,
				VoiceEnergy: "scholarly",
				Reactions: []string{
					"That's a fair critique, though the authors address it...",
					"In the context of prior work...",
					"The effect size here is notable...",
				},
				ExplanationPatterns: []string{
					"The authors report...",
					"Compared to the baseline...",
				},
				Transitions: []string{
					"Moving to the results...",
					"The discussion section raises...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.1,
			AgreementRate:    0.2,
			FollowUpRate:     0.55,
			ReactionRate:     0.15,
			Pace:             "measured",
			TransitionStyle:  "scholarly",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost1,
		Structure:      structures["journal_club"],
	},

	"npr_calm": {
		ID:          "npr_calm",
		Name:        "Public Radio Calm",
		Description: "Thoughtful, measured storytelling in the public-radio tradition",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "narrative_host",
				Personality: "warm storyteller, frames the human angle",
				SpeechRate:  120,
				VoiceEnergy: "calm-warm",
				Reactions: []string{
					"That's a striking finding...",
					"Help our listeners picture that...",
					"There's something quietly remarkable here...",
				},
				QuestionPatterns: []string{
					"What drew the researchers to this question?",
					"What does this mean for the rest of us?",
				},
				Transitions: []string{
					"Which brings us to...",
					"And that opens a larger question...",
				},
			},
			types.SpeakerHost2: {
				Role:        "resident_expert",
				Personality: "unhurried expert, precise but accessible",
				SpeechRate:  118,
				VoiceEnergy: "calm-considered",
				Reactions: []string{
					"It's worth pausing on that...",
					"The careful answer is...",
					"What the study actually shows is...",
				},
				ExplanationPatterns: []string{
					"The researchers found...",
					"To put that in perspective...",
				},
				Transitions: []string{
					"Stepping back for a moment...",
					"The broader picture here...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.02,
			AgreementRate:    0.3,
			FollowUpRate:     0.45,
			ReactionRate:     0.2,
			Pace:             "slow",
			TransitionStyle:  "gentle",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost2,
		Structure:      structures["npr_calm"],
	},

	"news_flash": {
		ID:          "news_flash",
		Name:        "News Flash",
		Description: "Fast-paced news coverage hitting the headlines and why they matter",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "anchor",
				Personality: "drives the rundown, keeps segments tight",
				SpeechRate:  160,
				VoiceEnergy: "urgent-crisp",
				Reactions: []string{
					"Big development here...",
					"Let's get right to it...",
					"And there's more...",
				},
				QuestionPatterns: []string{
					"What's the headline?",
					"Bottom line for our audience?",
				},
				Transitions: []string{
					"Turning to the numbers...",
					"In related findings...",
				},
			},
			types.SpeakerHost2: {
				Role:        "field_analyst",
				Personality: "rapid context, crisp takeaways",
				SpeechRate:  155,
				VoiceEnergy: "energetic-focused",
				Reactions: []string{
					"Here's what stands out...",
					"Three things to know...",
					"The data backs that up...",
				},
				ExplanationPatterns: []string{
					"The study reports...",
					"Key stat:",
				},
				Transitions: []string{
					"Quickly on the method...",
					"One more headline...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.15,
			AgreementRate:    0.2,
			FollowUpRate:     0.35,
			ReactionRate:     0.25,
			Pace:             "fast",
			TransitionStyle:  "abrupt",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost2,
		Structure:      structures["news_flash"],
	},

	"tech_energetic": {
		ID:          "tech_energetic",
		Name:        "Tech Enthusiast",
		Description: "High-energy geek-out over new research and what it unlocks",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "hype_host",
				Personality: "infectious enthusiasm, loves demos and implications",
				SpeechRate:  155,
				VoiceEnergy: "high-excited",
				Reactions: []string{
					"Okay this is genuinely wild...",
					"Wait until you hear this part...",
					"I've been waiting for someone to crack this...",
				},
				QuestionPatterns: []string{
					"How fast is it though?",
					"Can I run this at home?",
				},
				Transitions: []string{
					"And it gets better...",
					"Okay, next banger...",
				},
			},
			types.SpeakerHost2: {
				Role:        "ml_wizard",
				Personality: "deep technical chops, grounded but excited",
				SpeechRate:  150,
				VoiceEnergy: "bright-engaged",
				Reactions: []string{
					"The clever bit is...",
					"Under the hood...",
					"Honestly, the ablations are the best part...",
				},
				ExplanationPatterns: []string{
					"They basically...",
					"The trick is...",
				},
				Transitions: []string{
					"Zooming into the architecture...",
					"Benchmarks time...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.25,
			AgreementRate:    0.4,
			FollowUpRate:     0.5,
			ReactionRate:     0.4,
			Pace:             "fast",
			TransitionStyle:  "energetic",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost2,
		Structure:      structures["tech_energetic"],
	},

	"investigative": {
		ID:          "investigative",
		Name:        "Investigative",
		Description: "Skeptical, evidence-first examination of claims and caveats",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "investigative_journalist",
				Personality: "follows the evidence, questions incentives",
				SpeechRate:  135,
				VoiceEnergy: "serious-probing",
				Reactions: []string{
					"Let's follow that thread...",
					"Who funded this work?",
					"The claim is big; is the evidence?",
				},
				QuestionPatterns: []string{
					"What would falsify this?",
					"What aren't they telling us?",
				},
				Transitions: []string{
					"Digging deeper...",
					"The paper trail shows...",
				},
			},
			types.SpeakerHost2: {
				Role:        "fact_checker",
				Personality: "verifies line by line, cites the record",
				SpeechRate:  132,
				VoiceEnergy: "precise-steady",
				Reactions: []string{
					"I checked that claim against the data...",
					"The record shows...",
					"That holds up; this part doesn't...",
				},
				ExplanationPatterns: []string{
					"According to the source material...",
					"The numbers say...",
				},
				Transitions: []string{
					"On verification...",
					"Cross-referencing the results...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.08,
			AgreementRate:    0.15,
			FollowUpRate:     0.6,
			ReactionRate:     0.15,
			Pace:             "deliberate",
			TransitionStyle:  "suspenseful",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost2,
		CriticalRole:   types.SpeakerHost1,
		Structure:      structures["investigative"],
	},

	"debate_format": {
		ID:          "debate_format",
		Name:        "Debate Format",
		Description: "Structured disagreement: two hosts argue the strongest opposing readings",
		Hosts: map[types.Speaker]HostProfile{
			types.SpeakerHost1: {
				Role:        "advocate",
				Personality: "argues the paper's strongest case",
				SpeechRate:  145,
				VoiceEnergy: "assertive",
				Reactions: []string{
					"That criticism misses the point...",
					"The results speak for themselves...",
					"Let me push back on that...",
				},
				QuestionPatterns: []string{
					"What evidence would change your mind?",
					"Isn't that holding it to an impossible standard?",
				},
				Transitions: []string{
					"Moving to my next point...",
					"Consider the stronger claim...",
				},
			},
			types.SpeakerHost2: {
				Role:        "skeptic",
				Personality: "argues the strongest case against, concedes rarely",
				SpeechRate:  145,
				VoiceEnergy: "sharp-challenging",
				Reactions: []string{
					"I see it completely differently...",
					"That's exactly where the argument breaks down...",
					"Fine, I'll grant that one point...",
				},
				ExplanationPatterns: []string{
					"The counter-evidence is...",
					"A simpler explanation:",
				},
				Transitions: []string{
					"Here's my rebuttal...",
					"Turning your argument around...",
				},
			},
		},
		Flow: ConversationFlow{
			InterruptionRate: 0.3,
			AgreementRate:    0.15, // opposition_rate = 0.85
			FollowUpRate:     0.45,
			ReactionRate:     0.3,
			Pace:             "fast",
			TransitionStyle:  "adversarial",
		},
		QuestionerRole: types.SpeakerHost1,
		ExplainerRole:  types.SpeakerHost1,
		CriticalRole:   types.SpeakerHost2,
		Structure:      structures["debate_format"],
	},
}
