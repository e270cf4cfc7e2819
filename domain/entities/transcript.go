package entities

// Role identifies who is speaking in a transcript entry
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Valid reports whether r is a known speaker role
func (r Role) Valid() bool {
	return r == RoleInterviewer || r == RoleCandidate
}

// TranscriptEntry is one displayed turn. Partial stays true while the turn is still streaming.
type TranscriptEntry struct {
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
	Partial bool   `json:"partial" bson:"partial"`
}

// EmotionSample is the latest affect estimate for the candidate
type EmotionSample struct {
	DominantEmotion string             `json:"dominant_emotion" bson:"dominant_emotion"`
	ConfidenceScore float64            `json:"confidence_score" bson:"confidence_score"`
	StressScore     float64            `json:"stress_score" bson:"stress_score"`
	Emotions        map[string]float64 `json:"emotions,omitempty" bson:"emotions,omitempty"`
}

var emotionEmoji = map[string]string{
	"happy":    "😊",
	"sad":      "😢",
	"angry":    "😠",
	"surprise": "😲",
	"fear":     "😰",
	"disgust":  "🤢",
	"neutral":  "😐",
}

// Emoji maps the dominant emotion to its badge, falling back to neutral
func (e EmotionSample) Emoji() string {
	if v, ok := emotionEmoji[e.DominantEmotion]; ok {
		return v
	}
	return emotionEmoji["neutral"]
}
