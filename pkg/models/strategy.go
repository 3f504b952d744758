package models

// Strategy is a teaching strategy the tutoring agent can run
type Strategy string

const (
	StrategyRepetition       Strategy = "REPETITION"
	StrategyGapFilling       Strategy = "GAP_FILLING"
	StrategyVocabularyBoost  Strategy = "VOCABULARY_BOOST"
	StrategyGrammarDrill     Strategy = "GRAMMAR_DRILL"
	StrategyPronunciation    Strategy = "PRONUNCIATION"
	StrategyLinearBook       Strategy = "LINEAR_BOOK"
	StrategyFreeConversation Strategy = "FREE_CONVERSATION"
	StrategyShadowing        Strategy = "SHADOWING"
)

// IsPronunciationFocused reports strategies that train pronunciation
func (s Strategy) IsPronunciationFocused() bool {
	return s == StrategyPronunciation || s == StrategyShadowing
}

// Recommendation is the outcome of strategy selection
type Recommendation struct {
	Primary   Strategy `json:"primary"`
	Secondary Strategy `json:"secondary"`
	Reason    string   `json:"reason"`
}
