package models

import "time"

// PronunciationAttempt is one assessed utterance of a target sound
type PronunciationAttempt struct {
	ID                int64     `json:"id" db:"id"`
	UserID            int64     `json:"user_id" db:"user_id"`
	Sound             string    `json:"sound" db:"sound"`
	Intelligibility   float64   `json:"intelligibility" db:"intelligibility"`
	SegmentalAccuracy float64   `json:"segmental_accuracy" db:"segmental_accuracy"`
	StressCorrect     bool      `json:"stress_correct" db:"stress_correct"`
	Intonation        float64   `json:"intonation" db:"intonation"`
	Fluency           float64   `json:"fluency" db:"fluency"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Score weights of a pronunciation attempt
const (
	WeightIntelligibility   = 0.3
	WeightSegmentalAccuracy = 0.3
	WeightStress            = 0.15
	WeightIntonation        = 0.15
	WeightFluency           = 0.1
)

// Score returns the weighted overall score of the attempt in [0,1]
func (p *PronunciationAttempt) Score() float64 {
	stress := 0.0
	if p.StressCorrect {
		stress = 1
	}
	return WeightIntelligibility*p.Intelligibility +
		WeightSegmentalAccuracy*p.SegmentalAccuracy +
		WeightStress*stress +
		WeightIntonation*p.Intonation +
		WeightFluency*p.Fluency
}
