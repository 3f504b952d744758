package models

// Priority is the review bucket of a due item; lower runs first
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityImportant
	PrioritySupporting
	PriorityMastery
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityImportant:
		return "IMPORTANT"
	case PrioritySupporting:
		return "SUPPORTING"
	case PriorityMastery:
		return "MASTERY"
	}
	return "UNKNOWN"
}

// ReviewItem is a due knowledge item placed in a session's review queue
type ReviewItem struct {
	Item        KnowledgeItem `json:"item"`
	Priority    Priority      `json:"priority"`
	OverdueDays int           `json:"overdue_days"`
}
