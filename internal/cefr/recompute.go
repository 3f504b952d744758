package cefr

import (
	"context"
	"fmt"

	"github.com/example/tutorcore/pkg/models"
)

// Catalog lists catalog entries
type Catalog interface {
	ListWords(ctx context.Context) ([]models.Word, error)
	ListRules(ctx context.Context) ([]models.GrammarRule, error)
}

// KnowledgeReader reads a user's knowledge items
type KnowledgeReader interface {
	GetAll(ctx context.Context, kind models.ItemKind, userID int64) ([]models.KnowledgeItem, error)
}

// LevelWriter stores a user's determined level
type LevelWriter interface {
	UpdateLevel(ctx context.Context, userID int64, level models.CEFRResult) error
}

// Recomputer recalculates and stores a user's CEFR level
type Recomputer struct {
	catalog   Catalog
	knowledge KnowledgeReader
	users     LevelWriter
}

// NewRecomputer creates a level recomputer
func NewRecomputer(catalog Catalog, knowledge KnowledgeReader, users LevelWriter) *Recomputer {
	return &Recomputer{catalog: catalog, knowledge: knowledge, users: users}
}

// Recompute determines the user's level from current knowledge and saves it
func (r *Recomputer) Recompute(ctx context.Context, userID int64) (models.CEFRResult, error) {
	words, err := r.catalog.ListWords(ctx)
	if err != nil {
		return models.CEFRResult{}, fmt.Errorf("failed to list words: %w", err)
	}
	rules, err := r.catalog.ListRules(ctx)
	if err != nil {
		return models.CEFRResult{}, fmt.Errorf("failed to list rules: %w", err)
	}
	wordItems, err := r.knowledge.GetAll(ctx, models.KindWord, userID)
	if err != nil {
		return models.CEFRResult{}, fmt.Errorf("failed to get word knowledge: %w", err)
	}
	ruleItems, err := r.knowledge.GetAll(ctx, models.KindRule, userID)
	if err != nil {
		return models.CEFRResult{}, fmt.Errorf("failed to get rule knowledge: %w", err)
	}

	result := Compute(words, rules, KnownSubjects(wordItems), KnownSubjects(ruleItems))
	if err := r.users.UpdateLevel(ctx, userID, result); err != nil {
		return result, fmt.Errorf("failed to save level: %w", err)
	}
	return result, nil
}
