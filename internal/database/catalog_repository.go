package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tutorcore/pkg/models"
	"github.com/jmoiron/sqlx"
)

// CatalogRepository handles database operations for words and grammar rules
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new repository instance
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListWords returns all words
func (r *CatalogRepository) ListWords(ctx context.Context) ([]models.Word, error) {
	var words []models.Word
	err := r.db.SelectContext(ctx, &words, "SELECT id, text, translation, topic, cefr_level, created_at FROM words ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}
	return words, nil
}

// ListRules returns all grammar rules
func (r *CatalogRepository) ListRules(ctx context.Context) ([]models.GrammarRule, error) {
	var rules []models.GrammarRule
	err := r.db.SelectContext(ctx, &rules, "SELECT id, title, category, cefr_level, created_at FROM grammar_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to get grammar rules: %w", err)
	}
	return rules, nil
}

// CountWords returns the number of words in the catalog
func (r *CatalogRepository) CountWords(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM words"); err != nil {
		return 0, fmt.Errorf("failed to count words: %w", err)
	}
	return n, nil
}

// CountRules returns the number of grammar rules in the catalog
func (r *CatalogRepository) CountRules(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM grammar_rules"); err != nil {
		return 0, fmt.Errorf("failed to count grammar rules: %w", err)
	}
	return n, nil
}

// UpsertWord inserts a word or updates the one with the same text, and sets its ID
func (r *CatalogRepository) UpsertWord(ctx context.Context, word *models.Word) error {
	if word.CreatedAt.IsZero() {
		word.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO words (text, translation, topic, cefr_level, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (text) DO UPDATE SET
			translation = excluded.translation,
			topic = excluded.topic,
			cefr_level = excluded.cefr_level
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		word.Text,
		word.Translation,
		word.Topic,
		word.CEFRLevel,
		word.CreatedAt,
	).Scan(&word.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert word %q: %w", word.Text, err)
	}
	return nil
}

// UpsertRule inserts a grammar rule or updates the one with the same title, and sets its ID
func (r *CatalogRepository) UpsertRule(ctx context.Context, rule *models.GrammarRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO grammar_rules (title, category, cefr_level, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (title) DO UPDATE SET
			category = excluded.category,
			cefr_level = excluded.cefr_level
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		rule.Title,
		rule.Category,
		rule.CEFRLevel,
		rule.CreatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert grammar rule %q: %w", rule.Title, err)
	}
	return nil
}
