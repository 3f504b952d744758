package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/tutorcore/internal/cefr"
	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/internal/config"
	"github.com/example/tutorcore/internal/database"
	"github.com/example/tutorcore/internal/excel"
	"github.com/example/tutorcore/internal/notify"
	"github.com/example/tutorcore/internal/remote"
	"github.com/example/tutorcore/internal/review"
	"github.com/example/tutorcore/internal/scheduler"
	"github.com/example/tutorcore/internal/snapshot"
	"github.com/example/tutorcore/internal/spaced_repetition"
	"github.com/example/tutorcore/internal/strategy"
	"github.com/example/tutorcore/internal/syncqueue"
	"github.com/example/tutorcore/internal/tutor"
	"github.com/example/tutorcore/pkg/models"
)

// offlineRemote stands in for the remote store when none is configured;
// every flush keeps its entries and reports offline.
type offlineRemote struct{}

func (offlineRemote) CommitBatch(ctx context.Context, userID int64, entries []syncqueue.Entry) error {
	return errors.New("remote store is not configured")
}

// reminders joins users who want reminders with their due counts
type reminders struct {
	*database.UserRepository
	*database.KnowledgeRepository
}

func main() {
	configPath := flag.String("config", "", "path to the config file")
	reportUser := flag.Int64("report", 0, "print a preview of the next session of a user and exit")
	importOnly := flag.Bool("import-only", false, "import the catalog files and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.SetPrefix(cfg.App.LogPrefix)

	// Подключаемся к базе данных
	db, err := database.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	clk := clock.Real()
	knowledge := database.NewKnowledgeRepository(db)
	catalog := database.NewCatalogRepository(db)
	attempts := database.NewPronunciationRepository(db)
	sessions := database.NewSessionRepository(db)
	books := database.NewBookRepository(db)
	users := database.NewUserRepository(db)

	// Создаем контекст с отменой
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	importCatalog(ctx, excel.NewImporter(catalog), cfg.Catalog)
	if *importOnly {
		return
	}

	var store syncqueue.Remote = offlineRemote{}
	if cfg.Remote.BaseURL != "" {
		client, err := remote.New(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.Timeout)
		if err != nil {
			log.Fatalf("Failed to create remote client: %v", err)
		}
		store = client
	} else {
		log.Println("remote.base_url is not set, knowledge writes stay local")
	}
	pool := syncqueue.NewPool(store, syncqueue.Options{
		MaxBatchSize: cfg.Sync.MaxBatchSize,
		SafetyMargin: cfg.Sync.SafetyMargin,
		ChunkTimeout: cfg.Sync.ChunkTimeout,
	})

	svc := tutor.NewService(tutor.Deps{
		Knowledge:     knowledge,
		Sessions:      sessions,
		Pronunciation: attempts,
		Queue:         review.NewBuilder(knowledge, clk),
		Snapshots:     snapshot.NewAssembler(knowledge, catalog, attempts, sessions, books, clk),
		Levels:        cefr.NewRecomputer(catalog, knowledge, users),
		Sync:          pool,
		Engine:        spaced_repetition.NewSM2(),
		Clock:         clk,
		QueueLimit:    cfg.Review.QueueLimit,
	})

	if *reportUser != 0 {
		selector := strategy.NewSelector(knowledge, catalog, attempts, sessions, clk)
		if err := report(ctx, svc, selector, *reportUser); err != nil {
			log.Fatalf("Failed to build report: %v", err)
		}
		return
	}

	var notifier scheduler.Notifier
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token)
		if err != nil {
			log.Fatalf("Failed to create Telegram notifier: %v", err)
		}
		notifier = tg
	} else {
		log.Println("telegram.token is not set, reminders are disabled")
	}

	sched := scheduler.New(notifier, reminders{users, knowledge}, pool, clk, scheduler.Options{
		StartHour:     cfg.Notifications.StartHour,
		EndHour:       cfg.Notifications.EndHour,
		FlushInterval: cfg.Sync.FlushInterval,
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Создаем канал для сигналов
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Tutor core started. Press Ctrl+C to stop.")
	sig := <-sigChan
	log.Printf("Received signal: %v", sig)
	cancel()
	sched.Stop()

	// Даем время на последнюю синхронизацию
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	for userID, status := range pool.FlushAll(shutdownCtx) {
		log.Printf("Final sync for user %d: %s", userID, status)
	}
	if n := pool.PendingSize(); n > 0 {
		log.Printf("%d knowledge writes were not synced", n)
	}
	log.Println("Tutor core stopped successfully")
}

func importCatalog(ctx context.Context, importer *excel.Importer, cfg config.CatalogConfig) {
	if cfg.WordsPath != "" {
		importConfig := excel.DefaultWordsConfig()
		importConfig.FilePath = cfg.WordsPath
		logImport("words", cfg.WordsPath)(importer.ImportWords(ctx, importConfig))
	}
	if cfg.RulesPath != "" {
		importConfig := excel.DefaultRulesConfig()
		importConfig.FilePath = cfg.RulesPath
		logImport("grammar rules", cfg.RulesPath)(importer.ImportRules(ctx, importConfig))
	}
}

func logImport(what, path string) func(*excel.ImportResult, error) {
	return func(result *excel.ImportResult, err error) {
		if err != nil {
			log.Printf("Error importing %s from %s: %v", what, path, err)
			return
		}
		log.Printf("Imported %s from %s: %d processed, %d created, %d updated, %d skipped",
			what, path, result.TotalProcessed, result.Created, result.Updated, result.Skipped)
		for _, msg := range result.Errors {
			log.Printf("  %s", msg)
		}
	}
}

// sessionPreview is what a session started now would contain
type sessionPreview struct {
	Recommendation models.Recommendation    `json:"recommendation"`
	Signals        strategy.Signals         `json:"signals"`
	Queue          []models.ReviewItem      `json:"queue"`
	Snapshot       models.KnowledgeSnapshot `json:"snapshot"`
}

// report prints a preview of the next session without recording it
func report(ctx context.Context, svc *tutor.Service, selector *strategy.Selector, userID int64) error {
	signals, err := selector.Signals(ctx, userID)
	if err != nil {
		return err
	}
	sess := svc.StartSession(ctx, userID)
	log.Printf("Recommended strategy for user %d: %s (%s)", userID, sess.Recommendation.Primary, sess.Recommendation.Reason)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sessionPreview{
		Recommendation: sess.Recommendation,
		Signals:        signals,
		Queue:          sess.Queue,
		Snapshot:       sess.Snapshot,
	})
}
