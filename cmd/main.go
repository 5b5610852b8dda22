package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"edushare/internal/config"
	"edushare/internal/handler"
	"edushare/internal/repository"
	"edushare/internal/service"
	"edushare/internal/service/s3"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Блоб-хранилище для содержимого файлов
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Репозитории и сервисы
	itemRepo := repository.NewItemRepository(db)
	shareRepo := repository.NewShareRepository(db)

	itemService := service.NewItemService(itemRepo, s3Client)
	shareService := service.NewShareService(shareRepo, itemRepo)

	itemHandler := handler.NewItemHandler(itemService)
	shareHandler := handler.NewShareHandler(shareService, itemService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/items/root", itemHandler.GetRoot)
		r.Get("/folders/{id}/children", itemHandler.GetChildren)
		r.Post("/folders", itemHandler.CreateFolder)

		r.Post("/files", itemHandler.UploadFile)
		r.Get("/files/{id}", itemHandler.DownloadFile)

		r.Put("/items/{id}/rename", itemHandler.RenameItem)
		r.Put("/items/move", itemHandler.MoveItems)
		r.Delete("/items", itemHandler.DeleteItems)
		r.Post("/items/restore", itemHandler.RestoreItems)
		r.Get("/items/{id}/path", itemHandler.GetPath)

		r.Route("/shares", func(r chi.Router) {
			r.Post("/", shareHandler.CreateShare)
			r.Delete("/{token}", shareHandler.RevokeShare)
		})

		// Операции под share-токеном, все через ворота авторизации
		r.Route("/s/{token}", func(r chi.Router) {
			r.Get("/meta", shareHandler.GetShareMeta)
			r.Get("/children", shareHandler.SharedChildren)
			r.Get("/files/{id}", shareHandler.SharedDownload)
			r.Post("/folders", shareHandler.SharedCreateFolder)
			r.Post("/files", shareHandler.SharedUpload)
			r.Put("/items/{id}/rename", shareHandler.SharedRename)
			r.Put("/items/move", shareHandler.SharedMove)
			r.Delete("/items", shareHandler.SharedDelete)
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Фоновая чистка: истёкшие share-ссылки и просроченные тумбстоны
	done := make(chan struct{})
	cleanupTicker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-cleanupTicker.C:
				ctx := context.Background()
				if err := shareService.CleanupExpired(ctx); err != nil {
					log.Printf("Error during share cleanup: %v", err)
				}
				if err := itemService.PurgeExpired(ctx, appConfig.TrashRetention()); err != nil {
					log.Printf("Error during trash purge: %v", err)
				}
			case <-done:
				cleanupTicker.Stop()
				return
			}
		}
	}()

	<-quit
	close(done)
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
