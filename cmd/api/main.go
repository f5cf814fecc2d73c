package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lekenzi/QuizNexus/internal/app"
	"github.com/lekenzi/QuizNexus/internal/config"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/handler"
	"github.com/lekenzi/QuizNexus/internal/middleware"
	"github.com/lekenzi/QuizNexus/internal/websocket"
	"github.com/lekenzi/QuizNexus/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	isProduction := gin.Mode() == gin.ReleaseMode

	application, err := app.New(cfg, !isProduction && os.Getenv("SQL_DEBUG") == "true")
	if err != nil {
		log.Printf("Failed to initialize application: %v", err)
		os.Exit(1)
	}
	defer application.Close()

	// Применяем миграции
	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if err := database.MigrateDB(application.DB, migrationsDir); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Контекст фоновых задач: отменяется при остановке сервера
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(application.Auth)
	catalogHandler := handler.NewCatalogHandler(application.Catalog, application.Location)
	userHandler := handler.NewUserHandler(application.Dashboard, application.Preferences, application.Submissions)
	adminHandler := handler.NewAdminHandler(application.Runner, application.Stats)

	registry := websocket.NewSessionRegistry(websocket.RegistryConfig{
		CountdownFrom: cfg.WebSocket.CountdownFrom,
		Interval:      cfg.WebSocket.CountdownInterval,
	})
	wsHandler := handler.NewWSHandler(registry, application.JWT, cfg.Server.AllowedOrigins)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(application.JWT, application.Preferences)
	rateLimiter := middleware.NewRateLimiter(application.Redis)

	router := gin.Default()

	if isProduction {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS. Тот же список используется для Origin в WebSocket.
	corsConfig := cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "websocket": registry.Stats()})
	})

	api := router.Group("/api")
	{
		// Аутентификация
		authGroup := api.Group("/auth")
		authGroup.Use(rateLimiter.Limit(middleware.AuthRateLimitConfig()))
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Каталог (чтение через кеш)
		api.GET("/subjects", catalogHandler.ListSubjects)
		api.GET("/subjects/:id/chapters", middleware.ExtractUintParam("id", handler.ParamSubjectID), catalogHandler.ListChapters)
		api.GET("/chapters/:id/quizzes", middleware.ExtractUintParam("id", handler.ParamChapterID), catalogHandler.ListChapterQuizzes)
		api.GET("/quizzes", catalogHandler.ListQuizzes)

		// Маршруты пользователя
		user := api.Group("")
		user.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(entity.RoleUser))
		{
			user.GET("/dashboard", userHandler.GetDashboard)
			user.GET("/preferences", userHandler.GetPreferences)
			user.POST("/preferences", userHandler.UpdatePreferences)

			quizWithID := user.Group("/quizzes/:id")
			quizWithID.Use(middleware.ExtractUintParam("id", handler.ParamQuizID))
			{
				quizWithID.GET("", catalogHandler.GetQuiz)
				quizWithID.POST("/responses", userHandler.SubmitResponse)
			}
		}

		// Маршруты администратора
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(entity.RoleAdmin))
		{
			admin.POST("/subjects", catalogHandler.CreateSubject)
			admin.PUT("/subjects/:id", middleware.ExtractUintParam("id", handler.ParamSubjectID), catalogHandler.UpdateSubject)
			admin.DELETE("/subjects/:id", middleware.ExtractUintParam("id", handler.ParamSubjectID), catalogHandler.DeleteSubject)

			admin.POST("/chapters", catalogHandler.CreateChapter)
			admin.PUT("/chapters/:id", middleware.ExtractUintParam("id", handler.ParamChapterID), catalogHandler.UpdateChapter)
			admin.DELETE("/chapters/:id", middleware.ExtractUintParam("id", handler.ParamChapterID), catalogHandler.DeleteChapter)

			admin.POST("/quizzes", catalogHandler.CreateQuiz)
			admin.GET("/quizzes/:id", middleware.ExtractUintParam("id", handler.ParamQuizID), catalogHandler.GetQuiz)
			admin.PUT("/quizzes/:id", middleware.ExtractUintParam("id", handler.ParamQuizID), catalogHandler.UpdateQuiz)
			admin.DELETE("/quizzes/:id", middleware.ExtractUintParam("id", handler.ParamQuizID), catalogHandler.DeleteQuiz)

			admin.POST("/questions", catalogHandler.CreateQuestion)
			admin.PUT("/questions/:id", middleware.ExtractUintParam("id", handler.ParamQuestionID), catalogHandler.UpdateQuestion)
			admin.DELETE("/questions/:id", middleware.ExtractUintParam("id", handler.ParamQuestionID), catalogHandler.DeleteQuestion)

			admin.GET("/jobs", adminHandler.ListJobs)
			admin.POST("/jobs/:name", rateLimiter.Limit(middleware.AdminJobsRateLimitConfig()), adminHandler.RunJob)
			admin.POST("/exports/user-stats", adminHandler.ExportUserStats)
			admin.GET("/users/:id/stats", middleware.ExtractUintParam("id", handler.ParamUserID), adminHandler.GetUserStats)
		}
	}

	// WebSocket обратного отсчета
	router.GET("/ws/countdown", wsHandler.HandleCountdown)

	// Фоновые задачи
	application.Runner.Start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем задачи и дожидаемся текущих тиков
	cancel()
	application.Runner.Wait()
	registry.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
