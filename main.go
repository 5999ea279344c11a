package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/tlord101/VanTutor-sub000/api"
	"github.com/tlord101/VanTutor-sub000/config"
	"github.com/tlord101/VanTutor-sub000/database"
	"github.com/tlord101/VanTutor-sub000/middleware"
	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"
	"github.com/tlord101/VanTutor-sub000/services"
)

func main() {
	// Load .env first so LoadConfig sees the variables.
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: [Main] No .env file found, relying on existing environment.")
	}

	// Load application configuration
	config.LoadConfig()

	// Initialize database connection
	db, err := database.Init()
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to initialize database: %v", err)
	}

	// Auto-migrate database schema
	runMigrations(db)

	// Initialize Repositories
	profileRepo := repository.NewProfileRepository(db)
	chatRepo := repository.NewChatRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	examRepo := repository.NewExamRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	ledgerStore := repository.NewLedgerStore(db)
	log.Println("INFO: [Main] Repositories initialized.")

	// Initialize Services
	ledgerService := services.NewLedgerService(ledgerStore)
	authService := services.NewAuthService(profileRepo)
	onboardingService := services.NewOnboardingService(ledgerService)
	chatService := services.NewChatService(chatRepo)
	notificationService := services.NewNotificationService(notificationRepo, profileRepo)
	lessonService := services.NewLessonService(lessonRepo, ledgerService, notificationService)
	examService := services.NewExamService(examRepo, ledgerService, notificationService)
	leaderboardService := services.NewLeaderboardService(leaderboardRepo)
	limiterPool := services.NewLimiterPool()
	log.Println("INFO: [Main] Services initialized.")

	// Daily streak reminder sweep.
	startStreakReminderLoop(notificationService)

	// Initialize API Handler with all dependencies
	apiHandler := api.NewAPIHandler(
		profileRepo,
		authService,
		onboardingService,
		chatService,
		lessonService,
		examService,
		ledgerService,
		leaderboardService,
		notificationService,
		limiterPool,
	)
	log.Println("INFO: [Main] API Handler initialized.")

	// Create Gin engine
	r := gin.Default()
	r.SetTrustedProxies(nil)

	// Register middlewares
	r.Use(middleware.Logger())
	r.Use(middleware.Cors())
	log.Println("INFO: [Main] Middlewares registered.")

	// Register routes
	registerRoutes(r, apiHandler)
	log.Println("INFO: [Main] Routes registered.")

	// Start the server
	serverPort := ":" + config.AppConfig.Server.Port
	if config.AppConfig.Server.Port == "" {
		log.Println("WARN: [Main] Server port not configured, using default :8080.")
		serverPort = ":8080"
	}
	log.Printf("INFO: [Main] Starting server on port %s", serverPort)
	if err := r.Run(serverPort); err != nil {
		log.Fatalf("FATAL: [Main] Server failed to start: %v", err)
	}
}

func runMigrations(db *gorm.DB) {
	log.Println("INFO: [Main] Running database migrations...")
	err := db.AutoMigrate(
		&models.UserProfile{},
		&models.OverallLeaderboardEntry{},
		&models.WeeklyLeaderboardEntry{},
		&models.ChatMessage{},
		&models.Lesson{},
		&models.Exam{},
		&models.ExamQuestion{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to auto-migrate database: %v", err)
	}
	log.Println("INFO: [Main] Database migration completed.")
}

// startStreakReminderLoop runs the streak reminder sweep once per day.
func startStreakReminderLoop(notificationService services.NotificationService) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := notificationService.SendStreakReminders(); err != nil {
				log.Printf("ERROR: [Main] Streak reminder sweep failed: %v", err)
			}
		}
	}()
	log.Println("INFO: [Main] Streak reminder loop started.")
}

func registerRoutes(r *gin.Engine, handler *api.APIHandler) {
	// API route group
	apiGroup := r.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register", handler.RegisterHandler)
			authGroup.POST("/login", handler.LoginHandler)
		}

		// Everything else requires a valid bearer token.
		authed := apiGroup.Group("")
		authed.Use(middleware.Auth())
		{
			authed.GET("/init", handler.InitHandler)
			authed.GET("/limits", handler.LimitStatusHandler)

			authed.GET("/onboarding/questions", handler.OnboardingQuestionsHandler)
			authed.POST("/onboarding", handler.OnboardingSubmitHandler)

			authed.GET("/profile", handler.ProfileHandler)
			authed.PATCH("/profile", handler.UpdateProfileHandler)

			authed.POST("/chat", handler.ChatHandler)
			authed.GET("/chat/history", handler.ChatHistoryHandler)

			lessonGroup := authed.Group("/lessons")
			{
				lessonGroup.POST("/generate", handler.GenerateLessonHandler)
				lessonGroup.GET("", handler.ListLessonsHandler)
				lessonGroup.POST("/:lessonID/complete", handler.CompleteLessonHandler)
			}

			examGroup := authed.Group("/exams")
			{
				examGroup.POST("/generate", handler.GenerateExamHandler)
				examGroup.GET("", handler.ListExamsHandler)
				examGroup.POST("/:examID/submit", handler.SubmitExamHandler)
			}

			leaderboardGroup := authed.Group("/leaderboards")
			{
				leaderboardGroup.GET("/overall", handler.OverallLeaderboardHandler)
				leaderboardGroup.GET("/weekly", handler.WeeklyLeaderboardHandler)
			}

			notificationGroup := authed.Group("/notifications")
			{
				notificationGroup.GET("", handler.ListNotificationsHandler)
				notificationGroup.POST("/:notificationID/read", handler.MarkNotificationReadHandler)
			}
		}
	}
}
