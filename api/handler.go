package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tlord101/VanTutor-sub000/middleware"
	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"
	"github.com/tlord101/VanTutor-sub000/services"
	"github.com/tlord101/VanTutor-sub000/utils"
)

// APIHandler holds all dependencies for API handlers, such as repositories and services.
type APIHandler struct {
	profileRepo         repository.ProfileRepository
	authService         services.AuthService
	onboardingService   services.OnboardingService
	chatService         services.ChatService
	lessonService       services.LessonService
	examService         services.ExamService
	ledgerService       services.LedgerService
	leaderboardService  services.LeaderboardService
	notificationService services.NotificationService
	limiterPool         *services.LimiterPool
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(
	profileRepo repository.ProfileRepository,
	authService services.AuthService,
	onboardingService services.OnboardingService,
	chatService services.ChatService,
	lessonService services.LessonService,
	examService services.ExamService,
	ledgerService services.LedgerService,
	leaderboardService services.LeaderboardService,
	notificationService services.NotificationService,
	limiterPool *services.LimiterPool,
) *APIHandler {
	return &APIHandler{
		profileRepo:         profileRepo,
		authService:         authService,
		onboardingService:   onboardingService,
		chatService:         chatService,
		lessonService:       lessonService,
		examService:         examService,
		ledgerService:       ledgerService,
		leaderboardService:  leaderboardService,
		notificationService: notificationService,
		limiterPool:         limiterPool,
	}
}

// loadProfile resolves the authenticated user's profile or writes the error
// response itself, returning nil.
func (h *APIHandler) loadProfile(c *gin.Context) *models.UserProfile {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		utils.SendJSONError(c, http.StatusUnauthorized, "Authentication required.", nil)
		return nil
	}
	profile, err := h.profileRepo.GetProfileByID(userID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load user profile.", err)
		return nil
	}
	if profile == nil {
		utils.SendJSONError(c, http.StatusNotFound, "User profile not found.", nil)
		return nil
	}
	return profile
}

// --- Auth ---

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

// RegisterHandler creates a new account.
func (h *APIHandler) RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}
	profile, err := h.authService.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			utils.SendJSONError(c, http.StatusConflict, err.Error(), nil)
			return
		}
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": profile})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler verifies credentials and returns a bearer token.
func (h *APIHandler) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}
	token, profile, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			utils.SendJSONError(c, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		utils.SendJSONError(c, http.StatusInternalServerError, "Login failed.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": profile})
}

// --- Session bootstrap ---

// InitHandler returns everything the client needs to bootstrap a session.
func (h *APIHandler) InitHandler(c *gin.Context) {
	profile := h.loadProfile(c)
	if profile == nil {
		return
	}
	unread, err := h.notificationService.CountUnread(profile.UserID)
	if err != nil {
		log.Printf("WARN: [API] Failed to count unread notifications for userID %s: %v", profile.UserID, err)
		unread = 0
	}
	c.JSON(http.StatusOK, models.InitResponse{
		UserID:              profile.UserID,
		DisplayName:         profile.DisplayName,
		PlanTier:            profile.PlanTier,
		OnboardingCompleted: profile.OnboardingCompleted,
		TotalLessonXP:       profile.TotalLessonXP,
		TotalTestXP:         profile.TotalTestXP,
		CurrentStreakDays:   profile.CurrentStreakDays,
		UnreadNotifications: int(unread),
	})
}

// --- Onboarding ---

// OnboardingQuestionsHandler returns the fixed questionnaire.
func (h *APIHandler) OnboardingQuestionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": h.onboardingService.GetQuestions()})
}

// OnboardingSubmitHandler applies the submitted answers to the profile.
func (h *APIHandler) OnboardingSubmitHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var answers services.OnboardingAnswers
	if err := c.ShouldBindJSON(&answers); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}
	if err := h.onboardingService.Submit(userID, answers); err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			utils.SendJSONError(c, http.StatusNotFound, "User profile not found.", nil)
			return
		}
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Onboarding completed."})
}

// --- Profile ---

// ProfileHandler returns the authenticated user's profile.
func (h *APIHandler) ProfileHandler(c *gin.Context) {
	profile := h.loadProfile(c)
	if profile == nil {
		return
	}
	c.JSON(http.StatusOK, profile)
}

type updateProfileRequest struct {
	DisplayName  *string `json:"display_name"`
	Level        *string `json:"level"`
	Subjects     *string `json:"subjects"`
	LearningGoal *string `json:"learning_goal"`
	PlanTier     *string `json:"plan_tier"`
}

// UpdateProfileHandler applies a partial profile update. A display-name
// change also propagates to the leaderboards.
func (h *APIHandler) UpdateProfileHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}

	update := services.ProfileFieldUpdate{
		DisplayName:  req.DisplayName,
		Level:        req.Level,
		Subjects:     req.Subjects,
		LearningGoal: req.LearningGoal,
	}
	if req.PlanTier != nil {
		tier := models.PlanTier(*req.PlanTier)
		switch tier {
		case models.PlanTierFree, models.PlanTierPlus, models.PlanTierPro:
			update.PlanTier = &tier
		default:
			utils.SendJSONError(c, http.StatusBadRequest, fmt.Sprintf("Unknown plan tier '%s'.", *req.PlanTier), nil)
			return
		}
	}

	if err := h.ledgerService.UpdateProfileFields(userID, update); err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			utils.SendJSONError(c, http.StatusNotFound, "User profile not found.", nil)
			return
		}
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated."})
}

// --- Chat ---

type chatRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

// ChatHandler streams a tutor reply over SSE. The call is gated by the
// user's plan-tier rate limit; denials and upstream failures arrive as SSE
// error events so the client handles one response shape.
func (h *APIHandler) ChatHandler(c *gin.Context) {
	profile := h.loadProfile(c)
	if profile == nil {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	result := h.limiterPool.AttemptAPICall(c.Request.Context(), profile.UserID, profile.PlanTier, func(ctx context.Context) error {
		_, err := h.chatService.StreamTutorReply(ctx, profile, req.Subject, req.Message, c.Writer)
		return err
	})
	if !result.Success {
		sendSSEEvent(c, "error", gin.H{"message": result.Message})
		return
	}
	sendSSEEvent(c, "done", gin.H{})
}

// ChatHistoryHandler returns the persisted conversation, oldest first.
func (h *APIHandler) ChatHistoryHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit := queryInt(c, "limit", 50)
	messages, err := h.chatService.GetChatHistory(userID, limit)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load chat history.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// --- Lessons ---

type generateRequest struct {
	Subject string `json:"subject" binding:"required"`
	Topic   string `json:"topic" binding:"required"`
}

// GenerateLessonHandler creates an AI-generated lesson, gated by the user's
// rate limit.
func (h *APIHandler) GenerateLessonHandler(c *gin.Context) {
	profile := h.loadProfile(c)
	if profile == nil {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}

	var lesson *models.Lesson
	result := h.limiterPool.AttemptAPICall(c.Request.Context(), profile.UserID, profile.PlanTier, func(ctx context.Context) error {
		var genErr error
		lesson, genErr = h.lessonService.GenerateLesson(ctx, profile, req.Subject, req.Topic)
		return genErr
	})
	if !result.Success {
		utils.SendJSONError(c, guardedCallStatus(result), result.Message, nil)
		return
	}
	c.JSON(http.StatusCreated, lesson)
}

// ListLessonsHandler returns the user's lessons, newest first.
func (h *APIHandler) ListLessonsHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	lessons, err := h.lessonService.GetLessonsForUser(userID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load lessons.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}

// CompleteLessonHandler marks a lesson completed and awards XP.
func (h *APIHandler) CompleteLessonHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	lessonID := c.Param("lessonID")
	newStreak, xpAwarded, err := h.lessonService.CompleteLesson(userID, lessonID)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_streak_days": newStreak, "xp_awarded": xpAwarded})
}

// --- Exams ---

// GenerateExamHandler creates an AI-generated multiple-choice exam, gated by
// the user's rate limit. Answer keys are stripped from the response.
func (h *APIHandler) GenerateExamHandler(c *gin.Context) {
	profile := h.loadProfile(c)
	if profile == nil {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}

	var exam *models.Exam
	result := h.limiterPool.AttemptAPICall(c.Request.Context(), profile.UserID, profile.PlanTier, func(ctx context.Context) error {
		var genErr error
		exam, genErr = h.examService.GenerateExam(ctx, profile, req.Subject, req.Topic)
		return genErr
	})
	if !result.Success {
		utils.SendJSONError(c, guardedCallStatus(result), result.Message, nil)
		return
	}
	c.JSON(http.StatusCreated, exam)
}

// ListExamsHandler returns the user's exams, newest first.
func (h *APIHandler) ListExamsHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	exams, err := h.examService.GetExamsForUser(userID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load exams.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exams": exams})
}

type submitExamRequest struct {
	Answers []int `json:"answers" binding:"required"`
}

// SubmitExamHandler grades a submission and awards XP per correct answer.
func (h *APIHandler) SubmitExamHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	examID := c.Param("examID")
	var req submitExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error(), err)
		return
	}
	result, err := h.examService.SubmitExam(userID, examID, req.Answers)
	if err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Leaderboards ---

// OverallLeaderboardHandler returns the all-time leaderboard.
func (h *APIHandler) OverallLeaderboardHandler(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	entries, err := h.leaderboardService.TopOverall(limit)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load leaderboard.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// WeeklyLeaderboardHandler returns the leaderboard for the current ISO week.
func (h *APIHandler) WeeklyLeaderboardHandler(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	weekID, entries, err := h.leaderboardService.TopWeekly(limit)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load leaderboard.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"week_id": weekID, "entries": entries})
}

// --- Notifications ---

// ListNotificationsHandler returns the user's notifications, newest first.
// Pass ?unread=true to filter to unread only.
func (h *APIHandler) ListNotificationsHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	unreadOnly := c.Query("unread") == "true"
	notifications, err := h.notificationService.ListNotifications(userID, unreadOnly)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load notifications.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkNotificationReadHandler acknowledges a notification.
func (h *APIHandler) MarkNotificationReadHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	notificationID := c.Param("notificationID")
	if err := h.notificationService.MarkRead(notificationID, userID); err != nil {
		utils.SendJSONError(c, http.StatusNotFound, "Notification not found.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read."})
}

// --- Rate limit status ---

// LimitStatusHandler reports whether the user's next AI call would be
// admitted, without consuming any quota.
func (h *APIHandler) LimitStatusHandler(c *gin.Context) {
	profile := h.loadProfile(c)
	if profile == nil {
		return
	}
	admission := h.limiterPool.CheckOnly(profile.UserID, profile.PlanTier)
	c.JSON(http.StatusOK, admission)
}

// --- helpers ---

// guardedCallStatus maps a failed guarded AI call to a status code: upstream
// failures are 502, everything else is a rate-limit denial.
func guardedCallStatus(result services.CallResult) int {
	if result.Message == services.GenericAIFailureMessage {
		return http.StatusBadGateway
	}
	return http.StatusTooManyRequests
}

func sendSSEEvent(c *gin.Context, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: [API] Failed to marshal SSE %s event: %v", event, err)
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Writer.Flush()
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
