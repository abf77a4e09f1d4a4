package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hakraj/exboard/internal/config"
	"github.com/hakraj/exboard/internal/handler"
	"github.com/hakraj/exboard/internal/middleware"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/response"
	"github.com/hakraj/exboard/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Exam        *handler.ExamHandler
	StudentExam *handler.StudentExamHandler
	User        *handler.UserHandler
	Analytics   *handler.AnalyticsHandler
	Monitor     *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the credential-bearing routes (30 per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/forgot-password", authLimiter.Middleware(), handlers.Auth.ForgotPassword)
		auth.POST("/reset-password",
			authLimiter.Middleware(),
			middleware.RequireResetToken(authService),
			handlers.Auth.ResetPassword)

		// Authenticated profile routes
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
		auth.PUT("/me", middleware.RequireAuth(authService), handlers.Auth.UpdateProfile)
	}

	// ─── 2. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	{
		studentAPI.GET("/exams",
			middleware.RequireAuth(authService),
			handlers.StudentExam.ListExams)
		studentAPI.POST("/exams/:exam_id/start",
			middleware.RequireAuth(authService),
			authLimiter.Middleware(),
			handlers.StudentExam.StartAttempt)

		// Attempt routes open only to the exam-scoped token bound to the
		// :attempt_id in the path.
		studentAPI.GET("/attempts/:attempt_id",
			middleware.RequireExamToken(authService),
			handlers.StudentExam.GetAttempt)
		studentAPI.PUT("/attempts/:attempt_id/responses/:question_id",
			middleware.RequireExamToken(authService),
			handlers.StudentExam.UpsertResponse)
		studentAPI.PUT("/attempts/:attempt_id/complete",
			middleware.RequireExamToken(authService),
			handlers.StudentExam.CompleteAttempt)
	}

	// ─── 3. Admin Group (JWT + Role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.GET("/exams", handlers.Exam.List)
		adminAPI.POST("/exams", handlers.Exam.Create)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.Get)
		adminAPI.PUT("/exams/:exam_id", handlers.Exam.Update)
		adminAPI.DELETE("/exams/:exam_id", handlers.Exam.Delete)
		adminAPI.POST("/exams/:exam_id/publish", handlers.Exam.Publish)

		adminAPI.POST("/exams/:exam_id/questions", handlers.Exam.AddQuestion)
		adminAPI.PUT("/questions/:question_id", handlers.Exam.UpdateQuestion)
		adminAPI.DELETE("/questions/:question_id", handlers.Exam.DeleteQuestion)

		adminAPI.GET("/users", handlers.User.List)
		adminAPI.GET("/users/:user_id", handlers.User.Get)
		adminAPI.DELETE("/users/:user_id", handlers.User.Delete)
		adminAPI.POST("/users/:user_id/promote", handlers.User.Promote)

		adminAPI.GET("/analytics", handlers.Analytics.Dashboard)
		adminAPI.GET("/results", handlers.Analytics.Results)
	}

	// ─── 4. WebSocket Group (Admin WS Auth via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		ws.GET("/admin/exams/:exam_id/monitor", handlers.Monitor.MonitorExam)
	}

	return router
}
