package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/services"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/utils"
)

type HandlerManager struct {
	authHandler    *AuthHandler
	courseHandler  *CourseHandler
	noteHandler    *NoteHandler
	adminHandler   *AdminHandler
	authMiddleware *JWTAuthMiddleware

	serviceManager services.ServiceManager
}

func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		authHandler:    NewAuthHandler(serviceManager.Auth(), logger),
		courseHandler:  NewCourseHandler(serviceManager.Course(), serviceManager.Export(), logger),
		noteHandler:    NewNoteHandler(serviceManager.Note(), logger),
		adminHandler:   NewAdminHandler(serviceManager.Admission(), logger),
		authMiddleware: NewJWTAuthMiddleware(serviceManager.Auth()),
		serviceManager: serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	v1 := router.Group("/api/v1")

	// Public auth endpoints
	auth := v1.Group("/auth")
	{
		auth.POST("/register", hm.authHandler.Register)
		auth.POST("/login", hm.authHandler.Login)
		auth.POST("/refresh", hm.authHandler.Refresh)
		auth.GET("/me", hm.authMiddleware.AuthMiddleware(), hm.authHandler.Me)
	}

	// Authenticated API
	api := v1.Group("")
	api.Use(hm.authMiddleware.AuthMiddleware())
	{
		courses := api.Group("/courses")
		{
			// Create/export courses - Teachers only (admins pass every gate)
			courses.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.courseHandler.CreateCourse)
			courses.GET("/:id/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.courseHandler.ExportCourse)

			// Joining is a student action
			courses.POST("/:id/join", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.courseHandler.JoinCourse)

			// View courses - All authenticated users
			courses.GET("", hm.courseHandler.ListCourses)
			courses.GET("/:id", hm.courseHandler.GetCourse)
			courses.GET("/:id/members", hm.courseHandler.GetCourseMembers)
			courses.GET("/:id/notes", hm.noteHandler.ListCourseNotes)
		}

		notes := api.Group("/notes")
		{
			notes.GET("", hm.noteHandler.ListNotes)
			notes.POST("", hm.noteHandler.CreateNote)
			notes.GET("/:id", hm.noteHandler.GetNote)
			notes.PUT("/:id", hm.noteHandler.UpdateNote)
			notes.GET("/:id/thread", hm.noteHandler.GetNoteThread)
		}

		admin := api.Group("/admin")
		admin.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			admin.GET("/teacher-applications", hm.adminHandler.ListApplications)
			admin.GET("/teacher-applications/:id", hm.adminHandler.GetApplication)
			admin.PUT("/teacher-applications/:id/review", hm.adminHandler.ReviewApplication)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
