package router

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/broadcast-link/config"
	_ "github.com/d60-Lab/broadcast-link/docs"
	"github.com/d60-Lab/broadcast-link/internal/api/handler"
	"github.com/d60-Lab/broadcast-link/internal/api/middleware"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/internal/repository"
)

// New 组装路由与中间件
func New(cfg *config.Config, h *handler.Handler, broadcasts repository.BroadcastRepository) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	r.Use(otelgin.Middleware("broadcast-link"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	registerValidations()

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.RequestCache(broadcasts))

	api.POST("/auth/login", h.Login)

	api.POST("/broadcast", h.Broadcast)
	api.GET("/equivalent", h.GetEquivalent)

	api.POST("/posts", h.CreatePost)
	blogs := api.Group("/blogs/:blog_id")
	{
		blogs.GET("/posts", h.ListPosts)
		blogs.PUT("/posts/:post_id", h.UpdatePost)
		blogs.DELETE("/posts/:post_id", h.DeletePost)
		blogs.POST("/posts/:post_id/trash", h.TrashPost)
		blogs.POST("/posts/:post_id/restore", h.RestorePost)

		blogs.GET("/posts/:post_id/links", h.GetLinks)
		blogs.DELETE("/posts/:post_id/links/parent", h.UnlinkParent)
		blogs.DELETE("/posts/:post_id/links/children", h.UnlinkChildren)
		blogs.DELETE("/posts/:post_id/links/children/:child_blog_id", h.UnlinkChild)
	}

	maint := api.Group("/maintenance")
	maint.Use(
		middleware.JWTAuth(cfg.Auth.JWTSecret),
		middleware.RateLimit(cfg.Check.StepRate, int(cfg.Check.StepRate)),
	)
	{
		maint.POST("/check", h.StartCheck)
		maint.POST("/check/:scan_id/step", h.StepCheck)
		maint.GET("/check/:scan_id", h.CheckResults)
	}

	return r
}

// registerValidations 注册自定义校验规则
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("poststatus", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case model.PostStatusPublish, model.PostStatusDraft, model.PostStatusTrash:
			return true
		}
		return false
	})
}
