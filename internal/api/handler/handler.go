package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/broadcast-link/config"
	"github.com/d60-Lab/broadcast-link/internal/check"
	"github.com/d60-Lab/broadcast-link/internal/repository"
	"github.com/d60-Lab/broadcast-link/internal/service"
)

// Handler HTTP 处理器集合
type Handler struct {
	cfg    *config.Config
	svc    service.BroadcastService
	posts  repository.PostRepository
	runner *check.Runner
}

func New(cfg *config.Config, svc service.BroadcastService, posts repository.PostRepository, runner *check.Runner) *Handler {
	return &Handler{cfg: cfg, svc: svc, posts: posts, runner: runner}
}

// pairParams 解析路径里的 blog_id / post_id
func pairParams(c *gin.Context) (int64, int64, bool) {
	blogID, err1 := strconv.ParseInt(c.Param("blog_id"), 10, 64)
	postID, err2 := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err1 != nil || err2 != nil || blogID <= 0 || postID <= 0 {
		return 0, 0, false
	}
	return blogID, postID, true
}
