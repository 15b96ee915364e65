package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/broadcast-link/internal/api/middleware"
	"github.com/d60-Lab/broadcast-link/internal/model"
	"github.com/d60-Lab/broadcast-link/internal/repository"
	"github.com/d60-Lab/broadcast-link/internal/service"
	"github.com/d60-Lab/broadcast-link/pkg/response"
)

type broadcastRequest struct {
	BlogID     int64   `json:"blog_id" binding:"required,gt=0"`
	PostID     int64   `json:"post_id" binding:"required,gt=0"`
	ChildBlogs []int64 `json:"child_blogs" binding:"required,min=1,dive,gt=0"`
}

// Broadcast 把父文章推送到若干子博客并建立双向链接
// @Summary 广播文章
// @Tags 广播
// @Accept json
// @Produce json
// @Param request body broadcastRequest true "广播参数"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/broadcast [post]
func (h *Handler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cc := middleware.CacheFrom(c)
	children, err := h.svc.Broadcast(c.Request.Context(), cc, req.BlogID, req.PostID, req.ChildBlogs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBroadcastToSelf):
			response.BadRequest(c, err.Error())
		case errors.Is(err, repository.ErrPostNotFound):
			response.NotFound(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Success(c, gin.H{"children": children})
}

type createPostRequest struct {
	BlogID  int64  `json:"blog_id" binding:"required,gt=0"`
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
	Status  string `json:"status" binding:"omitempty,poststatus"`
}

// CreatePost 新建文章
// @Summary 新建文章
// @Tags 文章
// @Accept json
// @Produce json
// @Param request body createPostRequest true "文章内容"
// @Success 200 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Status == "" {
		req.Status = model.PostStatusPublish
	}
	post := &model.Post{BlogID: req.BlogID, Title: req.Title, Content: req.Content, Status: req.Status}
	if err := h.posts.Create(c.Request.Context(), post); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"blog_id": post.BlogID, "post_id": post.ID})
}

type updatePostRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

// UpdatePost 更新文章；更新传播到子文章由外发盒异步完成
// @Summary 更新文章（异步传播到子文章）
// @Tags 文章
// @Accept json
// @Produce json
// @Param blog_id path int true "博客ID"
// @Param post_id path int true "文章ID"
// @Param request body updatePostRequest true "更新内容"
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts/{post_id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.UpdatePost(c.Request.Context(), blogID, postID, req.Title, req.Content); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// TrashPost 文章移入回收站，状态传播到已链接子文章
// @Summary 回收文章
// @Tags 文章
// @Param blog_id path int true "博客ID"
// @Param post_id path int true "文章ID"
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts/{post_id}/trash [post]
func (h *Handler) TrashPost(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	if err := h.svc.Trash(c.Request.Context(), middleware.CacheFrom(c), blogID, postID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// RestorePost 从回收站恢复，状态传播到已链接子文章
// @Summary 恢复文章
// @Tags 文章
// @Param blog_id path int true "博客ID"
// @Param post_id path int true "文章ID"
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts/{post_id}/restore [post]
func (h *Handler) RestorePost(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	if err := h.svc.Restore(c.Request.Context(), middleware.CacheFrom(c), blogID, postID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// DeletePost 物理删除文章并摘除两侧链接
// @Summary 删除文章
// @Tags 文章
// @Param blog_id path int true "博客ID"
// @Param post_id path int true "文章ID"
// @Param delete_children query bool false "连同子文章一起删除"
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts/{post_id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	deleteChildren := c.Query("delete_children") == "true"
	if err := h.svc.Delete(c.Request.Context(), middleware.CacheFrom(c), blogID, postID, deleteChildren); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}
