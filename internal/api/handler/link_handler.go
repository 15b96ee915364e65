package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/broadcast-link/internal/api/middleware"
	"github.com/d60-Lab/broadcast-link/internal/linkdata"
	"github.com/d60-Lab/broadcast-link/internal/service"
	"github.com/d60-Lab/broadcast-link/pkg/response"
)

type linkView struct {
	Parent   *linkdata.PostRef `json:"parent,omitempty"`
	Children map[int64]int64   `json:"children"`
}

func newLinkView(bd *linkdata.BroadcastData) linkView {
	v := linkView{Children: bd.LinkedChildren()}
	if parent, ok := bd.LinkedParent(); ok {
		v.Parent = &parent
	}
	return v
}

// GetLinks 查看某文章的广播链路数据
// @Summary 查询链接
// @Tags 链接
// @Param blog_id path int true "博客ID"
// @Param post_id path int true "文章ID"
// @Success 200 {object} response.Response{data=linkView}
// @Router /api/v1/blogs/{blog_id}/posts/{post_id}/links [get]
func (h *Handler) GetLinks(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	bd, err := middleware.CacheFrom(c).GetFor(c.Request.Context(), blogID, postID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, newLinkView(bd))
}

// ListPosts 文章列表页，附带每篇的广播状态。
// 先 ExpectPosts 预热缓存，整页只发一次批量查询。
// @Summary 文章列表（含广播状态）
// @Tags 文章
// @Param blog_id path int true "博客ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	blogID, err := strconv.ParseInt(c.Param("blog_id"), 10, 64)
	if err != nil || blogID <= 0 {
		response.BadRequest(c, "invalid blog_id")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	posts, err := h.posts.List(c.Request.Context(), blogID, (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	cc := middleware.CacheFrom(c)
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	cc.ExpectPosts(blogID, ids)

	type postView struct {
		PostID int64    `json:"post_id"`
		Title  string   `json:"title"`
		Status string   `json:"status"`
		Links  linkView `json:"links"`
	}
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		bd, err := cc.GetFor(c.Request.Context(), blogID, p.ID)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		views = append(views, postView{PostID: p.ID, Title: p.Title, Status: p.Status, Links: newLinkView(bd)})
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": views})
}

// UnlinkChild 解除父文章与某个子博客的链接（双侧）
// @Summary 解除子链接
// @Tags 链接
// @Param blog_id path int true "父博客ID"
// @Param post_id path int true "父文章ID"
// @Param child_blog_id path int true "子博客ID"
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts/{post_id}/links/children/{child_blog_id} [delete]
func (h *Handler) UnlinkChild(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	childBlog, err := strconv.ParseInt(c.Param("child_blog_id"), 10, 64)
	if err != nil || childBlog <= 0 {
		response.BadRequest(c, "invalid child_blog_id")
		return
	}
	if err := h.svc.UnlinkChild(c.Request.Context(), middleware.CacheFrom(c), blogID, postID, childBlog); err != nil {
		if errors.Is(err, service.ErrNotLinked) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// UnlinkChildren 解除父文章的全部子链接
// @Summary 解除全部子链接
// @Tags 链接
// @Param blog_id path int true "父博客ID"
// @Param post_id path int true "父文章ID"
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts/{post_id}/links/children [delete]
func (h *Handler) UnlinkChildren(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	if err := h.svc.UnlinkChildren(c.Request.Context(), middleware.CacheFrom(c), blogID, postID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// UnlinkParent 子文章主动脱离父文章（双侧）
// @Summary 解除父链接
// @Tags 链接
// @Param blog_id path int true "子博客ID"
// @Param post_id path int true "子文章ID"
// @Success 200 {object} response.Response
// @Router /api/v1/blogs/{blog_id}/posts/{post_id}/links/parent [delete]
func (h *Handler) UnlinkParent(c *gin.Context) {
	blogID, postID, ok := pairParams(c)
	if !ok {
		response.BadRequest(c, "invalid blog_id or post_id")
		return
	}
	if err := h.svc.UnlinkParent(c.Request.Context(), middleware.CacheFrom(c), blogID, postID); err != nil {
		if errors.Is(err, service.ErrNotLinked) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// GetEquivalent 解析父文章在某子博客上的等价子文章
// @Summary 等价文章解析
// @Tags 链接
// @Param parent_blog_id query int true "父博客ID"
// @Param parent_post_id query int true "父文章ID"
// @Param child_blog_id query int true "子博客ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/equivalent [get]
func (h *Handler) GetEquivalent(c *gin.Context) {
	parentBlog, err1 := strconv.ParseInt(c.Query("parent_blog_id"), 10, 64)
	parentPost, err2 := strconv.ParseInt(c.Query("parent_post_id"), 10, 64)
	childBlog, err3 := strconv.ParseInt(c.Query("child_blog_id"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		response.BadRequest(c, "parent_blog_id, parent_post_id and child_blog_id are required")
		return
	}
	childPost, found, err := middleware.ResolverFrom(c).Get(c.Request.Context(), parentBlog, parentPost, childBlog)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !found {
		response.NotFound(c, "no equivalent post on that blog")
		return
	}
	response.Success(c, gin.H{"child_blog_id": childBlog, "child_post_id": childPost})
}
