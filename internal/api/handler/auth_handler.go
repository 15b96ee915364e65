package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/broadcast-link/pkg/auth"
	"github.com/d60-Lab/broadcast-link/pkg/response"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录，签发维护接口令牌
// @Summary 登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "账号口令"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Username != h.cfg.Auth.AdminUser ||
		!auth.CheckPassword(h.cfg.Auth.AdminPasswordHash, req.Password) {
		response.Unauthorized(c, "bad credentials")
		return
	}
	token, err := auth.IssueToken(h.cfg.Auth.JWTSecret, req.Username, h.cfg.Auth.TokenTTL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}
