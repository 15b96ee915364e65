package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/broadcast-link/internal/check"
	"github.com/d60-Lab/broadcast-link/pkg/response"
)

// StartCheck 发起一次一致性扫描
// @Summary 发起一致性扫描
// @Tags 维护
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/maintenance/check [post]
func (h *Handler) StartCheck(c *gin.Context) {
	state, err := h.runner.Start(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{
		"scan_id":   state.ID,
		"phase":     state.Phase,
		"remaining": state.Remaining(),
	})
}

// StepCheck 推进扫描一步（有限配额），由轮询反复调用直到 results
// @Summary 推进一致性扫描
// @Tags 维护
// @Security BearerAuth
// @Param scan_id path string true "扫描ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/maintenance/check/{scan_id}/step [post]
func (h *Handler) StepCheck(c *gin.Context) {
	state, err := h.runner.Step(c.Request.Context(), c.Param("scan_id"))
	if err != nil {
		if errors.Is(err, check.ErrScanNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{
		"scan_id":   state.ID,
		"phase":     state.Phase,
		"remaining": state.Remaining(),
		"anomalies": len(state.Anomalies),
	})
}

// CheckResults 扫描报告：按类别分组的异常明细
// @Summary 扫描报告
// @Tags 维护
// @Security BearerAuth
// @Param scan_id path string true "扫描ID"
// @Success 200 {object} response.Response{data=check.Report}
// @Failure 404 {object} response.Response
// @Router /api/v1/maintenance/check/{scan_id} [get]
func (h *Handler) CheckResults(c *gin.Context) {
	report, err := h.runner.Results(c.Request.Context(), c.Param("scan_id"))
	if err != nil {
		if errors.Is(err, check.ErrScanNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, report)
}
