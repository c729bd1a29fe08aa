package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"room-webhooks/internal/domain"
	"room-webhooks/internal/dto"
	"room-webhooks/internal/middleware"
	"room-webhooks/internal/service"
)

// WebhookHandler 封装了房间生命周期 webhook 的 HTTP 处理逻辑。
// 这是唯一的错误折叠边界：任何失败都以 {resultCode, message} 返回，
// HTTP 状态恒为 200，由结果码向中继传达语义。
type WebhookHandler struct {
	lifecycle *service.LifecycleService
	gameLists *service.GameListService
	validator *service.ArgsValidator
}

// NewWebhookHandler 创建 WebhookHandler 实例。
func NewWebhookHandler(lifecycle *service.LifecycleService, gameLists *service.GameListService, validator *service.ArgsValidator) *WebhookHandler {
	if lifecycle == nil {
		panic("LifecycleService cannot be nil for WebhookHandler")
	}
	if gameLists == nil {
		panic("GameListService cannot be nil for WebhookHandler")
	}
	if validator == nil {
		panic("ArgsValidator cannot be nil for WebhookHandler")
	}
	return &WebhookHandler{lifecycle: lifecycle, gameLists: gameLists, validator: validator}
}

// HandleRoomEvent 处理一个房间生命周期事件。
func (h *WebhookHandler) HandleRoomEvent(c *gin.Context) {
	callerID, ok := callerFromContext(c)
	if !ok {
		return
	}

	var ev domain.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		logrus.WithError(err).Warn("Handler.HandleRoomEvent: Malformed event envelope")
		c.JSON(http.StatusOK, dto.WebhookResponse{
			ResultCode: int(service.ResultMissingArgument),
			Message:    "malformed event envelope: " + err.Error(),
		})
		return
	}

	res := h.lifecycle.HandleEvent(c.Request.Context(), callerID, &ev)
	c.JSON(http.StatusOK, dto.WebhookResponse{
		ResultCode: int(res.Code),
		Message:    res.Message,
		State:      res.State,
	})
}

// HandleGetGameList 处理玩家游戏列表查询。
func (h *WebhookHandler) HandleGetGameList(c *gin.Context) {
	callerID, ok := callerFromContext(c)
	if !ok {
		return
	}

	var req dto.GameListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.HandleGetGameList: Malformed request")
		c.JSON(http.StatusOK, dto.GameListResponse{
			ResultCode: int(service.ResultMissingArgument),
			Message:    "malformed request: " + err.Error(),
		})
		return
	}

	if err := h.validator.ValidateGameListQuery(req.AppID, req.AppVersion, req.Region, req.UserID); err != nil {
		code, message := service.CollapseError(err)
		c.JSON(http.StatusOK, dto.GameListResponse{ResultCode: int(code), Message: message})
		return
	}
	if req.UserID != callerID {
		c.JSON(http.StatusOK, dto.GameListResponse{
			ResultCode: int(service.ResultAuthMismatch),
			Message:    "query user does not match authenticated caller",
		})
		return
	}

	data, err := h.gameLists.GetGameList(c.Request.Context(), req.AppID, req.UserID)
	if err != nil {
		code, message := service.CollapseError(err)
		logrus.WithError(err).WithField("user_id", req.UserID).Error("Handler.HandleGetGameList: Query failed")
		c.JSON(http.StatusOK, dto.GameListResponse{ResultCode: int(code), Message: message})
		return
	}

	c.JSON(http.StatusOK, dto.GameListResponse{ResultCode: int(service.ResultOK), Message: "ok", Data: data})
}

// callerFromContext 取出 Auth 中间件放入的操作者身份。
// 缺失说明中间件未运行，这是部署错误而非业务失败，返回 401。
func callerFromContext(c *gin.Context) (string, bool) {
	callerAny, exists := c.Get(middleware.CallerIDKey)
	if !exists {
		logrus.Warn("Handler: Caller ID not found in context, middleware missing or failed?")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Caller not authenticated"})
		return "", false
	}
	callerID, ok := callerAny.(string)
	if !ok || callerID == "" {
		logrus.Error("Handler: Caller ID in context is not a non-empty string")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error processing caller ID"})
		return "", false
	}
	return callerID, true
}
