package dto

import "room-webhooks/internal/service"

// WebhookResponse 所有房间事件 webhook 的统一响应。
// resultCode 0 表示成功；错误分类见 service.ResultCode。
type WebhookResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	State      string `json:"state,omitempty"`
}

// GameListRequest GetGameList 查询入口的请求体。
type GameListRequest struct {
	AppID      string `json:"AppId"`
	AppVersion string `json:"AppVersion"`
	Region     string `json:"Region"`
	UserID     string `json:"UserId"`
}

// GameListResponse GetGameList 的响应。
type GameListResponse struct {
	ResultCode int                             `json:"resultCode"`
	Message    string                          `json:"message"`
	Data       map[string]service.GameListItem `json:"data,omitempty"`
}
