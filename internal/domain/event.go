// Package domain 定义了房间生命周期核心使用的数据结构。
package domain

// 中继推送的房间事件类型。离开类事件没有独立常量，
// 其 Type 直接取离开原因的名称，见 LeaveReasons。
const (
	EventLoad   = "Load"
	EventCreate = "Create"
	EventJoin   = "Join"
	EventPlayer = "Player"
	EventGame   = "Game"
	EventEvent  = "Event"
	EventSave   = "Save"
	EventClose  = "Close"
)

// LeaveReasons 枚举了所有离开原因及其编码。
// 离开类事件要求 Type 与 Reason 编码一致。
var LeaveReasons = map[string]string{
	"ClientDisconnect":        "0",
	"ClientTimeoutDisconnect": "1",
	"ManagedDisconnect":       "2",
	"ServerDisconnect":        "3",
	"TimeoutDisconnect":       "4",
	"ConnectTimeout":          "5",
	"SwitchRoom":              "100",
	"LeaveRequest":            "101",
	"PlayerTtlTimedOut":       "102",
	"PeerLastTouchTimedout":   "103",
	"PluginRequest":           "104",
	"PluginFailedJoin":        "105",
}

// ReasonPlayerTTLTimedOut 席位保留超时，唯一允许作用于已离线席位的离开原因。
const ReasonPlayerTTLTimedOut = "PlayerTtlTimedOut"

// invalidLeaveTypes 这些原因不会经由中继以 webhook 形式送达：
// 客户端本地断开路径或加入失败路径，视为非法输入。
var invalidLeaveTypes = map[string]bool{
	"ManagedDisconnect": true,
	"ConnectTimeout":    true,
	"PluginFailedJoin":  true,
}

// IsLeaveType 判断事件类型是否属于离开类事件。
func IsLeaveType(t string) bool {
	_, ok := LeaveReasons[t]
	return ok
}

// IsInvalidLeaveType 判断离开类型是否属于被拒绝的枚举值。
func IsInvalidLeaveType(t string) bool {
	return invalidLeaveTypes[t]
}

// WebhookEvent 中继送达的事件信封。
// 可选字段使用指针以区分 “缺失” 与 “零值”，校验器依赖这一点。
type WebhookEvent struct {
	AppID      string `json:"AppId"`
	AppVersion string `json:"AppVersion"`
	Region     string `json:"Region"`
	GameID     string `json:"GameId"`
	Type       string `json:"Type"`

	ActorNr  int    `json:"ActorNr,omitempty"`
	UserID   string `json:"UserId,omitempty"`
	Username string `json:"Username,omitempty"`
	Nickname string `json:"Nickname,omitempty"`

	ActorCount *int  `json:"ActorCount,omitempty"`
	ActorList  []int `json:"ActorList,omitempty"`

	Properties map[string]interface{} `json:"Properties,omitempty"`
	Data       map[string]interface{} `json:"Data,omitempty"`
	State      string                 `json:"State,omitempty"`

	CreateOptions     *RoomOptions `json:"CreateOptions,omitempty"`
	CreateIfNotExists *bool        `json:"CreateIfNotExists,omitempty"`

	Inactive *bool  `json:"Inactive,omitempty"`
	Reason   string `json:"Reason,omitempty"`
}

// DisplayName 返回事件携带的展示名，Username 优先于 Nickname。
func (ev *WebhookEvent) DisplayName() string {
	if ev.Username != "" {
		return ev.Username
	}
	return ev.Nickname
}
