package domain

// GameListEntry 玩家游戏列表索引中的一条记录，对应一个 (玩家, 房间) 对。
// 玩家是房间创建者或活跃参与者时存在；真正离开（而非离线保留席位）
// 或房间关闭时删除。
type GameListEntry struct {
	ActorNr    int                    `json:"actorNr"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	// CreatorID 房间创建者，GetGameList 按创建者分组批量回查属性时使用
	CreatorID string       `json:"creatorId"`
	Env       EnvInfo      `json:"env"`
	Creation  CreationInfo `json:"creation"`
}
