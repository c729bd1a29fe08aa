package redisstate

import (
	"encoding/json"
	"fmt"
	"strconv"

	"room-webhooks/internal/domain"
)

// 房间记录与 hash 字段集之间的编解码。
// 所有结构化字段 JSON 编码为字符串，计数字段用十进制串。

func encodeRoomRecord(rec *domain.RoomRecord) (map[string]interface{}, error) {
	fields := map[string]interface{}{
		fieldNextActorNr: strconv.Itoa(rec.NextActorNr),
		fieldState:       rec.State,
		fieldVersion:     strconv.FormatInt(rec.Version, 10),
	}
	structured := map[string]interface{}{
		fieldEnv:         rec.Env,
		fieldOptions:     rec.Options,
		fieldCreation:    rec.Creation,
		fieldActors:      rec.Actors,
		fieldJoinEvents:  rec.JoinEvents,
		fieldLeaveEvents: rec.LeaveEvents,
		fieldLoadEvents:  rec.LoadEvents,
		fieldSaveEvents:  rec.SaveEvents,
	}
	for name, value := range structured {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", name, err)
		}
		fields[name] = string(raw)
	}
	return fields, nil
}

func decodeRoomRecord(gameID string, fields map[string]string) (*domain.RoomRecord, error) {
	rec := &domain.RoomRecord{
		GameID:      gameID,
		State:       fields[fieldState],
		Actors:      map[int]domain.Actor{},
		JoinEvents:  map[string]domain.JoinEvent{},
		LeaveEvents: map[string]domain.LeaveEvent{},
		LoadEvents:  map[string]domain.LoadEvent{},
		SaveEvents:  map[string]domain.SaveEvent{},
	}

	var err error
	if raw, ok := fields[fieldNextActorNr]; ok {
		if rec.NextActorNr, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("decode field %s '%s': %w", fieldNextActorNr, raw, err)
		}
	}
	if raw, ok := fields[fieldVersion]; ok {
		if rec.Version, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("decode field %s '%s': %w", fieldVersion, raw, err)
		}
	}

	structured := map[string]interface{}{
		fieldEnv:         &rec.Env,
		fieldOptions:     &rec.Options,
		fieldCreation:    &rec.Creation,
		fieldActors:      &rec.Actors,
		fieldJoinEvents:  &rec.JoinEvents,
		fieldLeaveEvents: &rec.LeaveEvents,
		fieldLoadEvents:  &rec.LoadEvents,
		fieldSaveEvents:  &rec.SaveEvents,
	}
	for name, target := range structured {
		raw, ok := fields[name]
		if !ok || raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return nil, fmt.Errorf("decode field %s: %w", name, err)
		}
	}
	return rec, nil
}
