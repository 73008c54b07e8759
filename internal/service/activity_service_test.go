package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
)

func TestActivityService_RecordAndFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.activity.Record(ctx, ActivityEvent{ActorID: "u1", Action: ActionLogin, IP: "10.0.0.1"})
	env.activity.Record(ctx, ActivityEvent{ActorID: "u2", Action: ActionLogin})
	env.activity.Record(ctx, ActivityEvent{ActorID: "u1", Action: ActionRegister, Details: strings.Repeat("d", activityDetailsMaxRunes+1)})
	env.activity.Record(ctx, ActivityEvent{Action: ActionSettingReset})

	list, total, err := env.activity.List(ctx, &dto.ActivityLogListRequest{ActorID: "u1"})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 2 {
		t.Fatalf("期望 u1 有 2 条记录，实际=%d", total)
	}
	if list[0].Action != ActionRegister {
		t.Errorf("应按时间倒序，实际首条=%s", list[0].Action)
	}
	if len(list[0].Details) != activityDetailsMaxRunes {
		t.Errorf("详情应截断，实际长度=%d", len(list[0].Details))
	}

	_, total, _ = env.activity.List(ctx, &dto.ActivityLogListRequest{Action: ActionLogin})
	if total != 2 {
		t.Errorf("按操作类型过滤期望 2 条，实际=%d", total)
	}

	all, _, _ := env.activity.List(ctx, &dto.ActivityLogListRequest{})
	if all[0].ActorID != nil {
		t.Error("无操作人的记录 actor_id 应为空")
	}
}

func TestActivityService_FailureIsSwallowed(t *testing.T) {
	env := newTestEnv()
	env.db.failLogCreate = errors.New("db down")

	env.activity.Record(context.Background(), ActivityEvent{ActorID: "u1", Action: ActionLogin})

	if len(env.db.actions()) != 0 {
		t.Error("写入失败时不应产生日志")
	}
}
