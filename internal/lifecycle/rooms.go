package lifecycle

import (
	"sort"
	"time"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
)

// RoomAssignment 单门实验课的教室排布结果
type RoomAssignment struct {
	LabSessionID string    `json:"lab_session_id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Room         string    `json:"room"`
}

// AssignRooms 按 (日期, 开始时间) 升序轮转分配教室
//
// 仅用于展示与规划：不做时间冲突检测，时间重叠的实验课可能被分到同一间教室。
func AssignRooms(sessions []model.LabSession, rooms []string) []RoomAssignment {
	if len(rooms) == 0 {
		return nil
	}

	active := make([]model.LabSession, 0, len(sessions))
	for _, s := range sessions {
		if s.IsActive {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].Date.Equal(active[j].Date) {
			return active[i].Date.Before(active[j].Date)
		}
		return active[i].StartTime.Before(active[j].StartTime)
	})

	result := make([]RoomAssignment, 0, len(active))
	for i, s := range active {
		result = append(result, RoomAssignment{
			LabSessionID: s.LabSessionID,
			Title:        s.Title,
			Date:         s.Date,
			StartTime:    s.StartTime,
			EndTime:      s.EndTime,
			Room:         rooms[i%len(rooms)],
		})
	}
	return result
}
