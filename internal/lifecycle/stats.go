package lifecycle

import "github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"

// CompletionRate 已提交结果的签到数 / 报名数；无报名时为 0
func CompletionRate(entries []model.Entry, registrations []model.Registration) float64 {
	if len(registrations) == 0 {
		return 0
	}
	closed := 0
	for i := range entries {
		if entries[i].IsClosed() {
			closed++
		}
	}
	return float64(closed) / float64(len(registrations))
}

// AverageScore 已评分记录的平均分；无评分时为 0
func AverageScore(entries []model.Entry) float64 {
	var sum float64
	n := 0
	for i := range entries {
		if entries[i].Score != nil {
			sum += *entries[i].Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// SessionStats 单门实验课的统计
type SessionStats struct {
	Registered     int     `json:"registered"`
	Attended       int     `json:"attended"`
	Absent         int     `json:"absent"`
	Cancelled      int     `json:"cancelled"`
	Available      int     `json:"available"`
	Submitted      int     `json:"submitted"`
	Graded         int     `json:"graded"`
	CompletionRate float64 `json:"completion_rate"`
	AverageScore   float64 `json:"average_score"`
}

// Summarize 汇总实验课的报名与签到情况
func Summarize(s *model.LabSession, registrations []model.Registration, entries []model.Entry) SessionStats {
	var st SessionStats
	active := 0
	for i := range registrations {
		switch registrations[i].Status {
		case model.RegistrationRegistered:
			st.Registered++
		case model.RegistrationAttended:
			st.Attended++
		case model.RegistrationAbsent:
			st.Absent++
		case model.RegistrationCancelled:
			st.Cancelled++
		}
		if registrations[i].IsActive() {
			active++
		}
	}
	for i := range entries {
		switch entries[i].SubmissionStatus {
		case model.SubmissionSubmitted:
			st.Submitted++
		case model.SubmissionGraded:
			st.Graded++
		}
	}
	if s.MaxParticipants > active {
		st.Available = s.MaxParticipants - active
	}
	st.CompletionRate = CompletionRate(entries, registrations)
	st.AverageScore = AverageScore(entries)
	return st
}
