package model

// Analytics is the dashboard metrics payload.
type Analytics struct {
	Users       UserCounts   `json:"users"`
	Exams       ExamCounts   `json:"exams"`
	ExamChart   []WeekBucket `json:"exam_chart_data"`
	SuccessRate SuccessRate  `json:"success_rate"`
	Averages    Averages     `json:"averages"`
}

// UserCounts splits the user base by role.
type UserCounts struct {
	Student int `json:"student"`
	Admin   int `json:"admin"`
}

// ExamCounts splits exams by publication state.
type ExamCounts struct {
	Published int `json:"published"`
	Upcoming  int `json:"upcoming"`
}

// WeekBucket is one point of the weekly attempts series.
type WeekBucket struct {
	Week     int `json:"week"`
	Attempts int `json:"attempts"`
}

// SuccessRate buckets graded attempts by score band.
type SuccessRate struct {
	Pass    int `json:"pass"`
	Average int `json:"average"`
	Fail    int `json:"fail"`
}

// Averages aggregates attempt outcomes.
type Averages struct {
	AverageGrade          float64 `json:"average_grade"`
	AttemptsPerExam       float64 `json:"attempts_per_exam"`
	AvgCompletionTimeMins float64 `json:"average_completion_time"`
}
