package practicum

// Known homework statuses.
const (
	StatusApproved  = "approved"
	StatusReviewing = "reviewing"
	StatusRejected  = "rejected"
)

// Homework is one review record. Only Name and Status are required by
// ParseStatus; the rest is informational.
type Homework struct {
	ID              int64  `json:"id,omitempty"`
	Name            string `json:"homework_name,omitempty"`
	Status          string `json:"status,omitempty"`
	ReviewerComment string `json:"reviewer_comment,omitempty"`
	DateUpdated     string `json:"date_updated,omitempty"`
	LessonName      string `json:"lesson_name,omitempty"`
}

// Response is a validated API reply.
type Response struct {
	Homeworks   []Homework
	CurrentDate int64
}

// Latest returns the most recent record. The API lists newest first.
func (r Response) Latest() (Homework, bool) {
	if len(r.Homeworks) == 0 {
		return Homework{}, false
	}
	return r.Homeworks[0], true
}
