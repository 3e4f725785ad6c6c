package domain

const (
	MailTypeParticipationApproved = "participation_approved"
	MailTypeParticipationRejected = "participation_rejected"
	MailTypeParticipationExpired  = "participation_expired"
	MailTypeParticipationRemoved  = "participation_removed"
	MailTypeParticipationReviewed = "participation_reviewed"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

// ParticipationMailData 是所有报名状态通知邮件共用的模板数据
type ParticipationMailData struct {
	FullName     string   `json:"fullName"`
	ActivityName string   `json:"activityName"`
	ShiftName    string   `json:"shiftName"`
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime"`
	Completion   *float64 `json:"completion,omitempty"`
	ReviewNote   *string  `json:"reviewNote,omitempty"`
}
