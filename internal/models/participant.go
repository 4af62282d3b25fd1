package models

import "time"

type Participant struct {
	StudentID    string
	DisplayName  string
	ConnectionID string
	JoinedAt     time.Time
	Connected    bool
}

func NewParticipant(studentID, name, connectionID string, joinedAt time.Time) *Participant {
	return &Participant{
		StudentID:    studentID,
		DisplayName:  name,
		ConnectionID: connectionID,
		JoinedAt:     joinedAt,
		Connected:    true,
	}
}

// StudentView is the public identity of a participant shared with the
// whole room. It deliberately carries no connection id.
type StudentView struct {
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	JoinedAt    time.Time `json:"joinedAt"`
	Connected   bool      `json:"connected"`
}

func (p *Participant) View() StudentView {
	return StudentView{
		StudentID:   p.StudentID,
		StudentName: p.DisplayName,
		JoinedAt:    p.JoinedAt,
		Connected:   p.Connected,
	}
}
