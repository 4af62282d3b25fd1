package models

import (
	"encoding/json"
	"sort"
	"time"
)

// LiveState is the latest snapshot reported by one student.
type LiveState struct {
	CurrentGame string          `json:"currentGame"`
	GameData    json.RawMessage `json:"gameData,omitempty"`
	LastUpdate  time.Time       `json:"lastUpdate"`
}

// Clone returns a copy that shares no memory with s.
func (s *LiveState) Clone() *LiveState {
	c := *s
	if s.GameData != nil {
		c.GameData = append(json.RawMessage(nil), s.GameData...)
	}
	return &c
}

// Room is owned by the session registry and never handed out directly.
// Participants and LiveStates always have the same key set.
type Room struct {
	Code                string
	TeacherID           string
	TeacherName         string
	TeacherConnectionID string
	CreatedAt           time.Time
	Participants        map[string]*Participant
	LiveStates          map[string]*LiveState
}

func NewRoom(code, teacherID, teacherName, teacherConnID string, createdAt time.Time) *Room {
	return &Room{
		Code:                code,
		TeacherID:           teacherID,
		TeacherName:         teacherName,
		TeacherConnectionID: teacherConnID,
		CreatedAt:           createdAt,
		Participants:        make(map[string]*Participant),
		LiveStates:          make(map[string]*LiveState),
	}
}

// AddParticipant inserts a participant together with its default live state.
func (r *Room) AddParticipant(p *Participant) {
	r.Participants[p.StudentID] = p
	r.LiveStates[p.StudentID] = &LiveState{LastUpdate: p.JoinedAt}
}

// RemoveParticipant drops a participant and its live state.
func (r *Room) RemoveParticipant(studentID string) {
	delete(r.Participants, studentID)
	delete(r.LiveStates, studentID)
}

// ParticipantByConnection finds the participant currently bound to connID.
func (r *Room) ParticipantByConnection(connID string) (*Participant, bool) {
	for _, p := range r.Participants {
		if p.ConnectionID == connID {
			return p, true
		}
	}
	return nil, false
}

// Students returns the public participant list ordered by join time.
func (r *Room) Students() []StudentView {
	students := make([]StudentView, 0, len(r.Participants))
	for _, p := range r.Participants {
		students = append(students, p.View())
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].JoinedAt.Equal(students[j].JoinedAt) {
			return students[i].StudentID < students[j].StudentID
		}
		return students[i].JoinedAt.Before(students[j].JoinedAt)
	})
	return students
}

// Snapshot is a detached copy of a room for inspection outside the registry.
type Snapshot struct {
	Code                string
	TeacherID           string
	TeacherName         string
	TeacherConnectionID string
	CreatedAt           time.Time
	Participants        map[string]Participant
	LiveStates          map[string]LiveState
}

func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		Code:                r.Code,
		TeacherID:           r.TeacherID,
		TeacherName:         r.TeacherName,
		TeacherConnectionID: r.TeacherConnectionID,
		CreatedAt:           r.CreatedAt,
		Participants:        make(map[string]Participant, len(r.Participants)),
		LiveStates:          make(map[string]LiveState, len(r.LiveStates)),
	}
	for id, p := range r.Participants {
		s.Participants[id] = *p
	}
	for id, st := range r.LiveStates {
		s.LiveStates[id] = *st.Clone()
	}
	return s
}
