package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/winniek75/flashinput-sub005/internal/config"
	"github.com/winniek75/flashinput-sub005/internal/models"
)

// RegistryConfig carries the registry policy. Zero fields fall back to the
// defaults in the config package.
type RegistryConfig struct {
	MaxStudents   int
	RoomMaxAge    time.Duration
	SweepInterval time.Duration
	GenerateCode  CodeGenerator
	Clock         func() time.Time
}

// SessionRegistry owns every spectator room and the connection → room index.
//
// It is not safe for concurrent use. All methods must run on the goroutine
// executing Run (or, in tests, a single goroutine).
type SessionRegistry struct {
	rooms            map[string]*models.Room
	connectionToRoom map[string]string

	transport Transport
	metrics   *Metrics
	logger    *slog.Logger

	maxStudents   int
	roomMaxAge    time.Duration
	sweepInterval time.Duration
	generateCode  CodeGenerator
	now           func() time.Time
}

func NewSessionRegistry(transport Transport, metrics *Metrics, logger *slog.Logger, cfg RegistryConfig) *SessionRegistry {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxStudents <= 0 {
		cfg.MaxStudents = config.MaxStudentsPerRoom
	}
	if cfg.RoomMaxAge <= 0 {
		cfg.RoomMaxAge = config.RoomMaxAge
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = config.SweepInterval
	}
	if cfg.GenerateCode == nil {
		cfg.GenerateCode = RandomRoomCode
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &SessionRegistry{
		rooms:            make(map[string]*models.Room),
		connectionToRoom: make(map[string]string),
		transport:        transport,
		metrics:          metrics,
		logger:           logger,
		maxStudents:      cfg.MaxStudents,
		roomMaxAge:       cfg.RoomMaxAge,
		sweepInterval:    cfg.SweepInterval,
		generateCode:     cfg.GenerateCode,
		now:              cfg.Clock,
	}
}

// CreateRoom opens a room for teacherID, or re-attaches teacherConnID to the
// room that teacher already owns. The bool reports whether a room was created.
func (r *SessionRegistry) CreateRoom(teacherID, teacherConnID, teacherName string) (models.Snapshot, bool) {
	if room, ok := r.roomForTeacher(teacherID); ok {
		r.bindConnection(teacherConnID, room.Code)
		r.transport.Send(teacherConnID, &models.WSMessage{
			Type:   models.MsgTypeRoomExists,
			RoomID: room.Code,
			Payload: models.RoomPayload{
				RoomCode:    room.Code,
				TeacherName: room.TeacherName,
				Students:    room.Students(),
			},
		})
		r.logger.Info("teacher re-attached to room", "room", room.Code, "teacher", teacherID, "conn", teacherConnID)
		return room.Snapshot(), false
	}

	code := r.uniqueCode()
	room := models.NewRoom(code, teacherID, teacherName, teacherConnID, r.now())
	r.rooms[code] = room
	r.bindConnection(teacherConnID, code)
	r.metrics.IncrementRooms()

	r.transport.Send(teacherConnID, &models.WSMessage{
		Type:   models.MsgTypeRoomCreated,
		RoomID: code,
		Payload: models.RoomPayload{
			RoomCode:    code,
			TeacherName: teacherName,
			Students:    room.Students(),
		},
	})
	r.logger.Info("room created", "room", code, "teacher", teacherID, "conn", teacherConnID)
	return room.Snapshot(), true
}

// JoinRoom admits a student. A studentID already present in the room is
// re-bound to connID instead of taking another seat.
func (r *SessionRegistry) JoinRoom(code, studentID, studentName, connID string) error {
	room, ok := r.rooms[code]
	if !ok {
		return fmt.Errorf("join %s: %w", code, ErrRoomNotFound)
	}

	if p, exists := room.Participants[studentID]; exists {
		if p.ConnectionID != connID {
			r.unbindConnection(p.ConnectionID, code)
		}
		p.ConnectionID = connID
		p.DisplayName = studentName
		p.Connected = true
		r.logger.Info("student re-joined room", "room", code, "student", studentID, "conn", connID)
	} else {
		if len(room.Participants) >= r.maxStudents {
			return fmt.Errorf("join %s: %w (max %d students)", code, ErrRoomFull, r.maxStudents)
		}
		room.AddParticipant(models.NewParticipant(studentID, studentName, connID, r.now()))
		r.metrics.IncrementStudentsJoined()
		r.logger.Info("student joined room", "room", code, "student", studentID, "conn", connID)
	}

	r.bindConnection(connID, code)

	r.transport.Send(connID, &models.WSMessage{
		Type:   models.MsgTypeJoinedRoom,
		RoomID: code,
		Payload: models.RoomPayload{
			RoomCode:    code,
			TeacherName: room.TeacherName,
			StudentID:   studentID,
			Students:    room.Students(),
		},
	})
	r.transport.Publish(code, &models.WSMessage{
		Type:    models.MsgTypeStudentJoined,
		RoomID:  code,
		Payload: models.StudentPresencePayload{StudentID: studentID, StudentName: studentName},
	}, connID)
	return nil
}

// SyncState replaces a student's live state and forwards it to the teacher
// connection only. Unknown rooms and students are ignored.
func (r *SessionRegistry) SyncState(code, studentID string, state models.GameStateData) bool {
	room, ok := r.rooms[code]
	if !ok {
		return false
	}
	if _, ok := room.Participants[studentID]; !ok {
		r.logger.Debug("state sync for unknown student dropped", "room", code, "student", studentID)
		return false
	}

	live := &models.LiveState{
		CurrentGame: state.CurrentGame,
		LastUpdate:  r.now(),
	}
	if len(state.GameData) > 0 {
		live.GameData = append(json.RawMessage(nil), state.GameData...)
	}
	room.LiveStates[studentID] = live
	r.metrics.IncrementStateSyncs()

	r.transport.Send(room.TeacherConnectionID, &models.WSMessage{
		Type:    models.MsgTypeGameStateUpdated,
		RoomID:  code,
		Payload: models.GameStateUpdatedPayload{StudentID: studentID, GameState: *live.Clone()},
	})
	return true
}

// ForwardAction relays a transient student action to the teacher connection.
// Nothing is stored.
func (r *SessionRegistry) ForwardAction(code, studentID string, action json.RawMessage) bool {
	room, ok := r.rooms[code]
	if !ok {
		return false
	}
	r.metrics.IncrementActionsForwarded()

	r.transport.Send(room.TeacherConnectionID, &models.WSMessage{
		Type:   models.MsgTypeStudentAction,
		RoomID: code,
		Payload: models.StudentActionPayload{
			StudentID: studentID,
			Action:    append(json.RawMessage(nil), action...),
			Timestamp: r.now(),
		},
	})
	return true
}

// SelectStudent returns a copy of the latest known state of a student.
func (r *SessionRegistry) SelectStudent(code, studentID string) (*models.LiveState, bool) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, false
	}
	state, ok := room.LiveStates[studentID]
	if !ok {
		return nil, false
	}
	return state.Clone(), true
}

// Leave handles an explicit leave. The teacher leaving closes the room for
// everyone; a student leaving is removed from the room.
func (r *SessionRegistry) Leave(connID string) {
	code, ok := r.connectionToRoom[connID]
	if !ok {
		return
	}
	room, ok := r.rooms[code]
	if !ok {
		delete(r.connectionToRoom, connID)
		return
	}

	if connID == room.TeacherConnectionID {
		r.closeRoom(room, connID)
		return
	}

	r.unbindConnection(connID, code)
	p, ok := room.ParticipantByConnection(connID)
	if !ok {
		// Re-attached teacher connections are indexed but hold no seat
		r.logger.Debug("leave from connection without a seat ignored", "room", code, "conn", connID)
		return
	}
	room.RemoveParticipant(p.StudentID)
	r.transport.Publish(code, &models.WSMessage{
		Type:    models.MsgTypeStudentLeft,
		RoomID:  code,
		Payload: models.StudentPresencePayload{StudentID: p.StudentID, StudentName: p.DisplayName},
	}, connID)
	r.logger.Info("student left room", "room", code, "student", p.StudentID, "conn", connID)
}

// Disconnect handles an ungraceful connection loss. Rooms survive a teacher
// disconnect and students are only marked as disconnected.
func (r *SessionRegistry) Disconnect(connID string) {
	code, ok := r.connectionToRoom[connID]
	if !ok {
		return
	}
	r.unbindConnection(connID, code)

	room, ok := r.rooms[code]
	if !ok {
		return
	}

	if connID == room.TeacherConnectionID {
		r.transport.Publish(code, &models.WSMessage{
			Type:    models.MsgTypeTeacherDisconnected,
			RoomID:  code,
			Payload: models.TeacherDisconnectedPayload{RoomCode: code},
		}, connID)
		r.logger.Warn("teacher disconnected", "room", code, "conn", connID)
		return
	}

	p, ok := room.ParticipantByConnection(connID)
	if !ok {
		return
	}
	p.Connected = false
	r.transport.Publish(code, &models.WSMessage{
		Type:    models.MsgTypeStudentDisconnected,
		RoomID:  code,
		Payload: models.StudentPresencePayload{StudentID: p.StudentID, StudentName: p.DisplayName},
	}, connID)
	r.logger.Info("student disconnected", "room", code, "student", p.StudentID, "conn", connID)
}

// Sweep evicts every room older than the max age and returns how many were
// removed. No notifications are sent.
func (r *SessionRegistry) Sweep(now time.Time) int {
	evicted := 0
	for code, room := range r.rooms {
		if now.Sub(room.CreatedAt) <= r.roomMaxAge {
			continue
		}
		r.dropRoom(code)
		evicted++
		r.logger.Info("room expired", "room", code, "age", now.Sub(room.CreatedAt).Round(time.Second))
	}
	if evicted > 0 {
		r.metrics.AddRoomsSwept(evicted)
	}
	return evicted
}

// Room returns a detached copy of a room.
func (r *SessionRegistry) Room(code string) (models.Snapshot, bool) {
	room, ok := r.rooms[code]
	if !ok {
		return models.Snapshot{}, false
	}
	return room.Snapshot(), true
}

func (r *SessionRegistry) RoomCount() int {
	return len(r.rooms)
}

// RoomForConnection reports which room a connection is acting in.
func (r *SessionRegistry) RoomForConnection(connID string) (string, bool) {
	code, ok := r.connectionToRoom[connID]
	return code, ok
}

func (r *SessionRegistry) closeRoom(room *models.Room, teacherConnID string) {
	r.transport.Publish(room.Code, &models.WSMessage{
		Type:   models.MsgTypeRoomClosed,
		RoomID: room.Code,
		Payload: models.RoomClosedPayload{
			RoomCode: room.Code,
			Message:  "The teacher has ended this session",
		},
	}, teacherConnID)
	r.dropRoom(room.Code)
	r.metrics.DecrementRooms()
	r.logger.Info("room closed by teacher", "room", room.Code, "conn", teacherConnID)
}

// dropRoom removes a room, every index entry pointing at it and its topic.
func (r *SessionRegistry) dropRoom(code string) {
	delete(r.rooms, code)
	for connID, roomCode := range r.connectionToRoom {
		if roomCode == code {
			delete(r.connectionToRoom, connID)
		}
	}
	r.transport.DropTopic(code)
}

// bindConnection indexes connID under code. A connection acts in one room at
// a time, so a binding to another room is left first.
func (r *SessionRegistry) bindConnection(connID, code string) {
	if prev, ok := r.connectionToRoom[connID]; ok && prev != code {
		r.logger.Info("connection moved rooms, leaving previous", "conn", connID, "from", prev, "to", code)
		r.Leave(connID)
	}
	r.connectionToRoom[connID] = code
	r.transport.Subscribe(connID, code)
}

func (r *SessionRegistry) unbindConnection(connID, code string) {
	if r.connectionToRoom[connID] == code {
		delete(r.connectionToRoom, connID)
	}
	r.transport.Unsubscribe(connID, code)
}

func (r *SessionRegistry) roomForTeacher(teacherID string) (*models.Room, bool) {
	for _, room := range r.rooms {
		if room.TeacherID == teacherID {
			return room, true
		}
	}
	return nil, false
}

// uniqueCode re-rolls until the generator yields a code not in use.
func (r *SessionRegistry) uniqueCode() string {
	for {
		code := r.generateCode()
		if _, taken := r.rooms[code]; !taken {
			return code
		}
		r.logger.Debug("room code collision, re-rolling", "room", code)
	}
}
