package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winniek75/flashinput-sub005/internal/models"
	"github.com/winniek75/flashinput-sub005/internal/services"
)

func frame(t *testing.T, msgType string, payload any) []byte {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    services.RequestKind
		wantErr error
	}{
		{"create room", `{"type":"create-room","payload":{"teacherId":"t-1","teacherName":"Ms Smith"}}`, services.RequestCreateRoom, nil},
		{"join room", `{"type":"join-room","payload":{"roomCode":"abc123","studentId":"s-1","studentName":"Alice"}}`, services.RequestJoinRoom, nil},
		{"sync state", `{"type":"sync-game-state","payload":{"roomCode":"ABC123","studentId":"s-1","gameState":{"currentGame":"g1","gameData":{"x":1}}}}`, services.RequestSyncState, nil},
		{"game action", `{"type":"game-action","payload":{"roomCode":"ABC123","studentId":"s-1","action":{"selected":"X"}}}`, services.RequestGameAction, nil},
		{"select student", `{"type":"select-student","payload":{"roomCode":"ABC123","studentId":"s-1"}}`, services.RequestSelectStudent, nil},
		{"leave room without payload", `{"type":"leave-room"}`, services.RequestLeaveRoom, nil},
		{"leave room with empty payload", `{"type":"leave-room","payload":{}}`, services.RequestLeaveRoom, nil},

		{"not json", `hello`, 0, services.ErrInvalidPayload},
		{"unknown type", `{"type":"vote"}`, 0, services.ErrUnknownMessageType},
		{"missing payload", `{"type":"create-room"}`, 0, services.ErrInvalidPayload},
		{"null payload", `{"type":"join-room","payload":null}`, 0, services.ErrInvalidPayload},
		{"missing teacher id", `{"type":"create-room","payload":{"teacherName":"Ms Smith"}}`, 0, services.ErrInvalidPayload},
		{"missing teacher name", `{"type":"create-room","payload":{"teacherId":"t-1"}}`, 0, services.ErrInvalidPayload},
		{"missing room code", `{"type":"join-room","payload":{"studentId":"s-1","studentName":"Alice"}}`, 0, services.ErrInvalidPayload},
		{"malformed room code", `{"type":"join-room","payload":{"roomCode":"AB-12","studentId":"s-1","studentName":"Alice"}}`, 0, services.ErrInvalidPayload},
		{"script in student name", `{"type":"join-room","payload":{"roomCode":"ABC123","studentId":"s-1","studentName":"<script>"}}`, 0, services.ErrInvalidPayload},
		{"missing student id on sync", `{"type":"sync-game-state","payload":{"roomCode":"ABC123","gameState":{}}}`, 0, services.ErrInvalidPayload},
		{"missing action", `{"type":"game-action","payload":{"roomCode":"ABC123","studentId":"s-1"}}`, 0, services.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := services.DecodeRequest("conn-1", []byte(tt.data))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Kind)
			assert.Equal(t, "conn-1", req.ConnID)
		})
	}
}

func TestDecodeRequest_NormalizesFields(t *testing.T) {
	req, err := services.DecodeRequest("conn-1", []byte(`{"type":"join-room","payload":{"roomCode":" abc123 ","studentId":" s-1 ","studentName":"  Alice "}}`))

	require.NoError(t, err)
	assert.Equal(t, "ABC123", req.RoomCode)
	assert.Equal(t, "s-1", req.StudentID)
	assert.Equal(t, "Alice", req.StudentName)
}

func TestRequestKind_String(t *testing.T) {
	assert.Equal(t, models.MsgTypeCreateRoom, services.RequestCreateRoom.String())
	assert.Equal(t, models.MsgTypeLeaveRoom, services.RequestLeaveRoom.String())
	assert.Equal(t, "disconnect", services.RequestDisconnect.String())
	assert.Equal(t, "unknown", services.RequestKind(99).String())
}

func TestSessionRegistry_HandleInbound(t *testing.T) {
	t.Run("join failure becomes an error envelope", func(t *testing.T) {
		r, transport := newTestRegistry(t, services.RegistryConfig{})

		r.HandleInbound(&services.ClientMessage{
			ConnID:  "conn-1",
			Message: frame(t, models.MsgTypeJoinRoom, map[string]string{"roomCode": "ZZZZZZ", "studentId": "s-1", "studentName": "Alice"}),
		})

		errs := transport.messages("conn-1", models.MsgTypeError)
		require.Len(t, errs, 1)
		payload := errs[0].Payload.(models.ErrorPayload)
		assert.Equal(t, "Room not found", payload.Message)
		assert.Contains(t, payload.Error, "room not found")
	})

	t.Run("full room becomes an error envelope", func(t *testing.T) {
		r, transport := newTestRegistry(t, services.RegistryConfig{MaxStudents: 1})
		code := openRoom(t, r, 1)

		r.HandleInbound(&services.ClientMessage{
			ConnID:  "conn-2",
			Message: frame(t, models.MsgTypeJoinRoom, map[string]string{"roomCode": code, "studentId": "s-2", "studentName": "Bob"}),
		})

		errs := transport.messages("conn-2", models.MsgTypeError)
		require.Len(t, errs, 1)
		assert.Equal(t, "Room is full", errs[0].Payload.(models.ErrorPayload).Message)
	})

	t.Run("malformed frame becomes an error envelope", func(t *testing.T) {
		r, transport := newTestRegistry(t, services.RegistryConfig{})

		r.HandleInbound(&services.ClientMessage{ConnID: "conn-1", Message: []byte(`{"type":`)})

		errs := transport.messages("conn-1", models.MsgTypeError)
		require.Len(t, errs, 1)
		payload := errs[0].Payload.(models.ErrorPayload)
		assert.Equal(t, "Invalid request", payload.Message)
		assert.Equal(t, "An error occurred while processing your request", payload.Error)
	})

	t.Run("unknown room on best-effort paths is silent", func(t *testing.T) {
		r, transport := newTestRegistry(t, services.RegistryConfig{})
		payload := map[string]any{"roomCode": "ZZZZZZ", "studentId": "s-1", "gameState": map[string]any{"currentGame": "g1"}, "action": "tap"}

		for _, msgType := range []string{models.MsgTypeSyncGameState, models.MsgTypeGameAction, models.MsgTypeSelectStudent} {
			r.HandleInbound(&services.ClientMessage{ConnID: "conn-1", Message: frame(t, msgType, payload)})
		}

		assert.Empty(t, transport.messages("conn-1", ""))
	})

	t.Run("select student replies to the requester", func(t *testing.T) {
		r, transport := newTestRegistry(t, services.RegistryConfig{})
		code := openRoom(t, r, 1)
		r.SyncState(code, "student-1", models.GameStateData{CurrentGame: "g1", GameData: json.RawMessage(`{"x":1}`)})

		r.HandleInbound(&services.ClientMessage{
			ConnID:  "conn-teacher",
			Message: frame(t, models.MsgTypeSelectStudent, map[string]string{"roomCode": code, "studentId": "student-1"}),
		})
		r.HandleInbound(&services.ClientMessage{
			ConnID:  "conn-teacher",
			Message: frame(t, models.MsgTypeSelectStudent, map[string]string{"roomCode": code, "studentId": "ghost"}),
		})

		replies := transport.messages("conn-teacher", models.MsgTypeStudentSelected)
		require.Len(t, replies, 2)
		found := replies[0].Payload.(models.StudentSelectedPayload)
		require.NotNil(t, found.GameState)
		assert.Equal(t, "g1", found.GameState.CurrentGame)
		missing := replies[1].Payload.(models.StudentSelectedPayload)
		assert.Equal(t, "ghost", missing.StudentID)
		assert.Nil(t, missing.GameState)
	})

	t.Run("closed message disconnects", func(t *testing.T) {
		r, _ := newTestRegistry(t, services.RegistryConfig{})
		code := openRoom(t, r, 1)

		r.HandleInbound(&services.ClientMessage{ConnID: "conn-1", Closed: true})

		room, _ := r.Room(code)
		assert.False(t, room.Participants["student-1"].Connected)
	})
}

func TestSessionRegistry_Run(t *testing.T) {
	t.Run("processes inbound messages in order", func(t *testing.T) {
		r, transport := newTestRegistry(t, services.RegistryConfig{GenerateCode: sequenceCodes("ROOM01")})
		in := make(chan *services.ClientMessage, 8)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan struct{})
		go func() {
			r.Run(ctx, in)
			close(done)
		}()

		in <- &services.ClientMessage{ConnID: "conn-t", Message: frame(t, models.MsgTypeCreateRoom, map[string]string{"teacherId": "t-1", "teacherName": "Ms Smith"})}
		in <- &services.ClientMessage{ConnID: "conn-s", Message: frame(t, models.MsgTypeJoinRoom, map[string]string{"roomCode": "room01", "studentId": "s-1", "studentName": "Alice"})}
		in <- &services.ClientMessage{ConnID: "conn-s", Message: frame(t, models.MsgTypeSyncGameState, map[string]any{"roomCode": "ROOM01", "studentId": "s-1", "gameState": map[string]any{"currentGame": "g1"}})}

		assert.Eventually(t, func() bool {
			return len(transport.messages("conn-t", models.MsgTypeGameStateUpdated)) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Len(t, transport.messages("conn-s", models.MsgTypeJoinedRoom), 1)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("registry loop did not stop")
		}
	})

	t.Run("sweeps on the ticker", func(t *testing.T) {
		var (
			clock = time.Now()
			r, _  = newTestRegistry(t, services.RegistryConfig{
				SweepInterval: 10 * time.Millisecond,
				RoomMaxAge:    time.Hour,
				Clock:         func() time.Time { return clock },
			})
		)
		r.CreateRoom("t-1", "conn-t", "Ms Smith")
		clock = clock.Add(2 * time.Hour)

		in := make(chan *services.ClientMessage)
		done := make(chan struct{})
		go func() {
			r.Run(context.Background(), in)
			close(done)
		}()

		// Closing the input stops the loop; give the ticker a few periods first
		time.Sleep(100 * time.Millisecond)
		close(in)
		<-done

		assert.Equal(t, 0, r.RoomCount())
	})
}
