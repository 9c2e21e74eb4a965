package mongo

import (
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestSessionDoc_RoundTrip(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := domain.NewMeetingSession("mtb-1", "demo", t0)
	s.ID = "s-1"
	require.NoError(t, s.End(t0.Add(90*time.Second)))

	raw, err := bson.Marshal(toSessionDoc(s))
	require.NoError(t, err)

	var d sessionDoc
	require.NoError(t, bson.Unmarshal(raw, &d))
	got := d.toDomain()

	assert.Equal(t, "s-1", got.ID)
	assert.Equal(t, domain.SessionEnded, got.Status)
	require.NotNil(t, got.TotalDurationSeconds)
	assert.Equal(t, int64(90), *got.TotalDurationSeconds)
	assert.True(t, got.StartedAt.Equal(t0))
}

func TestParticipantDoc_OpenFlag(t *testing.T) {
	t0 := time.Now()
	p := domain.NewMeetingParticipant("s-1", "abc", "Ann", t0)
	assert.True(t, toParticipantDoc(p).Open)

	require.NoError(t, p.Leave(t0.Add(time.Second), domain.LeaveDisconnected))
	d := toParticipantDoc(p)
	assert.False(t, d.Open)
	require.NotNil(t, d.LeftReason)
	assert.Equal(t, "disconnected", *d.LeftReason)
	assert.Equal(t, domain.LeaveDisconnected, *d.toDomain().LeftReason)
}

func TestFilters(t *testing.T) {
	since := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := freshSessionFilter("demo", since)
	assert.Equal(t, "active", f["status"])
	assert.Equal(t, bson.M{"$gte": since}, f["last_heartbeat"])

	assert.Equal(t, bson.M{"$lt": 3}, raiseMaxFilter("s-1", 3)["max_participants"])
	assert.Equal(t, true, openParticipantFilter("s-1", "abc")["open"])
}

func TestMapMongoError(t *testing.T) {
	assert.Nil(t, mapMongoError(nil))
	assert.ErrorIs(t, mapMongoError(mongo.ErrNoDocuments), repository.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mapMongoError(dup), repository.ErrAlreadyExists)

	other := errors.New("boom")
	assert.Equal(t, other, mapMongoError(other))
}
