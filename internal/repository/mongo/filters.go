package mongo

import (
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
)

func freshSessionFilter(roomName string, since time.Time) bson.M {
	return bson.M{
		"room_name":      roomName,
		"status":         string(domain.SessionActive),
		"last_heartbeat": bson.M{"$gte": since.UTC()},
	}
}

func activeSessionFilter(id string) bson.M {
	return bson.M{"_id": id, "status": string(domain.SessionActive)}
}

func raiseMaxFilter(id string, max int) bson.M {
	return bson.M{"_id": id, "max_participants": bson.M{"$lt": max}}
}

func openParticipantFilter(sessionID, participantID string) bson.M {
	return bson.M{
		"meeting_session_id": sessionID,
		"participant_id":     participantID,
		"open":               true,
	}
}
