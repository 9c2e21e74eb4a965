package queries

const (
	QueryCreateSession = `
		INSERT INTO meeting_sessions (
			id, mtb_id, room_name, started_at, max_participants, status, last_heartbeat
		) VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	QueryGetSessionByID = `
		SELECT
			id, mtb_id, room_name, started_at, ended_at, total_duration_seconds,
			max_participants, status, last_heartbeat
		FROM meeting_sessions
		WHERE id = $1;
	`
	QueryFindFreshSession = `
		SELECT
			id, mtb_id, room_name, started_at, ended_at, total_duration_seconds,
			max_participants, status, last_heartbeat
		FROM meeting_sessions
		WHERE room_name = $1 AND status = 'active' AND last_heartbeat >= $2
		ORDER BY started_at DESC
		LIMIT 1;
	`
	QueryTouchHeartbeat = `
		UPDATE meeting_sessions SET last_heartbeat = $2
		WHERE id = $1 AND status = 'active';
	`
	QueryRaiseMaxParticipants = `
		UPDATE meeting_sessions SET max_participants = $2
		WHERE id = $1 AND max_participants < $2;
	`
	QueryEndSession = `
		UPDATE meeting_sessions
		SET status = 'ended', ended_at = $2, total_duration_seconds = $3
		WHERE id = $1 AND status = 'active';
	`
)
