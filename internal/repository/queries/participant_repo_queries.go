package queries

const (
	QueryCreateParticipant = `
		INSERT INTO meeting_participants (
			id, meeting_session_id, participant_id, display_name, joined_at
		) VALUES ($1, $2, $3, $4, $5);
	`
	QueryFindOpenParticipant = `
		SELECT
			id, meeting_session_id, participant_id, display_name, joined_at,
			left_at, duration_seconds, left_reason
		FROM meeting_participants
		WHERE meeting_session_id = $1 AND participant_id = $2 AND left_at IS NULL
		ORDER BY joined_at DESC
		LIMIT 1;
	`
	QueryCloseParticipant = `
		UPDATE meeting_participants
		SET left_at = $2, duration_seconds = $3, left_reason = $4
		WHERE id = $1 AND left_at IS NULL;
	`
	QueryListParticipantsBySession = `
		SELECT
			id, meeting_session_id, participant_id, display_name, joined_at,
			left_at, duration_seconds, left_reason
		FROM meeting_participants
		WHERE meeting_session_id = $1
		ORDER BY joined_at ASC;
	`
)
