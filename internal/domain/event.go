package domain

const (
	EventNameRecordCreated      = "record.created"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventRecordCreated struct {
	Record    Record
	HighScore int64
}

func (EventRecordCreated) Name() string { return EventNameRecordCreated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
