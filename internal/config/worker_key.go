package config

type WorkerKeyStruct struct {
	LeaderboardUpdatesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	LeaderboardUpdatesQueue: "leaderboard_updates_queue",
}
