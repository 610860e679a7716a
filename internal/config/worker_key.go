package config

type WorkerKeyStruct struct {
	PointRewardQueue   string
	SessionEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PointRewardQueue:   "point_reward_queue",
	SessionEventsQueue: "session_events_queue",
}
