package config

type WorkerKeyStruct struct {
	PersistResponseCountQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResponseCountQueue: "persist_response_count_queue",
}
