package models

type CommandStatus string

const (
	Running   CommandStatus = "RUNNING"
	Succeeded CommandStatus = "SUCCEEDED"
	Failed    CommandStatus = "FAILED"
)
