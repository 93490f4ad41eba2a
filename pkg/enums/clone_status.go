package enums

// CloneJobStatus is the status of a GraphQL campaignClonesCreate job and of
// each clone node inside it.
type CloneJobStatus string

const (
	CloneJobStatusCompleted CloneJobStatus = "COMPLETED"
	CloneJobStatusFailed    CloneJobStatus = "FAILED"
	CloneJobStatusIgnored   CloneJobStatus = "IGNORED"
)

// RESTCloneStatus is the CloneStatus reported by campaign/clone/status.
type RESTCloneStatus string

const (
	RESTCloneStatusInProgress RESTCloneStatus = "InProgress"
	RESTCloneStatusCompleted  RESTCloneStatus = "Completed"
	RESTCloneStatusFailed     RESTCloneStatus = "Failed"
)
