package enums

// BulkJobStatus is the jobProgress.jobStatus of a bulk campaign upload.
type BulkJobStatus string

const (
	BulkJobStatusInProgress        BulkJobStatus = "IN_PROGRESS"
	BulkJobStatusComplete          BulkJobStatus = "COMPLETE"
	BulkJobStatusError             BulkJobStatus = "ERROR"
	BulkJobStatusValidationFailure BulkJobStatus = "VALIDATION_FAILURE"
)

// IsTerminal reports whether polling should stop.
func (s BulkJobStatus) IsTerminal() bool {
	switch s {
	case BulkJobStatusComplete, BulkJobStatusError, BulkJobStatusValidationFailure:
		return true
	}
	return false
}
