package references

// Status classifies one validated reference.
type Status string

// Validation statuses.
const (
	StatusValid       Status = "VALID"
	StatusNotFound    Status = "NOT_FOUND"
	StatusUnreachable Status = "UNREACHABLE"
	StatusSkipped     Status = "SKIPPED"
)

// Failed reports whether the status fails the run.
func (status Status) Failed() bool {
	return status == StatusNotFound || status == StatusUnreachable
}

// String returns the status label.
func (status Status) String() string {
	return string(status)
}
