package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit    Trigger = "SUBMIT"
	TriggerApprove   Trigger = "APPROVE"
	TriggerReject    Trigger = "REJECT"
	TriggerSign      Trigger = "SIGN"
	TriggerArchive   Trigger = "ARCHIVE"
	TriggerResubmit  Trigger = "RESUBMIT"
	TriggerSupersede Trigger = "SUPERSEDE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
