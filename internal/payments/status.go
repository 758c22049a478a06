package payments

// Status is the header lifecycle state. The ready step is never persisted,
// so APPROVED is the first stored state.
type Status string

const (
	StatusApproved           Status = "APPROVED"
	StatusPartiallyCancelled Status = "PARTIALLY_CANCELLED"
	StatusFullyCancelled     Status = "FULLY_CANCELLED"
)

type DetailStatus string

const (
	DetailStatusApproved  DetailStatus = "APPROVED"
	DetailStatusCancelled DetailStatus = "CANCELLED"
)

type Event string

const (
	EventCancelItem Event = "CANCEL_ITEM"
	EventCancelAll  Event = "CANCEL_ALL"
)

func (s Status) IsTerminal() bool {
	return s == StatusFullyCancelled
}

// Transition returns the status after event, given the remaining amount the
// event would leave behind.
func Transition(from Status, event Event, remainAfter int64) (Status, error) {
	if from != StatusApproved && from != StatusPartiallyCancelled {
		return from, ErrInvalidTransition
	}
	if remainAfter < 0 {
		return from, ErrInvalidTransition
	}

	switch event {
	case EventCancelAll:
		if remainAfter != 0 {
			return from, ErrInvalidTransition
		}
		return StatusFullyCancelled, nil
	case EventCancelItem:
		if remainAfter == 0 {
			return StatusFullyCancelled, nil
		}
		return StatusPartiallyCancelled, nil
	default:
		return from, ErrInvalidTransition
	}
}
