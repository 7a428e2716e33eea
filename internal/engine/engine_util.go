package engine

// ContainsEvent reports whether an event of the given type was emitted.
func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// FindEvent returns the first event of the given type.
func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}

// TimerRequests extracts the arm-timer intents from an event batch; the lobby
// actor schedules these and everything else goes out to clients.
func TimerRequests(events []Event) []TimerRequest {
	var reqs []TimerRequest
	for _, event := range events {
		if event.Type == EvtArmTimer {
			reqs = append(reqs, event.Payload.(TimerRequest))
		}
	}
	return reqs
}
