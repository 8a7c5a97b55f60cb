package expo

// InvalidTokens pairs tickets with the messages they answer and returns the
// recipients the gateway reported as DeviceNotRegistered. Callers should stop
// sending to them. Tickets and messages must come from the same call.
func InvalidTokens(msgs []PushMessage, tickets []PushTicket) []PushToken {
	var invalid []PushToken
	for i, t := range tickets {
		if i >= len(msgs) || t.OK() || t.Details == nil {
			continue
		}
		if t.Details.Error == DeviceNotRegistered {
			invalid = append(invalid, msgs[i].To)
		}
	}
	return invalid
}
