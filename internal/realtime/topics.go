package realtime

// TopicSessionState carries the full session snapshot: every chat, the
// active chat reference and the working flag.
const TopicSessionState = "session.state"

func IsSupportedTopic(topic string) bool {
	switch topic {
	case TopicSessionState:
		return true
	default:
		return false
	}
}
