package realtime

type SSEEvent string

const (
	SSEEventPlayerState       SSEEvent = "PlayerStateChanged"
	SSEEventGenerationStarted SSEEvent = "LessonGenerationStarted"
	SSEEventGenerationFailed  SSEEvent = "LessonGenerationFailed"
	SSEEventExamReady         SSEEvent = "ExamReady"
	SSEEventCourseCompleted   SSEEvent = "CourseCompleted"
	SSEEventPlayerClosed      SSEEvent = "PlayerClosed"
)

// SSEMessage is one event for one channel. Player sessions use their session
// id as the channel.
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}
