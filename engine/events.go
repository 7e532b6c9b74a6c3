package engine

import "github.com/google/uuid"

// Event reports one Job as it is admitted to its host's queue. The
// engine sends it from admission only, not when a Job completes.
type Event struct {
	JobID      uuid.UUID
	URL        string
	SourceURL  string
	StatusCode int
	Outcome    string // "queued" for the admission events the engine sends
	Error      string
	BytesDone  int64
	BytesTotal int64 // 0 if unknown
	Queued     int   // jobs remaining across all hosts
	Active     int   // jobs currently in flight
}
