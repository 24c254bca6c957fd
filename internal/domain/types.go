package domain

import "time"

// JobKind selects the server-side task and its socket endpoint.
type JobKind string

const (
	JobKindExtractFrames     JobKind = "extract-frames"
	JobKindGenerateMidFrames JobKind = "generate-index"
	JobKindEaseMotion        JobKind = "ease-lvl3"
)

// Valid reports whether k is one of the known job kinds.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindExtractFrames, JobKindGenerateMidFrames, JobKindEaseMotion:
		return true
	default:
		return false
	}
}

// FrameHeader reports whether binary frames of this kind carry the 4-byte prefix.
func (k JobKind) FrameHeader() bool {
	return k == JobKindGenerateMidFrames || k == JobKindEaseMotion
}

// JobState tracks the lifecycle of a single protocol job.
type JobState string

const (
	JobStateIdle               JobState = "idle"
	JobStateConnecting         JobState = "connecting"
	JobStateUploading          JobState = "uploading"
	JobStateAwaitingProcessing JobState = "awaiting_processing"
	JobStateProcessing         JobState = "processing"
	JobStateCompleted          JobState = "completed"
	JobStateFailed             JobState = "failed"
	JobStateCancelled          JobState = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// ResultStatus mirrors the coarse outcome exposed to the presentation layer.
type ResultStatus string

const (
	ResultStatusNone    ResultStatus = ""
	ResultStatusStart   ResultStatus = "start"
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusError   ResultStatus = "error"
)

// JobParams holds the kind-specific handshake fields.
//
// Extraction uses none of them, mid-frame generation uses ImagePath, Index,
// Number and Extv, easing uses ImagePath, NumberList, PixFmt and Extv.
type JobParams struct {
	ImagePath  string `json:"imgPath,omitempty"`
	Index      []int  `json:"index,omitempty"`
	Number     int    `json:"number,omitempty"`
	NumberList []int  `json:"numberList,omitempty"`
	PixFmt     string `json:"pixfmt,omitempty"`
	Extv       string `json:"extv,omitempty"`
}

// UploadPayload is one file's bytes plus its format tag.
type UploadPayload struct {
	Name string
	Data []byte
	Extv string
}

// JobRequest is everything needed to run one job. It is not modified once started.
type JobRequest struct {
	Kind    JobKind        `json:"kind"`
	User    string         `json:"user"`
	Payload *UploadPayload `json:"-"`
	Params  JobParams      `json:"params"`
}

// DecodedFrame is a displayable image and its position in arrival order.
type DecodedFrame struct {
	Position    int    `json:"position"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
	Transcoded  bool   `json:"transcoded"`
}

// JobResult accumulates everything the server sent back for one job.
type JobResult struct {
	Frames     []DecodedFrame `json:"frames"`
	RemotePath string         `json:"remotePath,omitempty"`
	Status     ResultStatus   `json:"status"`
	Progress   float64        `json:"progress"`
	FPS        float64        `json:"fps,omitempty"`
	PixFmt     string         `json:"pixfmt,omitempty"`
}

// Clone returns a copy whose frame slice is not shared with r.
func (r JobResult) Clone() JobResult {
	out := r
	out.Frames = append([]DecodedFrame(nil), r.Frames...)
	return out
}

// Job stores the current job identity and lifecycle state.
type Job struct {
	ID        string    `json:"id"`
	Kind      JobKind   `json:"kind,omitempty"`
	State     JobState  `json:"state"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ServerHost         string `json:"serverHost"`
	Secure             bool   `json:"secure"`
	UserName           string `json:"userName"`
	OutputDir          string `json:"outputDir"`
	ChunkSize          int    `json:"chunkSize"`
	ProgressSteps      int    `json:"progressSteps"`
	IdleTimeoutSeconds int    `json:"idleTimeoutSeconds"`
	SaveFrames         bool   `json:"saveFrames"`
	LogLevel           string `json:"logLevel"`
}
