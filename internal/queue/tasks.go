package queue

const (
	TypeAnalysisRun = "analysis:run"
	TypeTestsRun    = "tests:run"
)

type AnalysisRunPayload struct {
	VersionID string `json:"version_id"`
}

type TestsRunPayload struct {
	VersionID string `json:"version_id"`
}
