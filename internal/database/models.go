package database

// Collection statuses.
const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
)

// SeasonCollection is the completion marker written after a season's
// accepted-records artifact has been persisted.
type SeasonCollection struct {
	SeasonID      string
	ContentID     string
	Status        string // "complete" or "partial"
	RecordCount   int
	TotalRead     int
	ContentSHA256 string
	SchemaVersion int
	CompletedAt   *string
}

// Artifact is a registry entry for a persisted CSV artifact.
type Artifact struct {
	Path          string
	SchemaName    string
	SchemaVersion int
	RowCount      int
	ByteCount     int64
	ContentSHA256 string
	WrittenAt     *string
}

// RunReport holds metadata about a pipeline run.
type RunReport struct {
	ID              string
	StartedAt       string
	FinishedAt      string
	AcceptedCount   int
	PredictionCount int
	SeasonCount     int
	Accuracy        *float64
}

// ValidationRun records the outcome of one validation pass.
type ValidationRun struct {
	ID              int64
	RowCount        int
	DroppedLabels   int
	DroppedFailures int
	Accuracy        float64
	CreatedAt       *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	CompleteSeasons int
	PartialSeasons  int
	AcceptedRecords int
	Artifacts       int
	Runs            int
	LastAccuracy    *float64
}
