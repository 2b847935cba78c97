package pipeline

// Stage is a step of an apply, reported to the dashboard as progress.
type Stage string

const (
	StageIdle       Stage = "idle"
	StagePreparing  Stage = "preparing"
	StageFetching   Stage = "fetching"
	StageProcessing Stage = "processing"
	StageOptimizing Stage = "optimizing"
	StageRendering  Stage = "rendering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Percent returns the progress value shown for the stage.
func (s Stage) Percent() int {
	switch s {
	case StagePreparing:
		return 10
	case StageFetching:
		return 30
	case StageProcessing:
		return 60
	case StageOptimizing:
		return 80
	case StageRendering:
		return 90
	case StageDone, StageFailed:
		return 100
	}
	return 0
}

// Terminal reports whether the stage ends an apply.
func (s Stage) Terminal() bool {
	return s == StageIdle || s == StageDone || s == StageFailed
}

// Progress is the observable state of the latest apply.
type Progress struct {
	Seq     uint64
	Stage   Stage
	Percent int
}
