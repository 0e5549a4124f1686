package domain

// Step is one card of the reframing exercise.
type Step int

const (
	StepIntro Step = iota
	StepIdentify
	StepExamine
	StepReframe
	StepIntegrate
)

// TotalSteps is the number of cards before the completion screen.
const TotalSteps = 5

func (s Step) String() string {
	switch s {
	case StepIntro:
		return "intro"
	case StepIdentify:
		return "identify"
	case StepExamine:
		return "examine"
	case StepReframe:
		return "reframe"
	case StepIntegrate:
		return "integrate"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the five cards.
func (s Step) Valid() bool {
	return s >= StepIntro && s <= StepIntegrate
}
