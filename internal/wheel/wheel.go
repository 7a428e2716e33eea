package wheel

import "github.com/valyala/fastrand"

type Outcome string

const (
	OutcomeDeath Outcome = "death"
	OutcomeSafe  Outcome = "safe"
	OutcomeBonus Outcome = "bonus"
)

// State is the wheel's field layout. Red fields cost a life, green fields are
// safe, bonus fields grant a life.
type State struct {
	Red   int `json:"redFields"`
	Green int `json:"greenFields"`
	Bonus int `json:"bonusFields"`
}

type Distribution struct {
	Red   int `json:"red"`
	Green int `json:"green"`
	Bonus int `json:"bonus"`
	Total int `json:"total"`
}

// DefaultState is the wheel every lobby starts with.
func DefaultState() State {
	return State{Red: 1, Green: 4, Bonus: 0}
}

var randUint32n = fastrand.Uint32n

// Spin draws one field uniformly over all fields, so outcome probabilities are
// exactly the field-count ratios. The state is not modified; call Harden after
// a non-death outcome.
func Spin(s State) Outcome {
	total := s.Red + s.Green + s.Bonus
	if total <= 0 {
		return OutcomeSafe
	}

	idx := int(randUint32n(uint32(total)))
	switch {
	case idx < s.Red:
		return OutcomeDeath
	case idx < s.Red+s.Green:
		return OutcomeSafe
	default:
		return OutcomeBonus
	}
}

// Harden moves one green field to red, keeping at least one green field.
func Harden(s State) State {
	if s.Green > 1 {
		s.Green--
		s.Red++
	}
	return s
}

func Dist(s State) Distribution {
	return Distribution{
		Red:   s.Red,
		Green: s.Green,
		Bonus: s.Bonus,
		Total: s.Red + s.Green + s.Bonus,
	}
}
