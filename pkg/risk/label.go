package risk

import (
	"github.com/pkg/errors"
)

// Label marks an example as labeled positive or unlabeled.
type Label int8

const (
	Positive  Label = 1
	Unlabeled Label = -1
)

func (l Label) String() string {
	switch l {
	case Positive:
		return "positive"
	case Unlabeled:
		return "unlabeled"
	default:
		return "invalid"
	}
}

// LabelsFromInts converts {+1,-1} integers into labels.
func LabelsFromInts(v []int) ([]Label, error) {
	out := make([]Label, len(v))
	for i, x := range v {
		out[i] = Label(x)
	}
	if err := ValidateLabels(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateLabels checks that every entry is either Positive or Unlabeled.
func ValidateLabels(labels []Label) error {
	for i, l := range labels {
		if l != Positive && l != Unlabeled {
			return errors.Wrapf(ErrInvalidInput, "label at index %d is %d, expected +1 or -1", i, l)
		}
	}
	return nil
}

func validateInput(scores []float64, labels []Label) error {
	if len(scores) != len(labels) {
		return errors.Wrapf(ErrInvalidInput, "scores (%d) and labels (%d) differ in length", len(scores), len(labels))
	}
	return ValidateLabels(labels)
}

// partition splits indexes by label.
func partition(labels []Label) (pos, unl []int) {
	for i, l := range labels {
		if l == Positive {
			pos = append(pos, i)
		} else {
			unl = append(unl, i)
		}
	}
	return pos, unl
}
