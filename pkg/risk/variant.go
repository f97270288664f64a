package risk

import (
	"strings"

	"github.com/pkg/errors"
)

// Correction selects between the unconstrained (uPU) and non-negative (nnPU) risk.
type Correction int

const (
	NonNegative Correction = iota
	Unbiased
)

// Mode selects the estimator of the unlabeled-complement risk.
type Mode int

const (
	// ClosedForm averages l(-s) over the unlabeled partition only.
	ClosedForm Mode = iota
	// SingleSample averages l(-s) over the whole batch.
	SingleSample
)

// Variant is one of the four sigmoid-surrogate PU risks.
type Variant struct {
	Correction Correction
	Mode       Mode
}

var (
	NNPUcc = Variant{Correction: NonNegative, Mode: ClosedForm}
	NNPUss = Variant{Correction: NonNegative, Mode: SingleSample}
	UPUcc  = Variant{Correction: Unbiased, Mode: ClosedForm}
	UPUss  = Variant{Correction: Unbiased, Mode: SingleSample}

	variantNames = map[Variant]string{
		NNPUcc: "nnPUcc",
		NNPUss: "nnPUss",
		UPUcc:  "uPUcc",
		UPUss:  "uPUss",
	}
)

// DRPUName identifies the density-ratio estimator.
const DRPUName = "DRPUcc"

func (v Variant) String() string {
	if n, ok := variantNames[v]; ok {
		return n
	}
	return "unknown"
}

// Variants returns the names of all supported estimators, DRPU included.
func Variants() []string {
	return []string{NNPUcc.String(), NNPUss.String(), UPUcc.String(), UPUss.String(), DRPUName}
}

// ParseVariant resolves a sigmoid-surrogate variant by name (case insensitive).
func ParseVariant(name string) (Variant, error) {
	for v, n := range variantNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return v, nil
		}
	}
	return Variant{}, errors.Wrapf(ErrConfiguration, "unknown estimator: %q", name)
}

// IsDRPU reports whether name refers to the density-ratio estimator.
func IsDRPU(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), DRPUName)
}
