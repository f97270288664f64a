package metrics

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Values are binary classification metrics for {+1,-1} targets.
type Values struct {
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	AUC       float64 `json:"auc" yaml:"auc"`
	// Positive is the fraction of predictions equal to +1.
	Positive float64 `json:"pos_fraction" yaml:"pos_fraction"`
	Count    int     `json:"count" yaml:"count"`
}

// Compute compares predictions against targets. Anything other than +1 counts
// as negative. AUC is computed on the hard predictions.
func Compute(targets, preds []int) (*Values, error) {
	if len(targets) != len(preds) {
		return nil, errors.Errorf("targets (%d) and predictions (%d) differ in length", len(targets), len(preds))
	}
	v := &Values{Count: len(targets)}
	if len(targets) == 0 {
		return v, nil
	}

	var tp, fp, fn, tn int
	for i := range targets {
		t, p := targets[i] == 1, preds[i] == 1
		switch {
		case t && p:
			tp++
		case !t && p:
			fp++
		case t && !p:
			fn++
		default:
			tn++
		}
	}

	n := float64(len(targets))
	v.Accuracy = float64(tp+tn) / n
	v.Positive = float64(tp+fp) / n
	if tp+fp > 0 {
		v.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		v.Recall = float64(tp) / float64(tp+fn)
	}
	if v.Precision+v.Recall > 0 {
		v.F1 = 2 * v.Precision * v.Recall / (v.Precision + v.Recall)
	}

	y := make([]float64, len(preds))
	for i, p := range preds {
		if p == 1 {
			y[i] = 1
		}
	}
	v.AUC = AUC(y, targets)
	return v, nil
}

// AUC returns the area under the ROC curve of scores against {+1,-1} targets.
// It is zero when only one class is present.
func AUC(scores []float64, targets []int) float64 {
	y := make([]float64, len(scores))
	copy(y, scores)
	classes := make([]bool, len(targets))
	var pos int
	for i, t := range targets {
		classes[i] = t == 1
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(targets) {
		return 0
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
