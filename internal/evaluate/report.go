package evaluate

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

// ErrLengthMismatch is returned when label and prediction counts differ
var ErrLengthMismatch = errors.New("evaluate: labels and predictions differ in length")

// ClassMetrics are the one-vs-rest scores for a single label
type ClassMetrics struct {
	Label     verdict.Label `json:"label"`
	Precision float64       `json:"precision"`
	Recall    float64       `json:"recall"`
	F1        float64       `json:"f1"`
	Support   int           `json:"support"`
}

// Averages summarize ClassMetrics across labels
type Averages struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Report is a binary classification report. Confusion is indexed
// [true label][predicted label].
type Report struct {
	Classes   []ClassMetrics `json:"classes"`
	Accuracy  float64        `json:"accuracy"`
	Macro     Averages       `json:"macro_avg"`
	Weighted  Averages       `json:"weighted_avg"`
	Total     int            `json:"total"`
	Confusion [2][2]int      `json:"confusion"`
}

// NewReport scores predicted against actual labels. Ratios with a zero
// denominator are reported as 0.
func NewReport(actual, predicted []verdict.Label) (*Report, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("%w: %d labels, %d predictions", ErrLengthMismatch, len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return nil, errors.New("evaluate: nothing to score")
	}

	r := &Report{Total: len(actual)}
	correct := 0
	for i, a := range actual {
		p := predicted[i]
		if !known(a) || !known(p) {
			return nil, fmt.Errorf("evaluate: unknown label at row %d", i)
		}
		r.Confusion[a][p]++
		if a == p {
			correct++
		}
	}
	r.Accuracy = float64(correct) / float64(r.Total)

	for _, l := range []verdict.Label{verdict.Fake, verdict.Real} {
		tp := r.Confusion[l][l]
		support := r.Confusion[l][0] + r.Confusion[l][1]
		predictedAs := r.Confusion[0][l] + r.Confusion[1][l]

		c := ClassMetrics{
			Label:     l,
			Precision: ratio(tp, predictedAs),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if c.Precision+c.Recall > 0 {
			c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
		}
		r.Classes = append(r.Classes, c)

		n := float64(len(r.Classes))
		w := float64(support) / float64(r.Total)
		r.Macro.Precision += (c.Precision - r.Macro.Precision) / n
		r.Macro.Recall += (c.Recall - r.Macro.Recall) / n
		r.Macro.F1 += (c.F1 - r.Macro.F1) / n
		r.Weighted.Precision += w * c.Precision
		r.Weighted.Recall += w * c.Recall
		r.Weighted.F1 += w * c.F1
	}

	return r, nil
}

func known(l verdict.Label) bool {
	return l == verdict.Fake || l == verdict.Real
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// String renders the report as an aligned table
func (r *Report) String() string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, c := range r.Classes {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintln(tw, "\t\t\t\t\t")
	fmt.Fprintf(tw, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.Total)
	fmt.Fprintf(tw, "macro avg\t%.2f\t%.2f\t%.2f\t%d\t\n", r.Macro.Precision, r.Macro.Recall, r.Macro.F1, r.Total)
	fmt.Fprintf(tw, "weighted avg\t%.2f\t%.2f\t%.2f\t%d\t\n", r.Weighted.Precision, r.Weighted.Recall, r.Weighted.F1, r.Total)
	tw.Flush()

	return sb.String()
}
