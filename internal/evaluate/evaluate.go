package evaluate

import (
	"context"
	"fmt"

	"github.com/AnkitChauhan19/Audiva/internal/dataset"
	"github.com/AnkitChauhan19/Audiva/internal/model"
	"github.com/AnkitChauhan19/Audiva/internal/scaler"
	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

// Evaluate scales every row of d, classifies it and scores the labels
// against d.Labels. A row is predicted real when its probability is above
// threshold.
func Evaluate(ctx context.Context, c model.Classifier, s *scaler.State, d *dataset.Dataset, threshold float64) (*Report, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.Check(d.Fingerprint, d.Dim()); err != nil {
		return nil, err
	}

	actual := make([]verdict.Label, d.Len())
	predicted := make([]verdict.Label, d.Len())
	for i, row := range d.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scaled, err := s.TransformVector(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		prob, err := c.Predict(scaled)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		actual[i] = verdict.Label(d.Labels[i])
		predicted[i] = verdict.Fake
		if prob > threshold {
			predicted[i] = verdict.Real
		}
	}

	return NewReport(actual, predicted)
}
