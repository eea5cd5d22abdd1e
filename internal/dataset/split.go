package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// newRand returns the generator used for every seeded shuffle in this package
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// StratifiedSplit partitions d into train and test sets so each label keeps
// its proportion. fraction is the share of each class sent to test, rounded
// to the nearest example. The split is reproducible for a given seed.
func StratifiedSplit(d *Dataset, fraction float64, seed int64) (train, test *Dataset, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", fraction)
	}
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}

	byLabel := make(map[int][]int)
	for i, l := range d.Labels {
		byLabel[l] = append(byLabel[l], i)
	}

	labels := make([]int, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	r := newRand(seed)
	var trainIdx, testIdx []int
	for _, l := range labels {
		idx := byLabel[l]
		r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := int(math.Round(fraction * float64(len(idx))))
		testIdx = append(testIdx, idx[:n]...)
		trainIdx = append(trainIdx, idx[n:]...)
	}

	r.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
	r.Shuffle(len(testIdx), func(i, j int) { testIdx[i], testIdx[j] = testIdx[j], testIdx[i] })

	return d.subset(trainIdx), d.subset(testIdx), nil
}

// Shuffle reorders d in place with a seeded generator
func (d *Dataset) Shuffle(seed int64) {
	r := newRand(seed)
	r.Shuffle(d.Len(), func(i, j int) {
		d.Features[i], d.Features[j] = d.Features[j], d.Features[i]
		d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]
	})
}
