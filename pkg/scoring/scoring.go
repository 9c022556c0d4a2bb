// Package scoring holds the pure normalization and aggregation math of the
// ranking pipeline. Every function is stateless: identical arguments always
// produce identical results, so a full recompute is reproducible.
package scoring

// Clamp bounds v to the common 0-100 score range.
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// NormalizeLinear rescales v against the observed maximum of the current
// batch. A zero or negative max means nothing in the batch had signal.
func NormalizeLinear(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return Clamp(v / max * 100)
}

// NormalizeScale converts a fixed-scale metric (e.g. a 5-point rating) to
// 0-100 by dividing through the scale maximum.
func NormalizeScale(v, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return Clamp(v / scale * 100)
}

// NormalizeInverse maps a "lower is better" metric such as price to a value
// score: free (zero cost) is 100, ceiling and above is 0.
func NormalizeInverse(cost, ceiling float64) float64 {
	if cost <= 0 {
		return 100
	}
	if ceiling <= 0 {
		return 0
	}
	return Clamp((1 - cost/ceiling) * 100)
}

// Engagement is a tool's raw engagement counters.
type Engagement struct {
	Visits    int
	Reviews   int
	Bookmarks int
	Upvotes   int
}

// Max folds another tool's counters into the running per-batch maxima.
func (e *Engagement) Max(o Engagement) {
	if o.Visits > e.Visits {
		e.Visits = o.Visits
	}
	if o.Reviews > e.Reviews {
		e.Reviews = o.Reviews
	}
	if o.Bookmarks > e.Bookmarks {
		e.Bookmarks = o.Bookmarks
	}
	if o.Upvotes > e.Upvotes {
		e.Upvotes = o.Upvotes
	}
}

// InternalScore combines engagement counters, each normalized against the
// per-run maxima, using the rating_aggregation weights.
func InternalScore(e, maxima Engagement, w map[string]float64) float64 {
	score := NormalizeLinear(float64(e.Visits), float64(maxima.Visits))*w["visits_weight"] +
		NormalizeLinear(float64(e.Reviews), float64(maxima.Reviews))*w["reviews_weight"] +
		NormalizeLinear(float64(e.Bookmarks), float64(maxima.Bookmarks))*w["bookmarks_weight"] +
		NormalizeLinear(float64(e.Upvotes), float64(maxima.Upvotes))*w["upvotes_weight"]
	return Clamp(score)
}

// ExternalScore averages the per-source normalized scores a tool actually
// has. Sources with no row are excluded, never counted as zero, so thin
// coverage does not drag a tool down. No sources at all scores 0.
func ExternalScore(available []float64) float64 {
	if len(available) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range available {
		sum += v
	}
	return Clamp(sum / float64(len(available)))
}

// Hybrid blends the internal and external components with the hybrid weights.
func Hybrid(internal, external float64, w map[string]float64) float64 {
	return Clamp(internal*w["internal_weight"] + external*w["external_weight"])
}
