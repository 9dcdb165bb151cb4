package scoring

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"crypto-trader/internal/analysis/detectors"
	"crypto-trader/internal/models"
)

// resultsGen generates detector result vectors with scores in [-1, 1] and
// non-negative weights, spread across all categories.
func resultsGen(maxN int) gopter.Gen {
	cats := detectors.Categories()
	return gen.SliceOfN(maxN, gen.Float64Range(-1, 1)).FlatMap(func(v interface{}) gopter.Gen {
		scores := v.([]float64)
		return gen.SliceOfN(len(scores), gen.Float64Range(0, 5)).Map(func(weights []float64) []detectors.Result {
			results := make([]detectors.Result, len(scores))
			for i := range scores {
				results[i] = detectors.Result{
					ID:       detectors.ID("d"),
					Category: cats[i%len(cats)],
					Weight:   weights[i],
					Score:    scores[i],
				}
			}
			return results
		})
	}, reflect.TypeOf([]detectors.Result{}))
}

func TestProperty_NormalizedScoreWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("normalized aggregate stays in [-1, 1] and scaled in [0, 1]", prop.ForAll(
		func(results []detectors.Result) bool {
			tr := Aggregate(models.TimeframeMedium, results)
			if tr.Normalized < -1 || tr.Normalized > 1 {
				return false
			}
			if tr.Scaled < 0 || tr.Scaled > 1 {
				return false
			}
			return math.Abs(tr.Scaled-(tr.Normalized+1)/2) < 1e-12
		},
		resultsGen(16),
	))

	properties.TestingRun(t)
}

func TestProperty_CategoryScoresNeverNaN(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("category scores are finite for any result vector", prop.ForAll(
		func(results []detectors.Result) bool {
			tr := Aggregate(models.TimeframeShort, results)
			for _, v := range tr.Categories {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
			return !math.IsNaN(tr.Normalized)
		},
		resultsGen(16),
	))

	properties.TestingRun(t)
}

func TestEmptyCategoryScoresZero(t *testing.T) {
	// Only CORE detectors registered: every other category must read 0.
	results := []detectors.Result{
		{ID: "a", Category: detectors.CategoryCore, Weight: 1, Score: 0.5},
		{ID: "b", Category: detectors.CategoryCore, Weight: 2, Score: -0.25},
	}
	tr := Aggregate(models.TimeframeMedium, results)

	for _, cat := range detectors.Categories() {
		if cat == detectors.CategoryCore {
			continue
		}
		if tr.Categories[cat] != 0 {
			t.Errorf("empty category %s scored %.4f, want 0", cat, tr.Categories[cat])
		}
	}
}

func TestZeroWeightCategoryScoresZero(t *testing.T) {
	results := []detectors.Result{
		{ID: "a", Category: detectors.CategorySMC, Weight: 0, Score: 1},
		{ID: "b", Category: detectors.CategorySMC, Weight: 0, Score: -1},
	}
	tr := Aggregate(models.TimeframeMedium, results)
	if tr.Categories[detectors.CategorySMC] != 0 {
		t.Errorf("zero-weight category scored %.4f, want 0", tr.Categories[detectors.CategorySMC])
	}
	if tr.Normalized != 0 {
		t.Errorf("zero-weight aggregate scored %.4f, want 0", tr.Normalized)
	}
}

func TestCategoryScoreIsWeightedAverage(t *testing.T) {
	results := []detectors.Result{
		{ID: "a", Category: detectors.CategoryCore, Weight: 1, Score: 1},
		{ID: "b", Category: detectors.CategoryCore, Weight: 3, Score: -1},
	}
	tr := Aggregate(models.TimeframeMedium, results)

	// (1*1 + -1*3) / (1+3) = -0.5
	if math.Abs(tr.Categories[detectors.CategoryCore]-(-0.5)) > 1e-12 {
		t.Errorf("got %.4f, want -0.5", tr.Categories[detectors.CategoryCore])
	}
}

func TestCompositeBlendAllocation(t *testing.T) {
	categories := map[detectors.Category]float64{
		detectors.CategoryCore:      1.0,
		detectors.CategorySMC:       0.5,
		detectors.CategoryPatterns:  -0.5,
		detectors.CategorySentiment: 0.2,
		detectors.CategoryML:        -1.0,
	}
	want := 1.0*0.40 + 0.5*0.25 + -0.5*0.20 + 0.2*0.10 + -1.0*0.05
	if got := Composite(categories); math.Abs(got-want) > 1e-12 {
		t.Errorf("composite %.6f, want %.6f", got, want)
	}
}

func TestProperty_CompositeMatchesBlendFormula(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("composite reproduces the fixed category allocation", prop.ForAll(
		func(core, smc, patterns, sentiment, ml float64) bool {
			categories := map[detectors.Category]float64{
				detectors.CategoryCore:      core,
				detectors.CategorySMC:       smc,
				detectors.CategoryPatterns:  patterns,
				detectors.CategorySentiment: sentiment,
				detectors.CategoryML:        ml,
			}
			want := core*0.40 + smc*0.25 + patterns*0.20 + sentiment*0.10 + ml*0.05
			return math.Abs(Composite(categories)-want) < 1e-12
		},
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
	))

	properties.TestingRun(t)
}

func TestDirectionClassification(t *testing.T) {
	cases := []struct {
		normalized float64
		want       models.Direction
	}{
		{0.06, models.Bullish},
		{-0.06, models.Bearish},
		{0.00, models.Neutral},
		{0.05, models.Neutral},
		{-0.05, models.Neutral},
		{1, models.Bullish},
		{-1, models.Bearish},
	}
	for _, tc := range cases {
		if got := Classify(tc.normalized); got != tc.want {
			t.Errorf("Classify(%.2f) = %s, want %s", tc.normalized, got, tc.want)
		}
	}
}

func TestSubScoreDefaultsToNeutral(t *testing.T) {
	if got := SubScore(nil, detectors.CategoryML); got != 0.5 {
		t.Errorf("empty category subscore %.2f, want 0.5", got)
	}

	results := []detectors.Result{
		{ID: "a", Category: detectors.CategoryCore, Weight: 1, Score: 1},
		{ID: "b", Category: detectors.CategoryCore, Weight: 9, Score: 0},
	}
	// Mean is unweighted: (1+0)/2 = 0.5 remapped -> 0.75.
	if got := SubScore(results, detectors.CategoryCore); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("subscore %.4f, want 0.75", got)
	}
}

func TestSubScorePoolsMultipleCategories(t *testing.T) {
	results := []detectors.Result{
		{ID: "a", Category: detectors.CategoryCore, Weight: 1, Score: 1},
		{ID: "b", Category: detectors.CategorySMC, Weight: 1, Score: 0},
		{ID: "c", Category: detectors.CategoryPatterns, Weight: 1, Score: -1},
		{ID: "d", Category: detectors.CategoryML, Weight: 1, Score: 1},
	}

	// ML is excluded: mean (1+0-1)/3 = 0 remapped -> 0.5.
	got := SubScore(results, detectors.CategoryCore, detectors.CategorySMC, detectors.CategoryPatterns)
	if math.Abs(got-0.5) > 1e-12 {
		t.Errorf("pooled subscore %.4f, want 0.5", got)
	}
}
