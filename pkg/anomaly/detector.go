// Package anomaly flags event payloads that deviate from the recently
// observed baseline. Detection is statistical: per-feature z-scores against a
// rolling window, refit on a schedule.
package anomaly

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
)

// Severity classifies how far a payload deviates from the baseline.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	// minSamples gates detection until the baseline is meaningful.
	minSamples = 20

	// windowSize bounds the rolling observation window used by Refit.
	windowSize = 1000

	// detectionScore is the score above which a payload is anomalous.
	detectionScore = 0.7

	// zNormalizer maps a z-score of 3 sigma to a score of 1.0.
	zNormalizer = 3.0
)

const featureCount = 4

// featureStat accumulates mean and variance with Welford's algorithm.
type featureStat struct {
	count int
	mean  float64
	m2    float64
}

func (s *featureStat) observe(x float64) {
	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	s.m2 += delta * (x - s.mean)
}

func (s *featureStat) stddev() float64 {
	if s.count < 2 {
		return 0
	}

	return math.Sqrt(s.m2 / float64(s.count-1))
}

// Detector scores payloads against a rolling baseline. Score is pure; Observe
// and Refit mutate the baseline and are serialized internally.
type Detector struct {
	mu       sync.RWMutex
	baseline [featureCount]featureStat
	window   [][featureCount]float64
	logger   *slog.Logger
}

func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{
		logger: logger.With("module", "anomaly"),
	}
}

// Score reports whether data deviates from the baseline, with a normalized
// deviation score and its severity. It never mutates the baseline, so scoring
// a payload does not teach the detector that payload is normal.
func (d *Detector) Score(data map[string]any) (bool, float64, Severity) {
	features := extractFeatures(data)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.baseline[0].count < minSamples {
		return false, 0, SeverityLow
	}

	maxZ := 0.0

	for i, stat := range d.baseline {
		sigma := stat.stddev()
		if sigma < 1e-9 {
			// Zero-variance feature: any change at all is a full deviation.
			if math.Abs(features[i]-stat.mean) > 1e-9 {
				maxZ = math.Max(maxZ, zNormalizer)
			}

			continue
		}

		maxZ = math.Max(maxZ, math.Abs(features[i]-stat.mean)/sigma)
	}

	score := maxZ / zNormalizer

	return score > detectionScore, score, severityFor(score)
}

// Observe folds data into the baseline and the refit window.
func (d *Detector) Observe(data map[string]any) {
	features := extractFeatures(data)

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.baseline {
		d.baseline[i].observe(features[i])
	}

	d.window = append(d.window, features)
	if len(d.window) > windowSize {
		d.window = d.window[len(d.window)-windowSize:]
	}
}

// Refit rebuilds the baseline from the rolling window, discarding the weight
// of observations that have aged out.
func (d *Detector) Refit() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.window) < minSamples {
		return
	}

	var rebuilt [featureCount]featureStat

	for _, features := range d.window {
		for i := range rebuilt {
			rebuilt[i].observe(features[i])
		}
	}

	d.baseline = rebuilt
	d.logger.Debug("Refit anomaly baseline", "samples", len(d.window))
}

// SampleCount returns how many observations the baseline currently carries.
func (d *Detector) SampleCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.baseline[0].count
}

func severityFor(score float64) Severity {
	switch {
	case score > 1.5:
		return SeverityCritical
	case score > 1.2:
		return SeverityHigh
	case score > 0.9:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// extractFeatures maps an arbitrary payload onto a fixed numeric vector:
// serialized size, field count and bucketed hashes of the type and source
// discriminator fields.
func extractFeatures(data map[string]any) [featureCount]float64 {
	var features [featureCount]float64

	if serialized, err := json.Marshal(data); err == nil {
		features[0] = float64(len(serialized))
	}

	features[1] = float64(len(data))
	features[2] = hashBucket(stringField(data, "type"))
	features[3] = hashBucket(stringField(data, "source"))

	return features
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)

	return value
}

func hashBucket(value string) float64 {
	if value == "" {
		return 0
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(value))

	return float64(h.Sum32() % 1000)
}
