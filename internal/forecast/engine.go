package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"salesforecast/internal/dataset"
	"salesforecast/internal/frame"
	"salesforecast/internal/model"
	"salesforecast/pkg/contracts/domain"
)

// ColPredicted holds the rounded model output
const ColPredicted = "Predicted_Sales"

// FeatureColumns returns the history columns other than the target and the
// raw date, in history order
func FeatureColumns(history *frame.Frame) []string {
	cols := history.Columns()
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == dataset.ColSales || c == dataset.ColDate {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ValidateFeatures compares the available feature set with the set the model
// expects. Order is ignored.
func ValidateFeatures(available, expected []string) error {
	have := make(map[string]struct{}, len(available))
	for _, f := range available {
		have[f] = struct{}{}
	}
	want := make(map[string]struct{}, len(expected))
	for _, f := range expected {
		want[f] = struct{}{}
	}

	var missing, unexpected []string
	for _, f := range expected {
		if _, ok := have[f]; !ok {
			missing = append(missing, f)
		}
	}
	for _, f := range available {
		if _, ok := want[f]; !ok {
			unexpected = append(unexpected, f)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return &domain.FeatureMismatchError{Missing: missing, Unexpected: unexpected}
}

// Engine scores future frames
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an engine
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With(slog.String("component", "forecast_engine"))}
}

// Predict scores every row of future with m over the given feature columns and
// returns a new frame with Predicted_Sales appended. Outputs are rounded half
// to even and are not clamped, so a model may yield negative demand.
func (e *Engine) Predict(ctx context.Context, m model.Model, future *frame.Frame, features []string) (*frame.Frame, error) {
	var missing []string
	for _, f := range features {
		if !future.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.FeatureMismatchError{Missing: missing}
	}

	preds := make([]float64, future.Len())
	if future.Len() > 0 {
		x, err := model.NewFeatureMatrix(future, features)
		if err != nil {
			return nil, &domain.InvariantViolationError{Invariant: "feature-matrix", Detail: err.Error()}
		}
		raw, err := e.score(ctx, m, x)
		if err != nil {
			return nil, err
		}
		for i, v := range raw {
			preds[i] = math.RoundToEven(v)
		}
	}

	out, err := future.With(frame.NewNumberColumn(ColPredicted, preds))
	if err != nil {
		return nil, &domain.InvariantViolationError{Invariant: "prediction-column", Detail: err.Error()}
	}

	e.logger.DebugContext(ctx, "future frame scored",
		slog.Int("rows", out.Len()),
		slog.Int("features", len(features)))
	return out, nil
}

// score calls the model and checks its output
func (e *Engine) score(ctx context.Context, m model.Model, x *model.FeatureMatrix) (raw []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "model panicked", slog.Any("panic", r))
			raw = nil
			err = &domain.ModelInferenceError{Reason: fmt.Sprintf("model panicked: %v", r)}
		}
	}()

	raw, err = m.Predict(ctx, x)
	if err != nil {
		return nil, &domain.ModelInferenceError{Reason: "model returned an error", Cause: err}
	}
	if len(raw) != x.Rows() {
		return nil, &domain.ModelInferenceError{Reason: fmt.Sprintf("model returned %d predictions for %d rows", len(raw), x.Rows())}
	}
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &domain.ModelInferenceError{Reason: fmt.Sprintf("model returned a non-finite prediction at row %d", i)}
		}
	}
	return raw, nil
}
