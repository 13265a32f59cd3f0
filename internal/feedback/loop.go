// Package feedback watches how users act on surfaced matches and decides
// when the scoring approach needs revision. It is advisory only: the loop
// emits a signal for a human or a higher-level process, it never swaps
// scoring logic itself.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/fundscout/internal/models"
)

const (
	// HighBand and LowBand bound the confusion matrix. Scores in
	// [LowBand, HighBand) are genuine uncertainty and are excluded rather
	// than forced into either bucket.
	HighBand = 70
	LowBand  = 50

	// MinSampleSize below which precision/recall would mislead.
	MinSampleSize = 5

	// ReviewEvery is the trigger cadence in feedback events.
	ReviewEvery = 10

	// precisionFloor / recallFloor keep the current approach when both hold.
	precisionFloor = 0.7
	recallFloor    = 0.7
)

// Store is what the loop needs from persistence: an append-only event log.
type Store interface {
	AppendFeedback(ctx context.Context, event models.FeedbackEvent) error
	ListFeedback(ctx context.Context) ([]models.FeedbackEvent, error)
	CountFeedback(ctx context.Context) (int, error)
}

// Accuracy is a snapshot of scoring quality under the fixed
// confusion-matrix convention.
type Accuracy struct {
	Precision        float64 `json:"precision"`
	Recall           float64 `json:"recall"`
	SampleSize       int     `json:"sample_size"`
	Excluded         int     `json:"excluded"` // mid-band events left out
	InsufficientData bool    `json:"insufficient_data"`
}

// RevisionSignal is the structured advisory output emitted when accuracy
// drops below the floors.
type RevisionSignal struct {
	Accuracy   Accuracy  `json:"accuracy"`
	Message    string    `json:"message"`
	EmittedAt  time.Time `json:"emitted_at"`
	EventCount int       `json:"event_count"`
}

// Loop records feedback and periodically re-evaluates scoring accuracy.
type Loop struct {
	store Store
	log   *zap.Logger
}

func NewLoop(store Store, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{store: store, log: log}
}

// Record appends one immutable feedback event and, every ReviewEvery events,
// re-evaluates accuracy. The returned signal is nil when the current
// approach should be kept (or when it is not a review point).
func (l *Loop) Record(ctx context.Context, recordID uuid.UUID, predictedScore int, action models.FeedbackAction, note string) (*RevisionSignal, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown feedback action %q", action)
	}

	event := models.FeedbackEvent{
		ID:             uuid.New(),
		RecordID:       recordID,
		PredictedScore: predictedScore,
		Action:         action,
		Note:           note,
		CreatedAt:      time.Now().UTC(),
	}
	if err := l.store.AppendFeedback(ctx, event); err != nil {
		return nil, fmt.Errorf("appending feedback: %w", err)
	}

	count, err := l.store.CountFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting feedback: %w", err)
	}
	if count%ReviewEvery != 0 {
		return nil, nil
	}
	return l.Review(ctx, count)
}

// Review computes accuracy over the full log and decides whether to emit a
// revision signal.
func (l *Loop) Review(ctx context.Context, eventCount int) (*RevisionSignal, error) {
	events, err := l.store.ListFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading feedback log: %w", err)
	}
	acc := ComputeAccuracy(events)

	if acc.InsufficientData {
		l.log.Info("accuracy review skipped, insufficient data",
			zap.Int("sample_size", acc.SampleSize))
		return nil, nil
	}
	if acc.Precision > precisionFloor && acc.Recall > recallFloor {
		l.log.Info("scoring accuracy acceptable, keeping current approach",
			zap.Float64("precision", acc.Precision),
			zap.Float64("recall", acc.Recall),
			zap.Int("sample_size", acc.SampleSize))
		return nil, nil
	}

	signal := &RevisionSignal{
		Accuracy: acc,
		Message: fmt.Sprintf(
			"scoring accuracy below floor: precision %.2f, recall %.2f over %d classified events (%d mid-band excluded); scoring logic should be reviewed",
			acc.Precision, acc.Recall, acc.SampleSize, acc.Excluded),
		EmittedAt:  time.Now().UTC(),
		EventCount: eventCount,
	}
	l.log.Warn("emitting scoring revision signal", zap.String("message", signal.Message))
	return signal, nil
}

// ComputeAccuracy classifies events with the fixed convention: score >= 70
// with a positive action is a true positive, with a negative action a false
// positive; score < 50 with a negative action is a true negative, with a
// positive action a false negative. Mid-band scores are excluded.
func ComputeAccuracy(events []models.FeedbackEvent) Accuracy {
	var tp, fp, tn, fn, excluded int
	for _, event := range events {
		switch {
		case event.PredictedScore >= HighBand && event.Action.Positive():
			tp++
		case event.PredictedScore >= HighBand && event.Action.Negative():
			fp++
		case event.PredictedScore < LowBand && event.Action.Negative():
			tn++
		case event.PredictedScore < LowBand && event.Action.Positive():
			fn++
		default:
			excluded++
		}
	}

	acc := Accuracy{
		SampleSize: tp + fp + tn + fn,
		Excluded:   excluded,
	}
	if acc.SampleSize < MinSampleSize {
		acc.InsufficientData = true
		return acc
	}
	if tp+fp > 0 {
		acc.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		acc.Recall = float64(tp) / float64(tp+fn)
	}
	return acc
}
