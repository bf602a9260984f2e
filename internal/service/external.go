package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
)

// Fallback answers used when the assistant cannot produce one.
const (
	FallbackUnavailable = "Sorry, I am having trouble connecting to the AI service right now."
	FallbackEmpty       = "I couldn't generate a response."
)

// Recognizer extracts a plate and vehicle class from an image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (*model.Recognition, error)
}

// Answerer answers a free-text question about a snapshot of the facility.
type Answerer interface {
	Answer(ctx context.Context, question string, snap model.Snapshot) (string, error)
}

// Suggest runs plate recognition on image to pre-fill a check-in. Any failure
// degrades to "no suggestion"; the ticket store is never touched.
func (s *FacilityService) Suggest(ctx context.Context, image []byte) (*model.Suggestion, bool) {
	if s.recognizer == nil || len(image) == 0 {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	rec, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		s.log.WarnContext(ctx, "plate recognition failed", "err", err, "duration", time.Since(start))
		return nil, false
	}
	if rec == nil {
		return nil, false
	}

	plate := NormalizePlate(rec.Plate)
	if plate == "" || !rec.VehicleClass.Valid() {
		s.log.InfoContext(ctx, "plate recognition returned no usable result", "plate", rec.Plate, "class", rec.VehicleClass)
		return nil, false
	}

	sug := &model.Suggestion{
		Recognition: model.Recognition{
			Plate:        plate,
			VehicleClass: rec.VehicleClass,
			Confidence:   rec.Confidence,
		},
		LowConfidence: rec.Confidence < s.lowConfidence,
	}
	s.log.InfoContext(ctx, "plate recognized", "plate", sug.Plate, "class", sug.VehicleClass,
		"confidence", sug.Confidence, "duration", time.Since(start))
	return sug, true
}

// Ask answers question from a point-in-time snapshot. Only an empty question
// is an error; service failures come back as fallback text.
func (s *FacilityService) Ask(ctx context.Context, question string, now time.Time) (model.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return model.AskResponse{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if s.answerer == nil {
		return model.AskResponse{Answer: FallbackUnavailable, Fallback: true}, nil
	}

	snap, err := s.Snapshot(ctx, now)
	if err != nil {
		return model.AskResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.answerer.Answer(ctx, question, snap)
	if err != nil {
		s.log.WarnContext(ctx, "assistant failed", "err", err)
		return model.AskResponse{Answer: FallbackUnavailable, Fallback: true}, nil
	}
	if strings.TrimSpace(answer) == "" {
		return model.AskResponse{Answer: FallbackEmpty, Fallback: true}, nil
	}
	return model.AskResponse{Answer: answer}, nil
}
