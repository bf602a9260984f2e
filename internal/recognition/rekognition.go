package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"golang.org/x/sync/errgroup"
)

// RekognitionAPI is the subset of the Rekognition client used here.
type RekognitionAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// labelClasses maps Rekognition label names to vehicle classes.
var labelClasses = map[string]model.VehicleClass{
	"car":           model.Car,
	"automobile":    model.Car,
	"sedan":         model.Car,
	"suv":           model.Car,
	"motorcycle":    model.Motorcycle,
	"motor scooter": model.Motorcycle,
	"moped":         model.Motorcycle,
	"scooter":       model.Motorcycle,
	"truck":         model.Truck,
	"pickup truck":  model.Truck,
	"lorry":         model.Truck,
}

// Rekognition recognizes plates with DetectText and the vehicle class with
// DetectLabels, calling both in parallel.
type Rekognition struct {
	client RekognitionAPI
	log    *slog.Logger
}

// NewRekognition constructs a Rekognition recognizer.
func NewRekognition(client RekognitionAPI, logger *slog.Logger) *Rekognition {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rekognition{client: client, log: logger}
}

// Recognize returns the most confident plate-shaped text and the most
// confident vehicle label. Confidence is the lower of the two, scaled to 0..1;
// a missing vehicle label falls back to CAR with zero confidence.
func (r *Rekognition) Recognize(ctx context.Context, image []byte) (*model.Recognition, error) {
	img := &types.Image{Bytes: image}

	var (
		texts  *rekognition.DetectTextOutput
		labels *rekognition.DetectLabelsOutput
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := r.client.DetectText(gctx, &rekognition.DetectTextInput{Image: img})
		if err != nil {
			return fmt.Errorf("rekognition detect text: %w", err)
		}
		texts = out
		return nil
	})
	g.Go(func() error {
		out, err := r.client.DetectLabels(gctx, &rekognition.DetectLabelsInput{
			Image:         img,
			MaxLabels:     aws.Int32(25),
			MinConfidence: aws.Float32(50),
		})
		if err != nil {
			return fmt.Errorf("rekognition detect labels: %w", err)
		}
		labels = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plate, plateConf := bestPlate(texts.TextDetections)
	if plate == "" {
		r.log.DebugContext(ctx, "rekognition found no plate", "detections", len(texts.TextDetections))
		return nil, ErrNoPlate
	}
	class, classConf := bestClass(labels.Labels)

	return &model.Recognition{
		Plate:        plate,
		VehicleClass: class,
		Confidence:   float64(min(plateConf, classConf)) / 100,
	}, nil
}

func bestPlate(detections []types.TextDetection) (string, float32) {
	var (
		best string
		conf float32
	)
	for _, d := range detections {
		if d.Type != types.TextTypesLine && d.Type != types.TextTypesWord {
			continue
		}
		p := cleanPlate(aws.ToString(d.DetectedText))
		c := aws.ToFloat32(d.Confidence)
		if looksLikePlate(p) && c > conf {
			best, conf = p, c
		}
	}
	return best, conf
}

func bestClass(labels []types.Label) (model.VehicleClass, float32) {
	class := model.Car
	var conf float32
	for _, l := range labels {
		c, ok := labelClasses[strings.ToLower(aws.ToString(l.Name))]
		if !ok {
			continue
		}
		if lc := aws.ToFloat32(l.Confidence); lc > conf {
			class, conf = c, lc
		}
	}
	return class, conf
}
