package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"google.golang.org/genai"
)

// TextGenerator is satisfied by *gemini.Client.
type TextGenerator interface {
	Generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error)
}

const scanPrompt = `Analyze this image of a vehicle.
1. Identify the license plate number. Remove spaces and special characters from the plate.
2. Identify the vehicle type (CAR, MOTORCYCLE, or TRUCK).
3. Estimate your confidence in the plate reading between 0 and 1.
Return the result in JSON format.`

var scanSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"licensePlate": {Type: genai.TypeString},
		"vehicleType":  {Type: genai.TypeString, Enum: []string{string(model.Car), string(model.Motorcycle), string(model.Truck)}},
		"confidence":   {Type: genai.TypeNumber, Description: "Confidence score between 0 and 1"},
	},
	Required: []string{"licensePlate", "vehicleType"},
}

// Gemini recognizes plates by prompting a multimodal model for JSON.
type Gemini struct {
	gen TextGenerator
}

// NewGemini constructs a Gemini recognizer.
func NewGemini(gen TextGenerator) *Gemini {
	return &Gemini{gen: gen}
}

// Recognize sends image with a structured-output schema and parses the reply.
func (g *Gemini) Recognize(ctx context.Context, image []byte) (*model.Recognition, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(image, imageMIMEType(image)),
		genai.NewPartFromText(scanPrompt),
	}, genai.RoleUser)}

	text, err := g.gen.Generate(ctx, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   scanSchema,
	})
	if err != nil {
		return nil, err
	}
	return parseScan(text)
}

type scanResult struct {
	LicensePlate string   `json:"licensePlate"`
	VehicleType  string   `json:"vehicleType"`
	Confidence   *float64 `json:"confidence"`
}

func parseScan(text string) (*model.Recognition, error) {
	var res scanResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &res); err != nil {
		return nil, fmt.Errorf("decode scan result: %w", err)
	}

	plate := cleanPlate(res.LicensePlate)
	if plate == "" {
		return nil, ErrNoPlate
	}
	class, err := model.ParseVehicleClass(res.VehicleType)
	if err != nil {
		return nil, err
	}

	// A reply without a score counts as fully confident.
	conf := 1.0
	if res.Confidence != nil {
		conf = min(max(*res.Confidence, 0), 1)
	}
	return &model.Recognition{Plate: plate, VehicleClass: class, Confidence: conf}, nil
}

// imageMIMEType sniffs the content type, defaulting to JPEG.
func imageMIMEType(image []byte) string {
	ct := http.DetectContentType(image)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
