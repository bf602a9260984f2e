// Package assistant answers free-text questions about the facility by
// prompting a language model with a JSON snapshot of the current data.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"google.golang.org/genai"
)

// TextGenerator is satisfied by *gemini.Client.
type TextGenerator interface {
	Generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error)
}

// Assistant answers questions about the parking facility.
type Assistant struct {
	gen TextGenerator
	loc *time.Location
}

// New constructs an Assistant. Timestamps in the prompt are rendered in loc.
func New(gen TextGenerator, loc *time.Location) *Assistant {
	if loc == nil {
		loc = time.Local
	}
	return &Assistant{gen: gen, loc: loc}
}

type promptTicket struct {
	ID           string             `json:"id"`
	Plate        string             `json:"licensePlate"`
	VehicleClass model.VehicleClass `json:"vehicleType"`
	Status       model.Status       `json:"status"`
	EntryTime    string             `json:"entryTime"`
	ExitTime     *string            `json:"exitTime"`
	Fee          *int64             `json:"fee"`
}

type promptData struct {
	Now     string         `json:"now"`
	Tickets []promptTicket `json:"tickets"`
	Stats   model.Stats    `json:"stats"`
}

const layout = "2006-01-02 15:04:05 MST"

// Answer sends question with snap embedded as JSON.
func (a *Assistant) Answer(ctx context.Context, question string, snap model.Snapshot) (string, error) {
	prompt, err := a.prompt(question, snap)
	if err != nil {
		return "", err
	}
	return a.gen.Generate(ctx, genai.Text(prompt), nil)
}

func (a *Assistant) prompt(question string, snap model.Snapshot) (string, error) {
	data := promptData{
		Now:     snap.TakenAt.In(a.loc).Format(layout),
		Tickets: make([]promptTicket, 0, len(snap.Tickets)),
		Stats:   snap.Stats,
	}
	for _, t := range snap.Tickets {
		pt := promptTicket{
			ID:           t.ID,
			Plate:        t.Plate,
			VehicleClass: t.VehicleClass,
			Status:       t.Status(),
			EntryTime:    t.EntryTime.In(a.loc).Format(layout),
		}
		if t.ExitTime.Valid {
			exit := t.ExitTime.Time.In(a.loc).Format(layout)
			fee := t.Fee.Int64
			pt.ExitTime, pt.Fee = &exit, &fee
		}
		data.Tickets = append(data.Tickets, pt)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	return fmt.Sprintf(`You are a helpful Parking Management Assistant.
Here is the current parking facility data in JSON format:
%s

User Question: %q

Answer briefly and accurately based on the data provided. If you calculate revenue, explain the math briefly.`, raw, question), nil
}
