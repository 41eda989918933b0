package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

func errInvalidOutput(format string) error {
	return fmt.Errorf("invalid output format %q: must be text or json", format)
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

// PrintEvent outputs one relay event; JSON output is one object per line
func (o *Output) PrintEvent(evt Event) {
	if o.format == "json" {
		data, _ := json.Marshal(evt)
		_, _ = fmt.Fprintln(o.w, string(data))
		return
	}

	display := string(evt.Data)
	if len(display) > 120 {
		display = display[:120] + "..."
	}
	_, _ = fmt.Fprintf(o.w, "[%s] %s: %s\n", evt.Time.Format("15:04:05"), evt.Event, display)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case PlayerList:
		o.printPlayerList(v)
	case CountResult:
		_, _ = fmt.Fprintf(o.w, "Online: %d\n", v.Count)
	case CharacterResult:
		_, _ = fmt.Fprintln(o.w, v.Emoji)
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Emoji      string    `json:"emoji"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	LastUpdate time.Time `json:"last_update"`
}

// PlayerList response type
type PlayerList struct {
	Players []Player `json:"players"`
}

// CountResult response type
type CountResult struct {
	Count int `json:"count"`
}

// CharacterResult response type
type CharacterResult struct {
	Emoji string `json:"emoji"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Event is a relay event as received over the socket
type Event struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (o *Output) printPlayer(p Player) {
	_, _ = fmt.Fprintf(o.w, "Player: %s %s (%s)\n", p.Emoji, p.Username, p.ID)
	_, _ = fmt.Fprintf(o.w, "Position: (%g, %g)\n", p.X, p.Y)
	_, _ = fmt.Fprintf(o.w, "Last active: %s\n", p.LastUpdate.Format(time.RFC3339))
}

func (o *Output) printPlayerList(l PlayerList) {
	_, _ = fmt.Fprintf(o.w, "Players (%d):\n", len(l.Players))
	for _, p := range l.Players {
		_, _ = fmt.Fprintf(o.w, "  - %s %s (%s) at (%g, %g)\n", p.Emoji, p.Username, p.ID, p.X, p.Y)
	}
}
