// Package display keeps the rendered workout list. Cards are keyed by workout id and
// listed newest first.
package display

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kjstillabower/workout-journal/internal/models"
)

const weatherIcon = "☁️ "

// Card is the rendered form of one workout.
type Card struct {
	ID          string      `json:"id"`
	Type        models.Type `json:"type"`
	Title       string      `json:"title"`
	Icon        string      `json:"icon"`
	Distance    float64     `json:"distance"`
	Duration    float64     `json:"duration"`
	Metric      string      `json:"metric"`
	MetricUnit  string      `json:"metricUnit"`
	Detail      string      `json:"detail"`
	DetailUnit  string      `json:"detailUnit"`
	Weather     string      `json:"weather"`
	WeatherDone bool        `json:"weatherResolved"`
}

// String renders the card as three text lines.
func (c Card) String() string {
	var b strings.Builder
	b.WriteString(c.Title)
	b.WriteString("\n  ")
	fmt.Fprintf(&b, "%s %s km  ⏱ %s min  ⚡️ %s %s  ", c.Icon, num(c.Distance), num(c.Duration), c.Metric, c.MetricUnit)
	if c.Type == models.TypeRunning {
		b.WriteString("🦶🏼 ")
	} else {
		b.WriteString("⛰ ")
	}
	fmt.Fprintf(&b, "%s %s\n  %s", c.Detail, c.DetailUnit, c.Weather)
	return b.String()
}

// NewCard renders w. Pace and speed are shown with one decimal.
func NewCard(w models.Workout) Card {
	c := Card{
		ID:          w.ID(),
		Type:        w.Type(),
		Title:       w.Description(),
		Distance:    w.Distance(),
		Duration:    w.Duration(),
		Weather:     weatherLine(w.Weather()),
		WeatherDone: w.WeatherResolved(),
	}
	switch v := w.(type) {
	case *models.Running:
		c.Icon = "🏃‍♂️"
		c.Metric, c.MetricUnit = strconv.FormatFloat(v.Pace(), 'f', 1, 64), "min/km"
		c.Detail, c.DetailUnit = num(v.Cadence()), "spm"
	case *models.Cycling:
		c.Icon = "🚴‍♀️"
		c.Metric, c.MetricUnit = strconv.FormatFloat(v.Speed(), 'f', 1, 64), "km/h"
		c.Detail, c.DetailUnit = num(v.ElevationGain()), "m"
	}
	return c
}

func weatherLine(text string) string {
	if text == models.WeatherPending || text == "" {
		return weatherIcon + "Fetching weather..."
	}
	return weatherIcon + text
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Panel is the concurrency-safe list of rendered cards.
type Panel struct {
	mu    sync.RWMutex
	cards map[string]Card
	order []string
}

func NewPanel() *Panel {
	return &Panel{cards: make(map[string]Card)}
}

// Render adds or replaces the card for w. A new card goes to the top of the list.
func (p *Panel) Render(w models.Workout) Card {
	c := NewCard(w)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.cards[c.ID]; !ok {
		p.order = append([]string{c.ID}, p.order...)
	}
	p.cards[c.ID] = c
	return c
}

// UpdateWeather replaces the weather line of card id. It returns false when no such
// card is rendered, which happens after a reset.
func (p *Panel) UpdateWeather(id, text string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cards[id]
	if !ok {
		return false
	}
	c.Weather = weatherLine(text)
	c.WeatherDone = text != models.WeatherPending
	p.cards[id] = c
	return true
}

func (p *Panel) Get(id string) (Card, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.cards[id]
	return c, ok
}

// List returns the cards newest first.
func (p *Panel) List() []Card {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Card, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.cards[id])
	}
	return out
}

func (p *Panel) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// Reset removes every card.
func (p *Panel) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cards = make(map[string]Card)
	p.order = nil
}
