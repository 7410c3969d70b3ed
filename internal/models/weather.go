package models

import (
	"strconv"
	"time"
)

// Weather sentinels. A workout starts pending and resolves exactly once.
const (
	WeatherPending     = "Fetching..."
	WeatherUnavailable = "N/A"
)

type WeatherReport struct {
	Conditions  string    `json:"conditions"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Place       string    `json:"place,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Summary renders the report as "<condition>, <temperature>°C".
func (r WeatherReport) Summary() string {
	return r.Conditions + ", " + strconv.FormatFloat(r.Temperature, 'f', -1, 64) + "°C"
}
