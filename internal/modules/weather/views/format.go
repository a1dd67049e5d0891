package views

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"
)

const defaultIcon = "🌤️"

// iconRules are checked in order; the first keyword found in the description wins.
var iconRules = []struct {
	keywords []string
	icon     string
}{
	{keywords: []string{"clear"}, icon: "☀️"},
	{keywords: []string{"cloud"}, icon: "☁️"},
	{keywords: []string{"rain"}, icon: "🌧️"},
	{keywords: []string{"snow"}, icon: "❄️"},
	{keywords: []string{"mist", "fog"}, icon: "🌫️"},
	{keywords: []string{"thunder"}, icon: "⛈️"},
}

var cardPalette = []string{
	"bg-gradient-to-br from-blue-400 to-blue-600",
	"bg-gradient-to-br from-purple-400 to-purple-600",
	"bg-gradient-to-br from-green-400 to-green-600",
	"bg-gradient-to-br from-orange-400 to-orange-600",
	"bg-gradient-to-br from-red-400 to-red-600",
}

var funcs = template.FuncMap{
	"clock": FormatClock,
	"day":   FormatDay,
}

// WeatherIcon picks an emoji for a free-text condition, case-insensitively.
func WeatherIcon(description string) string {
	desc := strings.ToLower(description)
	for _, rule := range iconRules {
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				return rule.icon
			}
		}
	}
	return defaultIcon
}

// CardColor cycles through the palette by card position.
func CardColor(index int) string {
	if index < 0 {
		index = -index
	}
	return cardPalette[index%len(cardPalette)]
}

// FormatTemp renders a temperature in degrees Celsius without trailing zeros.
func FormatTemp(temp float64) string {
	return strconv.FormatFloat(temp, 'f', -1, 64) + "°C"
}

// FormatClock renders t as e.g. "3.07pm".
func FormatClock(t time.Time) string {
	h := t.Hour()
	ampm := "am"
	if h >= 12 {
		ampm = "pm"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d.%02d%s", h, t.Minute(), ampm)
}

// FormatDay renders t as e.g. "Oct 19".
func FormatDay(t time.Time) string {
	return t.Format("Jan 2")
}
