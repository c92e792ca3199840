// Package profiles owns the plant profile catalog and the active profile.
package profiles

import (
	"regexp"
	"strings"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// DefaultIcon is used for profiles that do not come from the catalog.
const DefaultIcon = "🌱"

var builtin = []models.PlantProfile{
	{ID: "tomato", Name: "Tomato", TempMin: 18, TempMax: 27, HumidityMin: 60, HumidityMax: 80, WaterLevel: 70, Icon: "🍅"},
	{ID: "basil", Name: "Basil", TempMin: 20, TempMax: 30, HumidityMin: 50, HumidityMax: 70, WaterLevel: 65, Icon: "🌿"},
	{ID: "lettuce", Name: "Lettuce", TempMin: 15, TempMax: 21, HumidityMin: 40, HumidityMax: 60, WaterLevel: 75, Icon: "🥬"},
	{ID: "pepper", Name: "Bell Pepper", TempMin: 21, TempMax: 29, HumidityMin: 50, HumidityMax: 70, WaterLevel: 60, Icon: "🌶️"},
	{ID: "strawberry", Name: "Strawberry", TempMin: 15, TempMax: 26, HumidityMin: 60, HumidityMax: 80, WaterLevel: 80, Icon: "🍓"},
}

// Catalog returns a copy of the built-in profiles. The first entry is the
// startup default.
func Catalog() []models.PlantProfile {
	out := make([]models.PlantProfile, len(builtin))
	copy(out, builtin)
	return out
}

// Lookup finds a catalog profile by id.
func Lookup(id string) (models.PlantProfile, bool) {
	for _, p := range builtin {
		if p.ID == id {
			return p, true
		}
	}
	return models.PlantProfile{}, false
}

// LookupName finds a catalog profile by display name.
func LookupName(name string) (models.PlantProfile, bool) {
	for _, p := range builtin {
		if p.Name == name {
			return p, true
		}
	}
	return models.PlantProfile{}, false
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Slug derives a profile id from a display name: lower-cased, with every
// whitespace run replaced by "_". "Cili Padi" becomes "cili_padi".
func Slug(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}
