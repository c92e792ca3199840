// Package directive recognizes the UPDATE_PLANT command that the garden
// assistant embeds in its replies.
package directive

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sproutwatch/sproutwatch/internal/profiles"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// Token is the fixed directive keyword.
const Token = "UPDATE_PLANT"

// Format is the directive shape the assistant is instructed to emit.
const Format = Token + ":[plant_name]:[temp_min]:[temp_max]:[humidity_min]:[humidity_max]:[water_level]"

var pattern = regexp.MustCompile(Token + `:([^:\r\n]+):(\d+):(\d+):(\d+):(\d+):(\d+)`)

// Parse looks for the first directive in a finalized reply and turns it into
// a candidate profile. It returns false when there is no directive, or when
// the first one does not produce a valid profile (numbers out of range,
// inverted ranges, water level above 100). Later directives in the same
// reply are never considered.
func Parse(reply string) (models.PlantProfile, bool) {
	m := pattern.FindStringSubmatch(reply)
	if m == nil {
		return models.PlantProfile{}, false
	}

	name := strings.TrimSpace(m[1])
	if name == "" {
		return models.PlantProfile{}, false
	}

	var nums [5]int
	for i := range nums {
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return models.PlantProfile{}, false
		}
		nums[i] = n
	}

	p := models.PlantProfile{
		ID:          profiles.Slug(name),
		Name:        name,
		TempMin:     nums[0],
		TempMax:     nums[1],
		HumidityMin: nums[2],
		HumidityMax: nums[3],
		WaterLevel:  nums[4],
		Icon:        profiles.DefaultIcon,
	}
	if profiles.Validate(p) != nil {
		return models.PlantProfile{}, false
	}
	return p, true
}

// Contains reports whether text holds anything shaped like a directive,
// valid or not.
func Contains(text string) bool {
	return pattern.MatchString(text)
}
