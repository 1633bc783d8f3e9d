package pairing

import (
	"strings"
	"unicode"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/samber/lo"
)

const (
	exactNameScore   = 100
	sharedTokenScore = 20
	brandScore       = 30
	locationScore    = 15
)

var (
	brandKeywords    = []string{"reolink", "ring", "nest", "arlo", "hikvision", "dahua"}
	locationKeywords = []string{"front", "door", "entrance", "porch", "main", "doorbell"}
	deviceWords      = []string{"camera", "cam", "sensor", "binary"}
)

// Score rates how likely a camera watches a doorbell. Ids are compared without
// their domain prefix.
func Score(doorbellID, cameraID string) int {
	doorbell := strings.ToLower(model.ObjectID(doorbellID))
	camera := strings.ToLower(model.ObjectID(cameraID))
	doorbellTokens := tokenize(doorbell)
	cameraTokens := tokenize(camera)

	score := 0
	if name := normalizedName(doorbellTokens); name != "" && name == normalizedName(cameraTokens) {
		score += exactNameScore
	}

	shared := lo.Filter(lo.Uniq(doorbellTokens), func(tok string, _ int) bool {
		return lo.Contains(cameraTokens, tok)
	})
	score += sharedTokenScore * len(shared)

	for _, brand := range brandKeywords {
		if strings.Contains(doorbell, brand) && strings.Contains(camera, brand) {
			score += brandScore
		}
	}
	for _, location := range locationKeywords {
		if strings.Contains(doorbell, location) && strings.Contains(camera, location) {
			score += locationScore
		}
	}
	return score
}

func tokenize(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizedName(tokens []string) string {
	return strings.Join(lo.Filter(tokens, func(tok string, _ int) bool {
		return !lo.Contains(deviceWords, tok)
	}), "_")
}
