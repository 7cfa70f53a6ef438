package visit

// Weights for the six foundational fingerprint signals. They sum to exactly
// 100, so the quality score caps naturally.
const (
	weightCanvas   = 25
	weightWebGL    = 25
	weightFonts    = 20
	weightScreen   = 10
	weightTimezone = 10
	weightLanguage = 10
)

// QualityScore rates the completeness of the fingerprint bundle in [0, 100].
// Presence means the signal was reported at all; a present-but-empty string
// still counts, content is not validated here.
func QualityScore(canvas, webgl, fonts, screen, timezone, language *string) int {
	score := 0
	if canvas != nil {
		score += weightCanvas
	}
	if webgl != nil {
		score += weightWebGL
	}
	if fonts != nil {
		score += weightFonts
	}
	if screen != nil {
		score += weightScreen
	}
	if timezone != nil {
		score += weightTimezone
	}
	if language != nil {
		score += weightLanguage
	}
	return score
}
