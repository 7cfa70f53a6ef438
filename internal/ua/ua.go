// Package ua classifies user-agent strings into the device/browser/OS
// fields stored on a visit record.
package ua

import (
	"strings"

	"github.com/mileusna/useragent"

	"github.com/adalliance/tracker/internal/visit"
)

// Keywords that betray automation frameworks even when the rest of the
// user-agent looks like a normal browser.
var automationKeywords = []string{
	"headless", "selenium", "webdriver", "puppeteer",
	"playwright", "phantom", "jsdom", "nightmare",
	"chrome-headless", "automated", "crawler", "spider",
}

// Classifier implements visit.Parser on top of a user-agent parsing
// library.
type Classifier struct{}

func New() *Classifier { return &Classifier{} }

// Classify parses the user-agent string. An empty or automation-flavored
// string is classified as a bot; parsing never fails, unknown agents fall
// back to the pc device type with empty browser/OS fields.
func (c *Classifier) Classify(userAgent string) visit.Classification {
	if strings.TrimSpace(userAgent) == "" {
		return visit.Classification{DeviceType: visit.DeviceBot, Bot: true}
	}

	parsed := useragent.Parse(userAgent)

	cls := visit.Classification{
		Browser:        parsed.Name,
		BrowserVersion: parsed.Version,
		OS:             parsed.OS,
		OSVersion:      parsed.OSVersion,
		Bot:            parsed.Bot || containsAutomation(userAgent),
	}

	switch {
	case cls.Bot:
		cls.DeviceType = visit.DeviceBot
	case parsed.Mobile:
		cls.DeviceType = visit.DeviceMobile
	case parsed.Tablet:
		cls.DeviceType = visit.DeviceTablet
	default:
		cls.DeviceType = visit.DevicePC
	}
	return cls
}

func containsAutomation(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, kw := range automationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
