// Package notification delivers style changes of kagi charts to people
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/kagiline/pkg/feed"
	"github.com/raykavin/kagiline/pkg/kagi"
)

// Notifier is implemented by every channel in this package
type Notifier interface {
	Notify(text string)
	OnError(err error)
	OnEvent(event feed.Event)
}

// Title and body of a style change; other segments are not worth a message
func describe(event feed.Event) (title, body string, ok bool) {
	segment := event.Segment
	if segment.Kind != kagi.KindStyleChange {
		return "", "", false
	}

	icon := "🔴"
	if segment.Style == kagi.StyleYang {
		icon = "🟢"
	}
	title = fmt.Sprintf("%s %s turned %s", icon, event.Pair, strings.ToUpper(segment.Style.String()))
	body = fmt.Sprintf("Price: %s\nTime: %s", segment.To.Price, segment.To.Time.UTC().Format(time.RFC3339))
	return title, body, true
}

func describeError(err error) string {
	return "🛑 ERROR\n-----\n" + err.Error()
}
