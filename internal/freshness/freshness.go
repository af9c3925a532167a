// Package freshness turns a post's age into a short urgency label.
package freshness

import (
	"fmt"
	"time"
)

type Bucket int

const (
	GoNow Bucket = iota
	VeryFresh
	Fresh
	StillOK
	Hurry
	Late
	TooLate
)

func (b Bucket) String() string {
	switch b {
	case GoNow:
		return "go_now"
	case VeryFresh:
		return "very_fresh"
	case Fresh:
		return "fresh"
	case StillOK:
		return "still_ok"
	case Hurry:
		return "hurry"
	case Late:
		return "late"
	default:
		return "too_late"
	}
}

// BucketFor maps an age in whole minutes to its bucket.
func BucketFor(minutes int) Bucket {
	switch {
	case minutes < 10:
		return GoNow
	case minutes < 30:
		return VeryFresh
	case minutes < 60:
		return Fresh
	case minutes < 120:
		return StillOK
	case minutes < 360:
		return Hurry
	case minutes < 1440:
		return Late
	default:
		return TooLate
	}
}

// Evaluate returns the label and age in whole minutes of a post created at
// created, as seen at now. Posts stamped in the future count as 0 minutes.
func Evaluate(created, now time.Time) (string, int) {
	minutes := int(now.Sub(created) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return Label(minutes), minutes
}

func Label(minutes int) string {
	switch BucketFor(minutes) {
	case GoNow:
		return fmt.Sprintf("%d min ago - GO NOW!", minutes)
	case VeryFresh:
		return fmt.Sprintf("%d min ago - Very Fresh", minutes)
	case Fresh:
		return fmt.Sprintf("%d min ago - Fresh", minutes)
	case StillOK:
		return fmt.Sprintf("%dh ago - Still OK", minutes/60)
	case Hurry:
		return fmt.Sprintf("%dh ago - Hurry", minutes/60)
	case Late:
		return fmt.Sprintf("%dh ago - Late", minutes/60)
	default:
		return fmt.Sprintf("%dd ago - Probably Too Late", minutes/1440)
	}
}
