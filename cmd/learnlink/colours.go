package main

import (
	"os"

	"github.com/jrsteele09/learnlink-client/alerts"
)

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m" // Bright black, often appears as gray

	GreenInverse  = "\033[7;32m"
	RedInverse    = "\033[7;31m"
	YellowInverse = "\033[7;33m"
	CyanInverse   = "\033[7;36m"

	ResetColor = "\033[0m"
)

var levelColors = map[alerts.Level]string{
	alerts.LevelSuccess: Green,
	alerts.LevelError:   Red,
	alerts.LevelWarning: Yellow,
	alerts.LevelInfo:    Cyan,
}

var badgeColors = map[alerts.Level]string{
	alerts.LevelSuccess: GreenInverse,
	alerts.LevelError:   RedInverse,
	alerts.LevelWarning: YellowInverse,
	alerts.LevelInfo:    CyanInverse,
}

// https://no-color.org
var noColor = os.Getenv("NO_COLOR") != ""

func colorize(color, text string) string {
	if noColor || color == "" {
		return text
	}
	return color + text + ResetColor
}

func levelText(level alerts.Level, text string) string {
	return colorize(levelColors[level], text)
}

func badgeText(b alerts.Badge) string {
	return colorize(badgeColors[b.Level], " "+b.Label+" ")
}
