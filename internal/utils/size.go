package utils

import (
	"strconv"
	"strings"
)

var sizeUnits = []string{"b", "kb", "mb", "gb", "tb", "pb"}

// FormatFileSize converts a byte length into a lower-case unit string such as
// "512b", "1.5kb" or "10mb". Values below ten keep one decimal.
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	if bytes < 1024 {
		return strconv.FormatInt(bytes, 10) + sizeUnits[0]
	}
	value := float64(bytes)
	unitIndex := 0
	for value >= 1024 && unitIndex < len(sizeUnits)-1 {
		value /= 1024
		unitIndex++
	}
	precision := 0
	if value < 10 {
		precision = 1
	}
	formatted := strings.TrimSuffix(strconv.FormatFloat(value, 'f', precision, 64), ".0")
	return formatted + sizeUnits[unitIndex]
}

// FormatContentSize formats the byte length of file content.
func FormatContentSize(content string) string {
	return FormatFileSize(int64(len(content)))
}
