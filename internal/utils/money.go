package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatAmount renders an amount held in minor units (cents) with a currency prefix.
func FormatAmount(currency string, amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, currency, formatThousand(amount/100), amount%100)
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
