package utils

import (
	"fmt"
	"strconv"
)

func FormatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func FormatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
