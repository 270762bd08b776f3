package serial

import (
	"fmt"
	"strings"
)

// nmeaChecksum XORs every byte of body. A leading '$' is not part of the sum.
func nmeaChecksum(body string) byte {
	body = strings.TrimPrefix(body, "$")
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

// FormatNMEA frames body as a sentence: "$<body>*<XX>\r\n".
func FormatNMEA(body string) string {
	body = strings.TrimPrefix(body, "$")
	return fmt.Sprintf("$%s*%02X\r\n", body, nmeaChecksum(body))
}
