package cmd

import (
	"fmt"
)

const banner = `
  _____
 |  __ \
 | |__) |   _ _ __ ___
 |  ___/ | | | '__/ _ \
 | |   | |_| | | |  __/
 |_|    \__, |_|  \___|
         __/ |
        |___/
`

func printBanner() {
	fmt.Printf("\x1b[31m%s\x1b[0m", banner)
	fmt.Printf("\x1b[33m  Secure Data Destruction Service - Version %s\x1b[0m\n\n", Version)
}
