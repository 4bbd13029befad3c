// Command fastboot talks to devices in fastboot mode over TCP.
//
//	fastboot --addr 192.168.1.20 getvar version
//	fastboot --addr 192.168.1.20 flash boot boot.img
//	fastboot --addr 192.168.1.20 reboot
package main

import (
	"fmt"
	"os"
)

func main() {
	a := newApp()
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FAILED (%s)\n", describe(err))
		os.Exit(1)
	}
}
