package main

import "debsysroot/internal/sysroot"

func main() {
	sysroot.Main()
}
