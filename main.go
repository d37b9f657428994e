package main

import (
	"github.com/Alturino/storefront/cmd"
)

func main() {
	cmd.Start()
}
