package main

import (
	"log"

	"github.com/quayside/vendorq/cmd/vendorqctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
