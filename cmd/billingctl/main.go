package main

import (
	"os"

	"github.com/weskerllc/cronicorn-billing/internal/billingctl"
)

func main() {
	if err := billingctl.Execute(); err != nil {
		os.Exit(1)
	}
}
