package main

import (
	"github.com/opencommerce/payment-go/cmd"
)

// variables will be overwritten at build time
var (
	version   string
	commit    string
	buildTime string
)

func main() {
	cmd.Execute(version, commit, buildTime)
}
