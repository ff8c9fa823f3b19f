package main

import "crowdfund/cmd/ledgerctl/cmd"

func main() {
	cmd.Execute()
}
