package main

import "github.com/hedgefund-labs/fund-settler/cmd"

func main() {
	cmd.Execute()
}
