package main

import (
	"DubFlow/cmd"
)

func main() {
	cmd.Execute()
}
