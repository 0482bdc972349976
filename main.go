package main

import (
	"github.com/hiroksarker/testgenius-ai-sub000/cmd"
)

func main() {
	cmd.Execute()
}
