package main

import "github.com/skinarb/skinarb/cmd"

func main() {
	cmd.Execute()
}
