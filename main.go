package main

import "github.com/jmehdipour/lead-gateway/cmd"

func main() {
	cmd.Execute()
}
