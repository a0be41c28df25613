package main

import "github.com/jfmyers9/muse/cmd"

func main() {
	cmd.Execute()
}
