package main

import "wheel-screener/cmd"

func main() {
	cmd.Execute()
}
