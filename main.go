package main

import "bookvocab/cmd"

func main() {
	cmd.Execute()
}
