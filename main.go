package main

import "github.com/gaurav-prasanna/policypipe/cmd"

func main() {
	cmd.Execute()
}
