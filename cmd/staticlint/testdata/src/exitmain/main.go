package main

import (
	"fmt"
	"os"
)

func helper() {
	os.Exit(2)
}

func main() {
	defer fmt.Println("unreachable")

	if len(os.Args) > 3 {
		helper()
	}

	go func() {
		os.Exit(3)
	}()

	os.Exit(1) // want "os.Exit call is forbidden in main function: os.Exit\\(1\\)"
}
