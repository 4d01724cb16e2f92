package main

import "os"

func main() {
	Execute(os.Args[1:])
}
