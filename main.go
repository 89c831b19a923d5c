package main

import "booksearch/cmd"

func main() {
	cmd.Execute()
}
