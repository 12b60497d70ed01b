package main

import (
	"os"

	"horse.fit/archivist/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
