package main

import "phoneotp/internal/app"

func main() {
	app.Run()
}
