package main

import app "forkrun/internal/app"

func main() {
	app.Run()
}
