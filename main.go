package main

import "taskradar/internal/app"

func main() {
	app.Main()
}
